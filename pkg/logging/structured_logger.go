// Package logging provides the structured logger used across the
// analytics core.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel represents the severity level of a log entry.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds configuration for the structured logger.
type Config struct {
	Level       LogLevel `json:"level"`
	Format      string   `json:"format"` // "json" or "text"
	ServiceName string   `json:"service_name"`
	Component   string   `json:"component"`
}

// StructuredLogger wraps slog with service and component context.
type StructuredLogger struct {
	*slog.Logger
	serviceName string
	component   string
}

// NewStructuredLogger creates a logger writing to stdout.
func NewStructuredLogger(config Config) *StructuredLogger {
	return newLogger(config, os.Stdout)
}

// NewNopLogger returns a logger that discards everything; intended for
// tests.
func NewNopLogger() *StructuredLogger {
	return newLogger(Config{Level: LevelError}, io.Discard)
}

func newLogger(config Config, w io.Writer) *StructuredLogger {
	opts := &slog.HandlerOptions{Level: parseLevel(config.Level)}

	var handler slog.Handler
	switch strings.ToLower(config.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	if config.ServiceName != "" {
		logger = logger.With("service", config.ServiceName)
	}
	if config.Component != "" {
		logger = logger.With("component", config.Component)
	}

	return &StructuredLogger{
		Logger:      logger,
		serviceName: config.ServiceName,
		component:   config.Component,
	}
}

// WithComponent creates a logger scoped to a specific component.
func (sl *StructuredLogger) WithComponent(component string) *StructuredLogger {
	return &StructuredLogger{
		Logger:      sl.Logger.With("component", component),
		serviceName: sl.serviceName,
		component:   component,
	}
}

// Component returns the component this logger is scoped to.
func (sl *StructuredLogger) Component() string { return sl.component }

func parseLevel(level LogLevel) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
