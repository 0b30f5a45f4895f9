package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v2"

	"github.com/vitalgrid/healthwatch/pkg/logging"
)

// Duration wraps time.Duration with YAML string parsing ("1h30m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LoadThresholdsFile reads a YAML threshold file over the defaults, so
// partial files only need to name what they change.
func LoadThresholdsFile(path string) (*Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read thresholds file: %w", err)
	}
	t := Defaults()
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("parse thresholds file %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("thresholds file %s: %w", path, err)
	}
	return t, nil
}

// Provider hands out the current Thresholds snapshot. Swaps are atomic;
// consumers read one snapshot per analysis call and never observe a
// half-applied reload.
type Provider struct {
	current atomic.Pointer[Thresholds]
}

// NewProvider wraps an initial configuration.
func NewProvider(t *Thresholds) *Provider {
	p := &Provider{}
	p.current.Store(t)
	return p
}

// Get returns the current snapshot.
func (p *Provider) Get() *Thresholds { return p.current.Load() }

// Set swaps in a new snapshot.
func (p *Provider) Set(t *Thresholds) { p.current.Store(t) }

// Watch hot-reloads the threshold file on filesystem changes until the
// context is cancelled. Invalid files are logged and skipped; the last
// good configuration stays active.
func (p *Provider) Watch(ctx context.Context, path string, logger *logging.StructuredLogger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory: editors replace files rather than write in
	// place, which drops the watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				t, err := LoadThresholdsFile(path)
				if err != nil {
					logger.Error("threshold reload failed, keeping previous configuration",
						"path", path, "error", err)
					continue
				}
				p.Set(t)
				logger.Info("thresholds reloaded", "path", path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("threshold watcher error", "error", err)
			}
		}
	}()
	return nil
}
