// Command healthwatch runs the analytics core behind a small HTTP
// surface: point ingestion into the stream processor, batch analysis
// endpoints, health, and Prometheus metrics. All analytics stay
// in-process; this binary is plumbing.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"

	"github.com/vitalgrid/healthwatch/pkg/analysis"
	"github.com/vitalgrid/healthwatch/pkg/anomaly"
	"github.com/vitalgrid/healthwatch/pkg/config"
	"github.com/vitalgrid/healthwatch/pkg/logging"
	"github.com/vitalgrid/healthwatch/pkg/monitoring"
	"github.com/vitalgrid/healthwatch/pkg/pattern"
	"github.com/vitalgrid/healthwatch/pkg/risk"
	"github.com/vitalgrid/healthwatch/pkg/store"
	"github.com/vitalgrid/healthwatch/pkg/stream"
	"github.com/vitalgrid/healthwatch/pkg/trend"
)

func main() {
	svcCfg := config.LoadFromEnv()

	logger := logging.NewStructuredLogger(logging.Config{
		Level:       logging.LogLevel(svcCfg.LogLevel),
		Format:      svcCfg.LogFormat,
		ServiceName: "healthwatch",
	})

	thresholds := config.Defaults()
	if svcCfg.ThresholdsPath != "" {
		loaded, err := config.LoadThresholdsFile(svcCfg.ThresholdsPath)
		if err != nil {
			logger.Error("failed to load thresholds file", "path", svcCfg.ThresholdsPath, "error", err)
			os.Exit(1)
		}
		thresholds = loaded
	}
	provider := config.NewProvider(thresholds)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if svcCfg.ThresholdsPath != "" {
		if err := provider.Watch(ctx, svcCfg.ThresholdsPath, logger); err != nil {
			logger.Warn("threshold hot reload unavailable", "error", err)
		}
	}

	registry := prometheus.NewRegistry()
	recorder := monitoring.NewRecorder(registry)

	var (
		metricStore store.MetricStore
		ingestStore pointSink
	)
	if svcCfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: svcCfg.RedisAddr, DB: svcCfg.RedisDB})
		redisStore := store.NewRedisStore(client)
		metricStore = store.NewBreakerStore(redisStore, gobreaker.Settings{Name: "redis-metric-store"})
		ingestStore = redisSink{redisStore}
		logger.Info("using redis metric store", "addr", svcCfg.RedisAddr)
	} else {
		memStore := store.NewMemoryStore()
		metricStore = memStore
		ingestStore = memorySink{memStore}
		logger.Info("using in-memory metric store")
	}

	patterns := pattern.NewEngine(provider, logger)
	engine := analysis.NewEngine(
		metricStore,
		trend.NewAnalyzer(),
		anomaly.NewDetector(provider, logger),
		patterns,
		risk.NewAggregator(risk.DefaultRules()),
		logger,
		recorder,
	)

	processor := stream.NewProcessor(provider, patterns, logger, stream.WithRecorder(recorder))
	processor.Start()
	defer processor.Stop()

	srv := &http.Server{
		Addr:              svcCfg.HTTPAddr,
		Handler:           newRouter(engine, processor, ingestStore, registry, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", svcCfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}
}
