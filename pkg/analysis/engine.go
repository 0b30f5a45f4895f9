// Package analysis composes the metric store with the trend, anomaly,
// pattern, and risk engines behind one batch API. The loop over metric
// kinds is the cancellation checkpoint: a cancelled context stops
// between kinds and returns whatever completed.
package analysis

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vitalgrid/healthwatch/pkg/anomaly"
	"github.com/vitalgrid/healthwatch/pkg/health"
	"github.com/vitalgrid/healthwatch/pkg/logging"
	"github.com/vitalgrid/healthwatch/pkg/monitoring"
	"github.com/vitalgrid/healthwatch/pkg/pattern"
	"github.com/vitalgrid/healthwatch/pkg/risk"
	"github.com/vitalgrid/healthwatch/pkg/store"
	"github.com/vitalgrid/healthwatch/pkg/trend"
)

// fetchConcurrency bounds parallel store reads per request.
const fetchConcurrency = 4

// Engine is the batch analysis facade. Stateless apart from its
// collaborators and safe for concurrent use.
type Engine struct {
	store    store.MetricStore
	trends   *trend.Analyzer
	anomaly  *anomaly.Detector
	patterns *pattern.Engine
	risk     *risk.Aggregator
	logger   *logging.StructuredLogger
	recorder *monitoring.Recorder
}

// NewEngine wires the analysis facade.
func NewEngine(
	metricStore store.MetricStore,
	trends *trend.Analyzer,
	detector *anomaly.Detector,
	patterns *pattern.Engine,
	aggregator *risk.Aggregator,
	logger *logging.StructuredLogger,
	recorder *monitoring.Recorder,
) *Engine {
	return &Engine{
		store:    metricStore,
		trends:   trends,
		anomaly:  detector,
		patterns: patterns,
		risk:     aggregator,
		logger:   logger.WithComponent("analysis"),
		recorder: recorder,
	}
}

// fetchAll loads the requested kinds in parallel. Kinds whose fetch
// fails are logged and dropped so one bad series cannot sink the
// batch.
func (e *Engine) fetchAll(ctx context.Context, userID string, kinds []health.MetricKind, since, until time.Time) map[health.MetricKind]health.MetricSeries {
	var mu sync.Mutex
	out := make(map[health.MetricKind]health.MetricSeries, len(kinds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, kind := range kinds {
		kind := kind
		g.Go(func() error {
			series, err := e.store.FetchSeries(gctx, userID, kind, since, until)
			if err != nil {
				e.logger.Warn("series fetch failed", "user_id", userID, "metric_kind", kind, "error", err)
				return nil
			}
			mu.Lock()
			out[kind] = series
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return out
}

// TrendReport analyzes every requested kind. Partial results are
// returned alongside the context error on cancellation.
func (e *Engine) TrendReport(ctx context.Context, userID string, kinds []health.MetricKind, since, until time.Time) ([]health.TrendResult, error) {
	defer e.observe("trend", time.Now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	series := e.fetchAll(ctx, userID, kinds, since, until)
	sorted := sortedKinds(series)

	var results []health.TrendResult
	for _, kind := range sorted {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, e.trends.Analyze(series[kind]))
	}
	return results, nil
}

// AnomalyReport runs the anomaly detector across the requested kinds.
func (e *Engine) AnomalyReport(ctx context.Context, userID string, kinds []health.MetricKind, since, until time.Time) ([]health.Anomaly, error) {
	defer e.observe("anomaly", time.Now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	series := e.fetchAll(ctx, userID, kinds, since, until)
	return e.anomaly.DetectAll(ctx, series)
}

// CorrelationReport computes pairwise correlations and per-kind
// periodicity patterns over the requested kinds.
func (e *Engine) CorrelationReport(ctx context.Context, userID string, kinds []health.MetricKind, since, until time.Time) ([]health.CorrelationResult, []health.PatternResult, error) {
	defer e.observe("correlation", time.Now())
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	series := e.fetchAll(ctx, userID, kinds, since, until)

	correlations, err := e.patterns.Correlations(ctx, series)
	if err != nil {
		return correlations, nil, err
	}

	var patterns []health.PatternResult
	for _, kind := range sortedKinds(series) {
		if err := ctx.Err(); err != nil {
			return correlations, patterns, err
		}
		patterns = append(patterns, e.patterns.DetectPatterns(series[kind])...)
	}
	return correlations, patterns, nil
}

// RiskReport assesses category risk from the latest reading of each
// requested kind.
func (e *Engine) RiskReport(ctx context.Context, userID string, kinds []health.MetricKind, since, until time.Time) (health.OverallRisk, error) {
	defer e.observe("risk", time.Now())

	series := e.fetchAll(ctx, userID, kinds, since, until)
	if err := ctx.Err(); err != nil {
		return health.OverallRisk{}, err
	}

	latest := make(map[health.MetricKind]float64, len(series))
	for kind, s := range series {
		if len(s) > 0 {
			latest[kind] = s[len(s)-1].Value
		}
	}
	return e.risk.Assess(latest), nil
}

func (e *Engine) observe(analysis string, start time.Time) {
	e.recorder.ObserveAnalysis(analysis, time.Since(start))
}

func sortedKinds(series map[health.MetricKind]health.MetricSeries) []health.MetricKind {
	kinds := make([]health.MetricKind, 0, len(series))
	for kind := range series {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
