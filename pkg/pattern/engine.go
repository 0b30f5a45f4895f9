// Package pattern finds relationships between metrics (pairwise
// Pearson correlation over timestamp-aligned samples) and periodicity
// within a single metric (daily, weekly, seasonal, and habit patterns
// via grouped-variance analysis corroborated by spectral power).
package pattern

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/vitalgrid/healthwatch/pkg/config"
	"github.com/vitalgrid/healthwatch/pkg/health"
	"github.com/vitalgrid/healthwatch/pkg/logging"
	"github.com/vitalgrid/healthwatch/pkg/stats"
)

// Engine runs correlation and pattern detection. Safe for concurrent
// use; each call reads one configuration snapshot.
type Engine struct {
	provider *config.Provider
	logger   *logging.StructuredLogger
}

// NewEngine builds a pattern engine on a threshold provider.
func NewEngine(provider *config.Provider, logger *logging.StructuredLogger) *Engine {
	return &Engine{provider: provider, logger: logger.WithComponent("pattern")}
}

// Correlations computes Pearson correlation for every unordered pair
// of metric kinds with enough timestamp-aligned overlap, reporting
// only pairs at or above the configured coefficient cutoff. The loop
// over pairs is a cancellation checkpoint; partial results are
// returned with the context error.
func (e *Engine) Correlations(ctx context.Context, series map[health.MetricKind]health.MetricSeries) ([]health.CorrelationResult, error) {
	cfg := e.provider.Get().Correlation

	kinds := make([]health.MetricKind, 0, len(series))
	for kind := range series {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	var results []health.CorrelationResult
	for i := 0; i < len(kinds); i++ {
		for j := i + 1; j < len(kinds); j++ {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			a, b := kinds[i], kinds[j]
			x, y := align(series[a], series[b], cfg.AlignmentWindow.Std())
			if len(x) < cfg.MinSamples {
				continue
			}
			coef := stats.Pearson(x, y)
			if math.Abs(coef) < cfg.CoefficientCutoff {
				continue
			}
			results = append(results, health.CorrelationResult{
				MetricA:     a,
				MetricB:     b,
				Coefficient: coef,
				Strength:    strengthTier(coef),
				SampleSize:  len(x),
				Confidence:  math.Min(1, float64(len(x))/50+math.Abs(coef)*0.3),
			})
		}
	}
	return results, nil
}

// align pairs up samples from two series whose timestamps fall in the
// same alignment bucket, keeping the first sample per bucket.
func align(a, b health.MetricSeries, window time.Duration) (x, y []float64) {
	if window <= 0 {
		window = time.Minute
	}
	byBucket := make(map[int64]float64, len(b))
	seen := make(map[int64]bool, len(b))
	for _, p := range b {
		bucket := p.Timestamp.UnixNano() / int64(window)
		if !seen[bucket] {
			byBucket[bucket] = p.Value
			seen[bucket] = true
		}
	}
	used := make(map[int64]bool, len(a))
	for _, p := range a {
		bucket := p.Timestamp.UnixNano() / int64(window)
		if used[bucket] {
			continue
		}
		if v, ok := byBucket[bucket]; ok {
			x = append(x, p.Value)
			y = append(y, v)
			used[bucket] = true
		}
	}
	return x, y
}

func strengthTier(coef float64) health.CorrelationStrength {
	abs := math.Abs(coef)
	switch {
	case abs >= 0.7:
		return health.CorrelationStrong
	case abs >= 0.3:
		return health.CorrelationModerate
	default:
		return health.CorrelationWeak
	}
}
