package store

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vitalgrid/healthwatch/pkg/health"
)

// BreakerStore wraps any MetricStore with a circuit breaker so a
// failing storage backend degrades one metric fetch at a time instead
// of stalling a whole batch of analyses. Callers treat an open-breaker
// error like any other fetch failure and skip the affected kind.
type BreakerStore struct {
	inner   MetricStore
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerStore decorates inner with the given breaker settings;
// zero-value settings get a sane name and defaults.
func NewBreakerStore(inner MetricStore, settings gobreaker.Settings) *BreakerStore {
	if settings.Name == "" {
		settings.Name = "metric-store"
	}
	if settings.Timeout == 0 {
		settings.Timeout = 30 * time.Second
	}
	return &BreakerStore{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// FetchSeries implements MetricStore through the breaker.
func (b *BreakerStore) FetchSeries(ctx context.Context, userID string, kind health.MetricKind, since, until time.Time) (health.MetricSeries, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.FetchSeries(ctx, userID, kind, since, until)
	})
	if err != nil {
		return nil, err
	}
	return result.(health.MetricSeries), nil
}

// State exposes the current breaker state for health reporting.
func (b *BreakerStore) State() gobreaker.State { return b.breaker.State() }
