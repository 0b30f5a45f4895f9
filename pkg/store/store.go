// Package store defines the metric store adapter contract the
// analytics core consumes, plus in-memory and Redis-backed
// implementations and a circuit-breaker decorator.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vitalgrid/healthwatch/pkg/health"
)

// MetricStore supplies ordered time series for a user and metric kind.
// Absence of data is not an error: implementations return an empty
// series when nothing is recorded in the window.
type MetricStore interface {
	FetchSeries(ctx context.Context, userID string, kind health.MetricKind, since, until time.Time) (health.MetricSeries, error)
}

// MemoryStore keeps series in memory, sorted on insert. It backs tests
// and embedded deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	series map[string]map[health.MetricKind]health.MetricSeries
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{series: make(map[string]map[health.MetricKind]health.MetricSeries)}
}

// Add inserts a point, keeping the series time-ascending and replacing
// any point that shares its timestamp.
func (m *MemoryStore) Add(userID string, point health.MetricPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byKind, ok := m.series[userID]
	if !ok {
		byKind = make(map[health.MetricKind]health.MetricSeries)
		m.series[userID] = byKind
	}

	s := byKind[point.Kind]
	idx := sort.Search(len(s), func(i int) bool { return !s[i].Timestamp.Before(point.Timestamp) })
	if idx < len(s) && s[idx].Timestamp.Equal(point.Timestamp) {
		s[idx] = point
	} else {
		s = append(s, health.MetricPoint{})
		copy(s[idx+1:], s[idx:])
		s[idx] = point
	}
	byKind[point.Kind] = s
}

// FetchSeries implements MetricStore.
func (m *MemoryStore) FetchSeries(ctx context.Context, userID string, kind health.MetricKind, since, until time.Time) (health.MetricSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.series[userID][kind]
	out := make(health.MetricSeries, 0, len(s))
	for _, p := range s {
		if p.Timestamp.Before(since) || p.Timestamp.After(until) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
