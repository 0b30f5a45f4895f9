package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalgrid/healthwatch/pkg/anomaly"
	"github.com/vitalgrid/healthwatch/pkg/config"
	"github.com/vitalgrid/healthwatch/pkg/health"
	"github.com/vitalgrid/healthwatch/pkg/logging"
	"github.com/vitalgrid/healthwatch/pkg/pattern"
	"github.com/vitalgrid/healthwatch/pkg/risk"
	"github.com/vitalgrid/healthwatch/pkg/store"
	"github.com/vitalgrid/healthwatch/pkg/trend"
)

func newTestEngine(metricStore store.MetricStore) *Engine {
	provider := config.NewProvider(config.Defaults())
	logger := logging.NewNopLogger()
	return NewEngine(
		metricStore,
		trend.NewAnalyzer(),
		anomaly.NewDetector(provider, logger),
		pattern.NewEngine(provider, logger),
		risk.NewAggregator(risk.DefaultRules()),
		logger,
		nil,
	)
}

func seedDaily(s *store.MemoryStore, userID string, kind health.MetricKind, values []float64) {
	base := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	for i, v := range values {
		s.Add(userID, health.MetricPoint{
			Timestamp: base.AddDate(0, 0, i),
			Kind:      kind,
			Value:     v,
		})
	}
}

func window() (time.Time, time.Time) {
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	return base, base.AddDate(0, 1, 0)
}

func TestTrendReport(t *testing.T) {
	memory := store.NewMemoryStore()
	seedDaily(memory, "alice", health.KindWeight, []float64{80, 80.5, 81, 81.5, 82, 82.5, 83})
	engine := newTestEngine(memory)

	since, until := window()
	results, err := engine.TrendReport(context.Background(), "alice", []health.MetricKind{health.KindWeight}, since, until)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, health.TrendIncreasing, results[0].Direction)
	assert.Equal(t, 7, results[0].SampleSize)
}

func TestAnomalyReport(t *testing.T) {
	memory := store.NewMemoryStore()
	seedDaily(memory, "alice", health.KindSystolicBP, []float64{100, 102, 101, 150, 103})
	engine := newTestEngine(memory)

	since, until := window()
	anomalies, err := engine.AnomalyReport(context.Background(), "alice", []health.MetricKind{health.KindSystolicBP}, since, until)
	require.NoError(t, err)
	require.NotEmpty(t, anomalies)
	assert.Equal(t, health.KindSystolicBP, anomalies[0].Kind)
}

func TestRiskReportUsesLatestReading(t *testing.T) {
	memory := store.NewMemoryStore()
	// Earlier readings are normal; only the latest should drive risk.
	seedDaily(memory, "alice", health.KindSystolicBP, []float64{118, 120, 122, 185})
	engine := newTestEngine(memory)

	since, until := window()
	overall, err := engine.RiskReport(context.Background(), "alice", []health.MetricKind{health.KindSystolicBP}, since, until)
	require.NoError(t, err)

	var cardio health.RiskAssessment
	for _, c := range overall.Categories {
		if c.Category == health.RiskCardiovascular {
			cardio = c
		}
	}
	assert.Equal(t, health.RiskCritical, cardio.Level)
}

func TestCorrelationReport(t *testing.T) {
	memory := store.NewMemoryStore()
	hr := []float64{60, 62, 64, 66, 68, 70, 72}
	bp := []float64{110, 113, 116, 119, 122, 125, 128}
	seedDaily(memory, "alice", health.KindHeartRate, hr)
	seedDaily(memory, "alice", health.KindSystolicBP, bp)
	engine := newTestEngine(memory)

	since, until := window()
	correlations, _, err := engine.CorrelationReport(context.Background(), "alice",
		[]health.MetricKind{health.KindHeartRate, health.KindSystolicBP}, since, until)
	require.NoError(t, err)
	require.Len(t, correlations, 1)
	assert.InDelta(t, 1.0, correlations[0].Coefficient, 1e-9)
}

type flakyStore struct {
	inner   store.MetricStore
	failFor health.MetricKind
}

func (f *flakyStore) FetchSeries(ctx context.Context, userID string, kind health.MetricKind, since, until time.Time) (health.MetricSeries, error) {
	if kind == f.failFor {
		return nil, errors.New("backend unavailable")
	}
	return f.inner.FetchSeries(ctx, userID, kind, since, until)
}

func TestFetchFailureDropsOnlyThatKind(t *testing.T) {
	memory := store.NewMemoryStore()
	seedDaily(memory, "alice", health.KindWeight, []float64{80, 81, 82, 83, 84, 85})
	seedDaily(memory, "alice", health.KindGlucose, []float64{100, 101, 102, 103, 104, 105})
	engine := newTestEngine(&flakyStore{inner: memory, failFor: health.KindGlucose})

	since, until := window()
	results, err := engine.TrendReport(context.Background(), "alice",
		[]health.MetricKind{health.KindWeight, health.KindGlucose}, since, until)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, health.KindWeight, results[0].Kind)
}

func TestTrendReportCancellation(t *testing.T) {
	memory := store.NewMemoryStore()
	engine := newTestEngine(memory)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.TrendReport(ctx, "alice", []health.MetricKind{health.KindWeight}, time.Time{}, time.Now())
	assert.ErrorIs(t, err, context.Canceled)
}
