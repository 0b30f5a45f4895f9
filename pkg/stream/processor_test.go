package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalgrid/healthwatch/pkg/config"
	"github.com/vitalgrid/healthwatch/pkg/health"
	"github.com/vitalgrid/healthwatch/pkg/logging"
	"github.com/vitalgrid/healthwatch/pkg/pattern"
)

func newTestProcessor(cfg *config.Thresholds, opts ...Option) *Processor {
	provider := config.NewProvider(cfg)
	engine := pattern.NewEngine(provider, logging.NewNopLogger())
	return NewProcessor(provider, engine, logging.NewNopLogger(), opts...)
}

func eventsOfType(events []health.HealthEvent, typ health.EventType) []health.HealthEvent {
	var out []health.HealthEvent
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestProcessEmitsMetricUpdate(t *testing.T) {
	p := newTestProcessor(config.Defaults())
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	tick, err := p.Process(context.Background(), "alice", health.MetricPoint{
		Timestamp: at, Kind: health.KindHeartRate, Value: 72,
	})
	require.NoError(t, err)
	require.Len(t, tick.Events, 1)
	assert.Equal(t, health.EventMetricUpdate, tick.Events[0].Type)
	assert.Equal(t, health.SeverityInfo, tick.Events[0].Severity)
	assert.NotEmpty(t, tick.Events[0].ID)
	assert.Empty(t, tick.Alerts)
}

func TestStaticThresholdBreach(t *testing.T) {
	p := newTestProcessor(config.Defaults())
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	tick, err := p.Process(context.Background(), "alice", health.MetricPoint{
		Timestamp: at, Kind: health.KindHeartRate, Value: 140,
	})
	require.NoError(t, err)

	breaches := eventsOfType(tick.Events, health.EventThresholdBreach)
	require.Len(t, breaches, 1)
	assert.Equal(t, health.SeverityCritical, breaches[0].Severity)

	require.Len(t, tick.Alerts, 1)
	alert := tick.Alerts[0]
	assert.Equal(t, health.SeverityCritical, alert.Severity)
	assert.True(t, alert.RequiresImmediateAction)
	assert.Equal(t, []health.MetricKind{health.KindHeartRate}, alert.AffectedMetrics)
	assert.Contains(t, alert.Recommendations, "verify the heart_rate reading with a second measurement")
}

func TestStaticThresholdLowIsBad(t *testing.T) {
	p := newTestProcessor(config.Defaults())
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	// SpO2 tables invert warning and critical: lower is worse.
	tick, err := p.Process(context.Background(), "alice", health.MetricPoint{
		Timestamp: at, Kind: health.KindSpO2, Value: 89,
	})
	require.NoError(t, err)
	breaches := eventsOfType(tick.Events, health.EventThresholdBreach)
	require.Len(t, breaches, 1)
	assert.Equal(t, health.SeverityCritical, breaches[0].Severity)

	tick, err = p.Process(context.Background(), "alice", health.MetricPoint{
		Timestamp: at.Add(time.Minute), Kind: health.KindSpO2, Value: 93,
	})
	require.NoError(t, err)
	breaches = eventsOfType(tick.Events, health.EventThresholdBreach)
	require.Len(t, breaches, 1)
	assert.Equal(t, health.SeverityWarning, breaches[0].Severity)

	tick, err = p.Process(context.Background(), "alice", health.MetricPoint{
		Timestamp: at.Add(2 * time.Minute), Kind: health.KindSpO2, Value: 98,
	})
	require.NoError(t, err)
	assert.Empty(t, eventsOfType(tick.Events, health.EventThresholdBreach))
}

func TestCooldownCollapsesAlertStorm(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	p := newTestProcessor(config.Defaults(), WithClock(func() time.Time { return now }))

	// A stuck sensor repeating a critical heart rate must produce one
	// alert, not twelve.
	total := 0
	for i := 0; i < 12; i++ {
		tick, err := p.Process(context.Background(), "alice", health.MetricPoint{
			Timestamp: now.Add(time.Duration(i) * time.Minute),
			Kind:      health.KindHeartRate,
			Value:     140,
		})
		require.NoError(t, err)
		total += len(tick.Alerts)
	}
	assert.Equal(t, 1, total)
}

func TestCooldownExpiry(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	p := newTestProcessor(config.Defaults(), WithClock(func() time.Time { return now }))

	first, err := p.Process(context.Background(), "alice", health.MetricPoint{
		Timestamp: now, Kind: health.KindHeartRate, Value: 140,
	})
	require.NoError(t, err)
	require.Len(t, first.Alerts, 1)

	// Past the cooldown window the same lineage may alert again.
	now = now.Add(61 * time.Minute)
	second, err := p.Process(context.Background(), "alice", health.MetricPoint{
		Timestamp: now, Kind: health.KindHeartRate, Value: 140,
	})
	require.NoError(t, err)
	assert.Len(t, second.Alerts, 1)
}

func TestTrendChangeEvent(t *testing.T) {
	p := newTestProcessor(config.Defaults())
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	// Weight has no static thresholds, so the steep climb surfaces
	// purely as a trend change on the fifth point.
	values := []float64{100, 115, 130, 145, 160}
	var last TickResult
	for i, v := range values {
		tick, err := p.Process(context.Background(), "alice", health.MetricPoint{
			Timestamp: base.AddDate(0, 0, i), Kind: health.KindWeight, Value: v,
		})
		require.NoError(t, err)
		last = tick
	}

	trends := eventsOfType(last.Events, health.EventTrendChange)
	require.Len(t, trends, 1)
	assert.Equal(t, health.SeverityWarning, trends[0].Severity)
	assert.Equal(t, 160.0, trends[0].Value)
	assert.NotEmpty(t, trends[0].Metadata["normalized_slope"])

	require.Len(t, last.Alerts, 1)
	assert.Equal(t, health.SeverityWarning, last.Alerts[0].Severity)
	assert.False(t, last.Alerts[0].RequiresImmediateAction)
}

func TestAnomalyEventOnSpike(t *testing.T) {
	p := newTestProcessor(config.Defaults())
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	baseline := []float64{70, 72, 71, 73, 70, 72, 71, 73, 70, 72}
	for i, v := range baseline {
		tick, err := p.Process(context.Background(), "alice", health.MetricPoint{
			Timestamp: base.Add(time.Duration(i) * time.Hour), Kind: health.KindWeight, Value: v,
		})
		require.NoError(t, err)
		assert.Empty(t, eventsOfType(tick.Events, health.EventAnomalyDetected))
	}

	tick, err := p.Process(context.Background(), "alice", health.MetricPoint{
		Timestamp: base.Add(10 * time.Hour), Kind: health.KindWeight, Value: 130,
	})
	require.NoError(t, err)

	anomalies := eventsOfType(tick.Events, health.EventAnomalyDetected)
	require.Len(t, anomalies, 1)
	assert.Equal(t, health.SeverityWarning, anomalies[0].Severity)
	assert.Equal(t, 130.0, anomalies[0].Value)
	assert.NotEmpty(t, anomalies[0].Metadata["z_score"])
}

func TestAdaptiveThresholdsTrackBaseline(t *testing.T) {
	p := newTestProcessor(config.Defaults())
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		v := 70.0
		if i%2 == 1 {
			v = 74
		}
		_, err := p.Process(context.Background(), "alice", health.MetricPoint{
			Timestamp: base.Add(time.Duration(i) * time.Hour), Kind: health.KindHeartRate, Value: v,
		})
		require.NoError(t, err)
	}

	adaptive := p.AdaptiveThresholds("alice")
	require.Contains(t, adaptive, health.KindHeartRate)
	th := adaptive[health.KindHeartRate]
	assert.InDelta(t, 72, th.BaselineMean, 1e-9)
	assert.Greater(t, th.BaselineStd, 0.0)
	assert.InDelta(t, th.BaselineMean+1.5*th.BaselineStd, th.Warning, 1e-9)
	assert.InDelta(t, th.BaselineMean+2.5*th.BaselineStd, th.Critical, 1e-9)
}

func TestStreamsAreIsolatedPerUser(t *testing.T) {
	p := newTestProcessor(config.Defaults())
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		_, err := p.Process(context.Background(), "alice", health.MetricPoint{
			Timestamp: base.Add(time.Duration(i) * time.Hour), Kind: health.KindHeartRate, Value: 70 + float64(i%3),
		})
		require.NoError(t, err)
	}
	_, err := p.Process(context.Background(), "bob", health.MetricPoint{
		Timestamp: base, Kind: health.KindHeartRate, Value: 72,
	})
	require.NoError(t, err)

	assert.Contains(t, p.AdaptiveThresholds("alice"), health.KindHeartRate)
	assert.Empty(t, p.AdaptiveThresholds("bob"))
	assert.Nil(t, p.AdaptiveThresholds("carol"))
	assert.Equal(t, 2, p.ActiveStreams())
}

func TestWindowEvictsOldestBeyondCapacity(t *testing.T) {
	cfg := config.Defaults()
	cfg.Stream.WindowCapacity = 10
	p := newTestProcessor(cfg)
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 15; i++ {
		_, err := p.Process(context.Background(), "alice", health.MetricPoint{
			Timestamp: base.Add(time.Duration(i) * time.Minute), Kind: health.KindHeartRate, Value: 70,
		})
		require.NoError(t, err)
	}

	window := p.Window("alice")
	require.Len(t, window, 10)
	// The oldest five observations were evicted.
	assert.Equal(t, base.Add(5*time.Minute), window[0].Timestamp)
	assert.Equal(t, base.Add(14*time.Minute), window[9].Timestamp)
}

func TestAdvisoryCorrelations(t *testing.T) {
	p := newTestProcessor(config.Defaults())
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	var last TickResult
	for i := 0; i < 6; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		_, err := p.Process(context.Background(), "alice", health.MetricPoint{
			Timestamp: at, Kind: health.KindHeartRate, Value: 70 + 2*float64(i),
		})
		require.NoError(t, err)
		tick, err := p.Process(context.Background(), "alice", health.MetricPoint{
			Timestamp: at, Kind: health.KindSystolicBP, Value: 110 + 3*float64(i),
		})
		require.NoError(t, err)
		last = tick
	}

	require.NotEmpty(t, last.Correlations)
	r := last.Correlations[0]
	assert.Equal(t, health.KindHeartRate, r.MetricA)
	assert.Equal(t, health.KindSystolicBP, r.MetricB)
	assert.Greater(t, r.Coefficient, 0.9)
	// Advisory only: correlations never alert on their own.
	assert.Empty(t, last.Alerts)
}

func TestEvictIdleStreams(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	p := newTestProcessor(config.Defaults(), WithClock(func() time.Time { return now }))

	_, err := p.Process(context.Background(), "alice", health.MetricPoint{
		Timestamp: now, Kind: health.KindHeartRate, Value: 72,
	})
	require.NoError(t, err)
	require.Equal(t, 1, p.ActiveStreams())

	// Within the TTL nothing is evicted.
	assert.Zero(t, p.EvictIdle(now.Add(23*time.Hour)))
	assert.Equal(t, 1, p.ActiveStreams())

	assert.Equal(t, 1, p.EvictIdle(now.Add(25*time.Hour)))
	assert.Zero(t, p.ActiveStreams())
	assert.Nil(t, p.AdaptiveThresholds("alice"))
}

func TestProcessHonorsCancellation(t *testing.T) {
	p := newTestProcessor(config.Defaults())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Process(ctx, "alice", health.MetricPoint{
		Timestamp: time.Now(), Kind: health.KindHeartRate, Value: 72,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

type captureSink struct {
	alerts []health.Alert
}

func (c *captureSink) Deliver(alert health.Alert) error {
	c.alerts = append(c.alerts, alert)
	return nil
}

func TestAlertSinkReceivesAlerts(t *testing.T) {
	sink := &captureSink{}
	p := newTestProcessor(config.Defaults(), WithAlertSink(sink))

	tick, err := p.Process(context.Background(), "alice", health.MetricPoint{
		Timestamp: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
		Kind:      health.KindHeartRate,
		Value:     140,
	})
	require.NoError(t, err)
	require.Len(t, tick.Alerts, 1)
	require.Len(t, sink.alerts, 1)
	assert.Equal(t, tick.Alerts[0].ID, sink.alerts[0].ID)
}
