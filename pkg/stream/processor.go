// Package stream is the real-time processing pipeline: per-user
// bounded event windows, incremental trend and anomaly checks,
// self-tuning thresholds, and alert aggregation with cooldown
// deduplication. It is the only stateful component of the analytics
// core; everything it calls is pure.
package stream

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/vitalgrid/healthwatch/pkg/config"
	"github.com/vitalgrid/healthwatch/pkg/health"
	"github.com/vitalgrid/healthwatch/pkg/logging"
	"github.com/vitalgrid/healthwatch/pkg/monitoring"
	"github.com/vitalgrid/healthwatch/pkg/pattern"
	"github.com/vitalgrid/healthwatch/pkg/stats"
)

// TickResult is everything one incoming point produced.
type TickResult struct {
	Events       []health.HealthEvent
	Alerts       []health.Alert
	Correlations []health.CorrelationResult
}

// historyKey identifies an alert lineage for cooldown tracking. The
// user is implicit: history lives inside that user's stream state.
type historyKey struct {
	kind  health.MetricKind
	event health.EventType
}

// userStream is the per-user mutable state. Each stream serializes its
// own mutation; different users proceed fully in parallel.
type userStream struct {
	mu           sync.Mutex
	window       []health.HealthEvent
	adaptive     map[health.MetricKind]health.AdaptiveThreshold
	alertHistory map[historyKey]time.Time
	lastSeen     time.Time
}

// Processor owns every user stream. Streams are created lazily on the
// first event for a user and evicted after the configured idle TTL.
type Processor struct {
	provider *config.Provider
	patterns *pattern.Engine
	logger   *logging.StructuredLogger
	recorder *monitoring.Recorder
	sink     health.AlertSink

	mu      sync.RWMutex
	streams map[string]*userStream

	stopCh   chan struct{}
	stopOnce sync.Once

	// now is replaceable for tests.
	now func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithAlertSink forwards constructed alerts to a delivery collaborator.
func WithAlertSink(sink health.AlertSink) Option {
	return func(p *Processor) { p.sink = sink }
}

// WithRecorder wires Prometheus instrumentation.
func WithRecorder(recorder *monitoring.Recorder) Option {
	return func(p *Processor) { p.recorder = recorder }
}

// WithClock replaces the wall clock; tests use it to drive cooldown
// and eviction deterministically.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// NewProcessor builds a stream processor.
func NewProcessor(provider *config.Provider, patterns *pattern.Engine, logger *logging.StructuredLogger, opts ...Option) *Processor {
	p := &Processor{
		provider: provider,
		patterns: patterns,
		logger:   logger.WithComponent("stream"),
		streams:  make(map[string]*userStream),
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs one point through the pipeline and returns the events,
// alerts, and advisory correlations it produced. Calls for the same
// user are serialized; a failure here can only ever involve this
// user's state.
func (p *Processor) Process(ctx context.Context, userID string, point health.MetricPoint) (TickResult, error) {
	if err := ctx.Err(); err != nil {
		return TickResult{}, err
	}

	cfg := p.provider.Get()
	us := p.stream(userID)

	us.mu.Lock()
	defer us.mu.Unlock()

	us.lastSeen = p.now()

	var tick TickResult

	// 1. Record the raw observation in the bounded window.
	update := health.NewHealthEvent(health.EventMetricUpdate, point.Timestamp, point.Kind, point.Value, health.SeverityInfo)
	p.append(us, update, cfg.Stream.WindowCapacity)
	tick.Events = append(tick.Events, update)

	// 2. Static thresholds, independent of the adaptive baseline.
	if breach, ok := p.checkStatic(cfg, point); ok {
		p.append(us, breach, cfg.Stream.WindowCapacity)
		tick.Events = append(tick.Events, breach)
	}

	// 3. Short-horizon trend over the most recent same-kind updates.
	if ev, ok := p.checkTrend(cfg, us, point); ok {
		p.append(us, ev, cfg.Stream.WindowCapacity)
		tick.Events = append(tick.Events, ev)
	}

	// 4. Z-score of the new point against the same-kind window.
	if ev, ok := p.checkAnomaly(cfg, us, point); ok {
		p.append(us, ev, cfg.Stream.WindowCapacity)
		tick.Events = append(tick.Events, ev)
	}

	// 5. Re-tune adaptive thresholds to the user's own baseline.
	p.updateAdaptive(cfg, us, point.Kind)

	// 6. Aggregate this tick's events into at most one alert per
	// severity band, with cooldown dedup per metric and event type.
	tick.Alerts = p.buildAlerts(cfg, us, tick.Events)

	// 7. Advisory cross-metric correlation scan over the window.
	tick.Correlations = p.scanCorrelations(ctx, us)

	for _, ev := range tick.Events {
		p.recorder.EventProcessed(string(ev.Type))
	}
	for _, alert := range tick.Alerts {
		p.recorder.AlertEmitted(string(alert.Severity))
		if p.sink != nil {
			if err := p.sink.Deliver(alert); err != nil {
				p.logger.Error("alert delivery failed", "user_id", userID, "alert_id", alert.ID, "error", err)
			}
		}
	}

	return tick, nil
}

// stream returns the user's stream, creating it lazily.
func (p *Processor) stream(userID string) *userStream {
	p.mu.RLock()
	us, ok := p.streams[userID]
	p.mu.RUnlock()
	if ok {
		return us
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if us, ok = p.streams[userID]; ok {
		return us
	}
	us = &userStream{
		adaptive:     make(map[health.MetricKind]health.AdaptiveThreshold),
		alertHistory: make(map[historyKey]time.Time),
	}
	p.streams[userID] = us
	p.recorder.SetActiveStreams(len(p.streams))
	return us
}

// append adds an event to the bounded window, evicting the oldest
// entries beyond capacity.
func (p *Processor) append(us *userStream, ev health.HealthEvent, capacity int) {
	us.window = append(us.window, ev)
	if over := len(us.window) - capacity; over > 0 {
		us.window = us.window[over:]
	}
}

// checkStatic evaluates the configured fixed thresholds. Tables where
// the critical bound sits below the warning bound guard low-is-bad
// metrics such as oxygen saturation.
func (p *Processor) checkStatic(cfg *config.Thresholds, point health.MetricPoint) (health.HealthEvent, bool) {
	t, ok := cfg.Metric(point.Kind)
	if !ok || (t.StaticWarning == 0 && t.StaticCritical == 0) {
		return health.HealthEvent{}, false
	}

	var severity health.EventSeverity
	if t.StaticCritical >= t.StaticWarning {
		switch {
		case point.Value >= t.StaticCritical:
			severity = health.SeverityCritical
		case point.Value >= t.StaticWarning:
			severity = health.SeverityWarning
		}
	} else {
		switch {
		case point.Value <= t.StaticCritical:
			severity = health.SeverityCritical
		case point.Value <= t.StaticWarning:
			severity = health.SeverityWarning
		}
	}
	if severity == "" {
		return health.HealthEvent{}, false
	}

	ev := health.NewHealthEvent(health.EventThresholdBreach, point.Timestamp, point.Kind, point.Value, severity)
	ev.Metadata = map[string]string{
		"warning":  fmt.Sprintf("%.2f", t.StaticWarning),
		"critical": fmt.Sprintf("%.2f", t.StaticCritical),
	}
	return ev, true
}

// checkTrend fits the last few same-kind updates and flags a slope
// that moves the metric by more than the cutoff per sample, relative
// to the window mean.
func (p *Processor) checkTrend(cfg *config.Thresholds, us *userStream, point health.MetricPoint) (health.HealthEvent, bool) {
	values := p.kindValues(us, point.Kind)
	n := cfg.Stream.TrendMinEvents
	if len(values) < n {
		return health.HealthEvent{}, false
	}
	recent := values[len(values)-n:]

	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	reg, err := stats.LinearRegression(xs, recent)
	if err != nil {
		return health.HealthEvent{}, false
	}

	mean := stats.Mean(recent)
	if mean == 0 {
		return health.HealthEvent{}, false
	}
	normalized := reg.Slope / math.Abs(mean)
	if math.Abs(normalized) <= cfg.Stream.TrendSlopeCutoff {
		return health.HealthEvent{}, false
	}

	ev := health.NewHealthEvent(health.EventTrendChange, point.Timestamp, point.Kind, point.Value, health.SeverityWarning)
	ev.Metadata = map[string]string{
		"slope":            fmt.Sprintf("%.4f", reg.Slope),
		"normalized_slope": fmt.Sprintf("%.4f", normalized),
	}
	return ev, true
}

// checkAnomaly scores the new point against the same-kind window. A
// zero-variance window yields no anomaly.
func (p *Processor) checkAnomaly(cfg *config.Thresholds, us *userStream, point health.MetricPoint) (health.HealthEvent, bool) {
	values := p.kindValues(us, point.Kind)
	if len(values) < cfg.Stream.AnomalyMinEvents {
		return health.HealthEvent{}, false
	}

	mean, std := stats.MeanStdDev(values)
	if std == 0 {
		return health.HealthEvent{}, false
	}
	z := (point.Value - mean) / std
	if math.Abs(z) <= cfg.Stream.AnomalyZCutoff {
		return health.HealthEvent{}, false
	}

	severity := health.SeverityWarning
	if math.Abs(z) > 2*cfg.Stream.AnomalyZCutoff {
		severity = health.SeverityCritical
	}
	ev := health.NewHealthEvent(health.EventAnomalyDetected, point.Timestamp, point.Kind, point.Value, severity)
	ev.Metadata = map[string]string{"z_score": fmt.Sprintf("%.2f", z)}
	return ev, true
}

// updateAdaptive recomputes the self-tuning thresholds for a metric
// once enough baseline exists.
func (p *Processor) updateAdaptive(cfg *config.Thresholds, us *userStream, kind health.MetricKind) {
	values := p.kindValues(us, kind)
	if len(values) < cfg.Stream.AdaptiveMinPoints {
		return
	}
	mean, std := stats.MeanStdDev(values)
	us.adaptive[kind] = health.AdaptiveThreshold{
		Warning:      mean + 1.5*std,
		Critical:     mean + 2.5*std,
		BaselineMean: mean,
		BaselineStd:  std,
	}
}

// kindValues extracts the metric_update values for one kind from the
// window, oldest first.
func (p *Processor) kindValues(us *userStream, kind health.MetricKind) []float64 {
	var values []float64
	for _, ev := range us.window {
		if ev.Type == health.EventMetricUpdate && ev.Kind == kind {
			values = append(values, ev.Value)
		}
	}
	return values
}

// scanCorrelations reuses the pattern engine over the series
// reconstructed from the window. Results are advisory and never alert.
func (p *Processor) scanCorrelations(ctx context.Context, us *userStream) []health.CorrelationResult {
	byKind := make(map[health.MetricKind]health.MetricSeries)
	for _, ev := range us.window {
		if ev.Type != health.EventMetricUpdate {
			continue
		}
		byKind[ev.Kind] = append(byKind[ev.Kind], health.MetricPoint{
			Timestamp: ev.Timestamp,
			Kind:      ev.Kind,
			Value:     ev.Value,
		})
	}
	if len(byKind) < 2 {
		return nil
	}
	results, err := p.patterns.Correlations(ctx, byKind)
	if err != nil {
		return results
	}
	return results
}

// AdaptiveThresholds returns a copy of the user's current self-tuned
// thresholds, or nil when the user has no stream yet.
func (p *Processor) AdaptiveThresholds(userID string) map[health.MetricKind]health.AdaptiveThreshold {
	p.mu.RLock()
	us, ok := p.streams[userID]
	p.mu.RUnlock()
	if !ok {
		return nil
	}

	us.mu.Lock()
	defer us.mu.Unlock()
	out := make(map[health.MetricKind]health.AdaptiveThreshold, len(us.adaptive))
	for k, v := range us.adaptive {
		out[k] = v
	}
	return out
}

// Window returns a copy of the user's event window, oldest first.
func (p *Processor) Window(userID string) []health.HealthEvent {
	p.mu.RLock()
	us, ok := p.streams[userID]
	p.mu.RUnlock()
	if !ok {
		return nil
	}

	us.mu.Lock()
	defer us.mu.Unlock()
	out := make([]health.HealthEvent, len(us.window))
	copy(out, us.window)
	return out
}
