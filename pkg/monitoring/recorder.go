// Package monitoring holds the Prometheus instrumentation for the
// analytics core.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder collects stream and analysis metrics. A nil *Recorder is
// valid and records nothing, so wiring metrics stays optional.
type Recorder struct {
	eventsProcessed  *prometheus.CounterVec
	alertsEmitted    *prometheus.CounterVec
	alertsSuppressed prometheus.Counter
	activeStreams    prometheus.Gauge
	analysisDuration *prometheus.HistogramVec
}

// NewRecorder creates and registers the recorder's collectors. Pass a
// nil registry to skip registration (tests).
func NewRecorder(registry prometheus.Registerer) *Recorder {
	r := &Recorder{
		eventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthwatch_stream_events_processed_total",
			Help: "Stream events processed, by event type.",
		}, []string{"event_type"}),
		alertsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthwatch_alerts_emitted_total",
			Help: "Alerts constructed by the stream processor, by severity.",
		}, []string{"severity"}),
		alertsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "healthwatch_alerts_suppressed_total",
			Help: "Alerts suppressed by cooldown deduplication.",
		}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "healthwatch_active_streams",
			Help: "User streams currently held in memory.",
		}),
		analysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "healthwatch_analysis_duration_seconds",
			Help:    "Latency of analysis calls, by analysis type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"analysis"}),
	}

	if registry != nil {
		registry.MustRegister(
			r.eventsProcessed,
			r.alertsEmitted,
			r.alertsSuppressed,
			r.activeStreams,
			r.analysisDuration,
		)
	}
	return r
}

// EventProcessed counts one stream event.
func (r *Recorder) EventProcessed(eventType string) {
	if r == nil {
		return
	}
	r.eventsProcessed.WithLabelValues(eventType).Inc()
}

// AlertEmitted counts one constructed alert.
func (r *Recorder) AlertEmitted(severity string) {
	if r == nil {
		return
	}
	r.alertsEmitted.WithLabelValues(severity).Inc()
}

// AlertSuppressed counts one cooldown suppression.
func (r *Recorder) AlertSuppressed() {
	if r == nil {
		return
	}
	r.alertsSuppressed.Inc()
}

// SetActiveStreams records the number of live user streams.
func (r *Recorder) SetActiveStreams(n int) {
	if r == nil {
		return
	}
	r.activeStreams.Set(float64(n))
}

// ObserveAnalysis records the latency of one analysis call.
func (r *Recorder) ObserveAnalysis(analysis string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.analysisDuration.WithLabelValues(analysis).Observe(elapsed.Seconds())
}
