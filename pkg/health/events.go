package health

import (
	"time"

	"github.com/google/uuid"
)

// EventType names what the stream processor observed on a tick.
type EventType string

const (
	EventMetricUpdate    EventType = "metric_update"
	EventThresholdBreach EventType = "threshold_breach"
	EventTrendChange     EventType = "trend_change"
	EventAnomalyDetected EventType = "anomaly_detected"
)

// EventSeverity ranks a stream event.
type EventSeverity string

const (
	SeverityInfo      EventSeverity = "info"
	SeverityWarning   EventSeverity = "warning"
	SeverityCritical  EventSeverity = "critical"
	SeverityEmergency EventSeverity = "emergency"
)

// HealthEvent is one entry in a user's bounded stream window.
type HealthEvent struct {
	ID        string            `json:"event_id"`
	Type      EventType         `json:"event_type"`
	Timestamp time.Time         `json:"timestamp"`
	Kind      MetricKind        `json:"metric_kind"`
	Value     float64           `json:"value"`
	Severity  EventSeverity     `json:"severity"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewHealthEvent assigns a fresh event ID.
func NewHealthEvent(t EventType, ts time.Time, kind MetricKind, value float64, sev EventSeverity) HealthEvent {
	return HealthEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: ts,
		Kind:      kind,
		Value:     value,
		Severity:  sev,
	}
}

// Alert is an aggregated, user-facing notification built from one or
// more correlated stream events. The core constructs alerts; delivery
// belongs to the alert sink collaborator.
type Alert struct {
	ID                      string        `json:"alert_id"`
	Timestamp               time.Time     `json:"timestamp"`
	Severity                EventSeverity `json:"severity"`
	Title                   string        `json:"title"`
	AffectedMetrics         []MetricKind  `json:"affected_metrics"`
	Recommendations         []string      `json:"recommendations"`
	CorrelatedEventIDs      []string      `json:"correlated_event_ids"`
	RequiresImmediateAction bool          `json:"requires_immediate_action"`
}

// AdaptiveThreshold is a per-metric warning/critical boundary derived
// from the user's own recent baseline rather than population values.
type AdaptiveThreshold struct {
	Warning      float64 `json:"warning"`
	Critical     float64 `json:"critical"`
	BaselineMean float64 `json:"baseline_mean"`
	BaselineStd  float64 `json:"baseline_std"`
}

// AlertSink receives constructed alerts for delivery, persistence, or
// notification. Implementations live outside the analytics core.
type AlertSink interface {
	Deliver(alert Alert) error
}
