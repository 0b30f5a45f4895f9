package stream

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vitalgrid/healthwatch/pkg/config"
	"github.com/vitalgrid/healthwatch/pkg/health"
)

// buildAlerts groups this tick's events by severity band and
// aggregates each band into at most one alert. Critical events demand
// immediate action; warning events produce an advisory alert. Events
// whose (metric, event type) lineage alerted within the cooldown
// window are suppressed, which collapses alert storms from a stuck
// metric into a single notification.
func (p *Processor) buildAlerts(cfg *config.Thresholds, us *userStream, events []health.HealthEvent) []health.Alert {
	cooldown := cfg.Stream.AlertCooldown.Std()
	now := p.now()

	var critical, warning []health.HealthEvent
	for _, ev := range events {
		if ev.Type == health.EventMetricUpdate {
			continue
		}
		var bucket *[]health.HealthEvent
		switch ev.Severity {
		case health.SeverityCritical, health.SeverityEmergency:
			bucket = &critical
		case health.SeverityWarning:
			bucket = &warning
		default:
			continue
		}

		key := historyKey{kind: ev.Kind, event: ev.Type}
		if last, ok := us.alertHistory[key]; ok && now.Sub(last) < cooldown {
			p.recorder.AlertSuppressed()
			continue
		}
		*bucket = append(*bucket, ev)
	}

	var alerts []health.Alert
	if alert, ok := p.aggregate(critical, health.SeverityCritical, true); ok {
		alerts = append(alerts, alert)
		p.markEmitted(us, critical, now)
	}
	if alert, ok := p.aggregate(warning, health.SeverityWarning, false); ok {
		alerts = append(alerts, alert)
		p.markEmitted(us, warning, now)
	}
	return alerts
}

func (p *Processor) markEmitted(us *userStream, events []health.HealthEvent, now time.Time) {
	for _, ev := range events {
		us.alertHistory[historyKey{kind: ev.Kind, event: ev.Type}] = now
	}
}

// aggregate folds a severity band's events into one alert with the
// union of affected metrics and deduplicated recommendations.
func (p *Processor) aggregate(events []health.HealthEvent, severity health.EventSeverity, immediate bool) (health.Alert, bool) {
	if len(events) == 0 {
		return health.Alert{}, false
	}

	metricSet := make(map[health.MetricKind]bool)
	recSet := make(map[string]bool)
	var metrics []health.MetricKind
	var recommendations []string
	var eventIDs []string

	for _, ev := range events {
		eventIDs = append(eventIDs, ev.ID)
		if !metricSet[ev.Kind] {
			metricSet[ev.Kind] = true
			metrics = append(metrics, ev.Kind)
		}
		for _, rec := range recommendationsFor(ev) {
			if !recSet[rec] {
				recSet[rec] = true
				recommendations = append(recommendations, rec)
			}
		}
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i] < metrics[j] })

	names := make([]string, len(metrics))
	for i, m := range metrics {
		names[i] = string(m)
	}

	return health.Alert{
		ID:                      uuid.NewString(),
		Timestamp:               p.now(),
		Severity:                severity,
		Title:                   fmt.Sprintf("%s health alert: %s", strings.ToUpper(string(severity)[:1])+string(severity)[1:], strings.Join(names, ", ")),
		AffectedMetrics:         metrics,
		Recommendations:         recommendations,
		CorrelatedEventIDs:      eventIDs,
		RequiresImmediateAction: immediate,
	}, true
}

// recommendationsFor maps an event to canned guidance. The templates
// intentionally stop short of clinical advice generation.
func recommendationsFor(ev health.HealthEvent) []string {
	switch ev.Type {
	case health.EventThresholdBreach:
		if ev.Severity == health.SeverityCritical || ev.Severity == health.SeverityEmergency {
			return []string{
				fmt.Sprintf("verify the %s reading with a second measurement", ev.Kind),
				"contact your care team if the reading repeats",
			}
		}
		return []string{fmt.Sprintf("keep an eye on %s over the next few hours", ev.Kind)}
	case health.EventTrendChange:
		return []string{fmt.Sprintf("review recent activity that may explain the %s trend", ev.Kind)}
	case health.EventAnomalyDetected:
		return []string{fmt.Sprintf("confirm the unusual %s reading was not a sensor error", ev.Kind)}
	default:
		return nil
	}
}

// Start launches the idle-stream janitor. A zero idle TTL disables
// eviction and Start becomes a no-op.
func (p *Processor) Start() {
	ttl := p.provider.Get().Stream.IdleTTL.Std()
	if ttl <= 0 {
		return
	}
	sweep := ttl / 4
	if sweep < time.Minute {
		sweep = time.Minute
	}

	go func() {
		ticker := time.NewTicker(sweep)
		defer ticker.Stop()
		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				evicted := p.EvictIdle(p.now())
				if evicted > 0 {
					p.logger.Info("evicted idle streams", "count", evicted)
				}
			}
		}
	}()
}

// Stop halts the janitor. Safe to call more than once.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// EvictIdle drops streams whose last event predates the idle TTL and
// returns how many were removed.
func (p *Processor) EvictIdle(now time.Time) int {
	ttl := p.provider.Get().Stream.IdleTTL.Std()
	if ttl <= 0 {
		return 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	evicted := 0
	for userID, us := range p.streams {
		us.mu.Lock()
		idle := now.Sub(us.lastSeen) > ttl
		us.mu.Unlock()
		if idle {
			delete(p.streams, userID)
			evicted++
		}
	}
	if evicted > 0 {
		p.recorder.SetActiveStreams(len(p.streams))
	}
	return evicted
}

// ActiveStreams reports how many user streams are resident.
func (p *Processor) ActiveStreams() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.streams)
}
