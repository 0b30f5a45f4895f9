// Package anomaly flags suspicious readings in a metric window using
// three independent passes: configured range violations, Z-score
// outliers, and rapid point-to-point changes. Passes are unioned, so
// one reading can carry several anomaly kinds.
package anomaly

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/vitalgrid/healthwatch/pkg/config"
	hwerrors "github.com/vitalgrid/healthwatch/pkg/errors"
	"github.com/vitalgrid/healthwatch/pkg/health"
	"github.com/vitalgrid/healthwatch/pkg/logging"
	"github.com/vitalgrid/healthwatch/pkg/stats"
)

// statMinPoints is the smallest window the statistical pass runs over.
const statMinPoints = 5

// skipPassesBelow disables the statistical and rapid-change passes for
// very short windows; range checks still apply.
const skipPassesBelow = 3

// Detector runs the three anomaly passes against the configured
// threshold tables. Safe for concurrent use; each call reads one
// configuration snapshot.
type Detector struct {
	provider *config.Provider
	logger   *logging.StructuredLogger
}

// NewDetector builds a detector on a threshold provider.
func NewDetector(provider *config.Provider, logger *logging.StructuredLogger) *Detector {
	return &Detector{provider: provider, logger: logger.WithComponent("anomaly")}
}

// Detect runs all passes over one metric's window. The series must
// hold points of a single kind in time order. A missing threshold
// table yields an InvalidMetricConfigurationError.
func (d *Detector) Detect(series health.MetricSeries) ([]health.Anomaly, error) {
	if len(series) == 0 {
		return nil, nil
	}
	kind := series[0].Kind
	thresholds, ok := d.provider.Get().Metric(kind)
	if !ok {
		return nil, hwerrors.NewInvalidMetricConfiguration(string(kind))
	}

	anomalies := rangePass(series, thresholds)
	if len(series) >= skipPassesBelow {
		anomalies = append(anomalies, statisticalPass(series, thresholds)...)
		anomalies = append(anomalies, rapidChangePass(series, thresholds)...)
	}

	rank(anomalies)
	return anomalies, nil
}

// DetectAll runs Detect for every kind, skipping unconfigured kinds
// with a log line and honoring ctx between kinds. Partial results up
// to a cancellation are returned with the context error.
func (d *Detector) DetectAll(ctx context.Context, windows map[health.MetricKind]health.MetricSeries) ([]health.Anomaly, error) {
	kinds := make([]health.MetricKind, 0, len(windows))
	for kind := range windows {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	var all []health.Anomaly
	for _, kind := range kinds {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		found, err := d.Detect(windows[kind])
		if err != nil {
			d.logger.Warn("skipping metric kind", "metric_kind", kind, "error", err)
			continue
		}
		all = append(all, found...)
	}
	rank(all)
	return all, nil
}

// rangePass flags readings outside the configured physiological range.
// Severity is high once the reading sits further from the range
// midpoint than 30% of the full range span on both sides.
func rangePass(series health.MetricSeries, t config.MetricThresholds) []health.Anomaly {
	width := t.RangeMax - t.RangeMin
	mid := t.RangeMin + width/2
	highCutoff := 0.3 * 2 * width

	var out []health.Anomaly
	for _, p := range series {
		if p.Value >= t.RangeMin && p.Value <= t.RangeMax {
			continue
		}
		severity := health.AnomalyMedium
		if math.Abs(p.Value-mid) > highCutoff {
			severity = health.AnomalyHigh
		}
		out = append(out, health.Anomaly{
			Kind:        p.Kind,
			Value:       p.Value,
			Timestamp:   p.Timestamp,
			AnomalyKind: health.AnomalyRangeViolation,
			Severity:    severity,
			RangeMin:    t.RangeMin,
			RangeMax:    t.RangeMax,
			Explanation: fmt.Sprintf("%.1f outside expected range %.1f-%.1f", p.Value, t.RangeMin, t.RangeMax),
		})
	}
	return out
}

// statisticalPass flags readings whose Z-score against the window
// exceeds the configured sensitivity. A zero-variance window produces
// all-zero scores and therefore no outliers.
func statisticalPass(series health.MetricSeries, t config.MetricThresholds) []health.Anomaly {
	if len(series) < statMinPoints {
		return nil
	}
	scores := stats.ZScores(series.Values())

	var out []health.Anomaly
	for i, z := range scores {
		if math.Abs(z) <= t.ZScoreThreshold {
			continue
		}
		severity := health.AnomalyMedium
		if math.Abs(z) > 1.5*t.ZScoreThreshold {
			severity = health.AnomalyHigh
		}
		p := series[i]
		out = append(out, health.Anomaly{
			Kind:        p.Kind,
			Value:       p.Value,
			Timestamp:   p.Timestamp,
			AnomalyKind: health.AnomalyStatisticalOutlier,
			Severity:    severity,
			ZScore:      z,
			Explanation: fmt.Sprintf("%.1f is %.1f standard deviations from the window mean", p.Value, z),
		})
	}
	return out
}

// rapidChangePass flags chronologically adjacent jumps larger than the
// configured percent-change rate.
func rapidChangePass(series health.MetricSeries, t config.MetricThresholds) []health.Anomaly {
	var out []health.Anomaly
	for i := 1; i < len(series); i++ {
		prev := series[i-1]
		cur := series[i]
		if prev.Value == 0 {
			continue
		}
		change := (cur.Value - prev.Value) / math.Abs(prev.Value) * 100
		if math.Abs(change) <= t.RapidChangePct {
			continue
		}
		severity := health.AnomalyMedium
		if math.Abs(change) > 1.5*t.RapidChangePct {
			severity = health.AnomalyHigh
		}
		out = append(out, health.Anomaly{
			Kind:          cur.Kind,
			Value:         cur.Value,
			Timestamp:     cur.Timestamp,
			AnomalyKind:   health.AnomalyRapidChange,
			Severity:      severity,
			PercentChange: change,
			Explanation:   fmt.Sprintf("%.1f%% change from previous reading %.1f", change, prev.Value),
		})
	}
	return out
}

// rank orders anomalies high before medium, then chronologically.
func rank(anomalies []health.Anomaly) {
	sort.SliceStable(anomalies, func(i, j int) bool {
		if anomalies[i].Severity != anomalies[j].Severity {
			return anomalies[i].Severity == health.AnomalyHigh
		}
		return anomalies[i].Timestamp.Before(anomalies[j].Timestamp)
	})
}
