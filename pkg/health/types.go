// Package health defines the domain model shared by all analytics
// components: metric kinds, time-series points, stream events, and the
// result types produced by the trend, anomaly, correlation, and risk
// engines.
package health

import (
	"time"
)

// MetricKind identifies a physiological metric tracked for a user.
type MetricKind string

const (
	KindHeartRate       MetricKind = "heart_rate"
	KindSystolicBP      MetricKind = "systolic_bp"
	KindDiastolicBP     MetricKind = "diastolic_bp"
	KindSpO2            MetricKind = "spo2"
	KindTemperature     MetricKind = "temperature"
	KindRespiratoryRate MetricKind = "respiratory_rate"
	KindGlucose         MetricKind = "glucose"
	KindSteps           MetricKind = "steps"
	KindSleepHours      MetricKind = "sleep_hours"
	KindWeight          MetricKind = "weight"

	// KindUnknown is the fallback for metric kinds this build does not
	// recognize. Analytics skip unknown kinds instead of failing.
	KindUnknown MetricKind = "unknown"
)

var knownKinds = map[MetricKind]struct{}{
	KindHeartRate:       {},
	KindSystolicBP:      {},
	KindDiastolicBP:     {},
	KindSpO2:            {},
	KindTemperature:     {},
	KindRespiratoryRate: {},
	KindGlucose:         {},
	KindSteps:           {},
	KindSleepHours:      {},
	KindWeight:          {},
}

// ParseMetricKind maps a raw string to a MetricKind, returning
// KindUnknown for anything unrecognized.
func ParseMetricKind(s string) MetricKind {
	k := MetricKind(s)
	if _, ok := knownKinds[k]; ok {
		return k
	}
	return KindUnknown
}

// Known reports whether the kind is part of the closed enumeration.
func (k MetricKind) Known() bool {
	_, ok := knownKinds[k]
	return ok
}

func (k MetricKind) String() string { return string(k) }

// MetricPoint is a single observed value for one metric. Points are
// immutable once read from the store; analytics borrow them read-only.
type MetricPoint struct {
	Timestamp time.Time  `json:"timestamp"`
	Kind      MetricKind `json:"metric_kind"`
	Value     float64    `json:"value"`
	Unit      string     `json:"unit"`
}

// MetricSeries is a time-ascending sequence of points for one
// (user, metric kind) pair. No two points share a timestamp.
type MetricSeries []MetricPoint

// Values returns the raw values of the series in order.
func (s MetricSeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Timestamps returns the point timestamps in order.
func (s MetricSeries) Timestamps() []time.Time {
	out := make([]time.Time, len(s))
	for i, p := range s {
		out[i] = p.Timestamp
	}
	return out
}

// ElapsedDays converts the series timestamps to fractional days since
// the first point, the x-axis used for trend regression.
func (s MetricSeries) ElapsedDays() []float64 {
	out := make([]float64, len(s))
	if len(s) == 0 {
		return out
	}
	t0 := s[0].Timestamp
	for i, p := range s {
		out[i] = p.Timestamp.Sub(t0).Hours() / 24
	}
	return out
}

// TrendDirection classifies the movement of a metric over time.
type TrendDirection string

const (
	TrendIncreasing   TrendDirection = "increasing"
	TrendDecreasing   TrendDirection = "decreasing"
	TrendStable       TrendDirection = "stable"
	TrendFluctuating  TrendDirection = "fluctuating"
	TrendInsufficient TrendDirection = "insufficient_data"
)

// Significance bands a regression p-value into confidence tiers.
type Significance string

const (
	SignificanceHigh   Significance = "high"
	SignificanceMedium Significance = "medium"
	SignificanceLow    Significance = "low"
	SignificanceNone   Significance = "none"
)

// TrendResult is the outcome of one trend analysis call. It is not
// persisted by the core.
type TrendResult struct {
	Kind         MetricKind     `json:"metric_kind"`
	Direction    TrendDirection `json:"direction"`
	Slope        float64        `json:"slope"`
	RSquared     float64        `json:"r_squared"`
	PValue       float64        `json:"p_value"`
	Confidence   float64        `json:"confidence"` // 0-100
	Significance Significance   `json:"significance"`
	SampleSize   int            `json:"sample_size"`
}

// AnomalyKind names the detector pass that flagged a point.
type AnomalyKind string

const (
	AnomalyRangeViolation     AnomalyKind = "range_violation"
	AnomalyStatisticalOutlier AnomalyKind = "statistical_outlier"
	AnomalyRapidChange        AnomalyKind = "rapid_change"
)

// AnomalySeverity ranks a detected anomaly.
type AnomalySeverity string

const (
	AnomalyMedium AnomalySeverity = "medium"
	AnomalyHigh   AnomalySeverity = "high"
)

// Anomaly is a single flagged reading with its supporting statistics.
// A point may carry multiple anomalies of different kinds.
type Anomaly struct {
	Kind        MetricKind      `json:"metric_kind"`
	Value       float64         `json:"value"`
	Timestamp   time.Time       `json:"timestamp"`
	AnomalyKind AnomalyKind     `json:"kind"`
	Severity    AnomalySeverity `json:"severity"`
	Explanation string          `json:"explanation"`

	// Supporting statistics; which fields are set depends on AnomalyKind.
	ZScore        float64 `json:"z_score,omitempty"`
	RangeMin      float64 `json:"range_min,omitempty"`
	RangeMax      float64 `json:"range_max,omitempty"`
	PercentChange float64 `json:"percent_change,omitempty"`
}

// CorrelationStrength tiers the absolute Pearson coefficient.
type CorrelationStrength string

const (
	CorrelationWeak     CorrelationStrength = "weak"
	CorrelationModerate CorrelationStrength = "moderate"
	CorrelationStrong   CorrelationStrength = "strong"
)

// CorrelationResult reports the relationship between two metrics.
type CorrelationResult struct {
	MetricA     MetricKind          `json:"metric_a"`
	MetricB     MetricKind          `json:"metric_b"`
	Coefficient float64             `json:"coefficient"` // [-1, 1]
	Strength    CorrelationStrength `json:"strength"`
	SampleSize  int                 `json:"sample_size"`
	Confidence  float64             `json:"confidence"` // [0, 1]
}

// PatternType names a periodicity hypothesis.
type PatternType string

const (
	PatternDaily    PatternType = "daily"
	PatternWeekly   PatternType = "weekly"
	PatternSeasonal PatternType = "seasonal"
	PatternHabit    PatternType = "habit"
)

// PatternResult reports whether a periodic pattern was detected and
// how pronounced it is.
type PatternResult struct {
	Kind       MetricKind  `json:"metric_kind"`
	Pattern    PatternType `json:"pattern_type"`
	Strength   float64     `json:"strength"`   // [0, 1]
	Confidence float64     `json:"confidence"` // [0, 1]
	Detected   bool        `json:"detected"`
}

// RiskCategory groups threshold rules by physiological system.
type RiskCategory string

const (
	RiskCardiovascular RiskCategory = "cardiovascular"
	RiskMetabolic      RiskCategory = "metabolic"
	RiskRespiratory    RiskCategory = "respiratory"
	RiskLifestyle      RiskCategory = "lifestyle"
)

// RiskLevel orders assessed risk from low to critical.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskAssessment is the evaluated risk for one category.
type RiskAssessment struct {
	Category            RiskCategory `json:"category"`
	Level               RiskLevel    `json:"level"`
	Probability         float64      `json:"probability"` // [0, 1]
	ContributingFactors []string     `json:"contributing_factors"`
	Mitigation          []string     `json:"mitigation"`
}

// MitigationPlan buckets recommended actions by urgency.
type MitigationPlan struct {
	Immediate []string `json:"immediate"`
	ShortTerm []string `json:"short_term"`
	LongTerm  []string `json:"long_term"`
}

// OverallRisk is the probability-weighted aggregate across categories.
type OverallRisk struct {
	Level       RiskLevel        `json:"level"`
	Score       float64          `json:"score"`
	Categories  []RiskAssessment `json:"categories"`
	Plan        MitigationPlan   `json:"mitigation_plan"`
	GeneratedAt time.Time        `json:"generated_at"`
}
