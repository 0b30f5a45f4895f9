// Package config supplies the configuration surface consumed by the
// analytics core: per-metric threshold tables, correlation and pattern
// cutoffs, and stream processor tuning. Components receive a snapshot
// at construction; nothing reads hard-coded globals.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/vitalgrid/healthwatch/pkg/health"
)

// MetricThresholds is the per-metric-kind detection table.
type MetricThresholds struct {
	// Physiologically plausible range for the range-violation pass.
	RangeMin float64 `yaml:"range_min"`
	RangeMax float64 `yaml:"range_max"`
	// Point-to-point percent change that counts as a rapid change.
	RapidChangePct float64 `yaml:"rapid_change_pct"`
	// Z-score magnitude that counts as a statistical outlier.
	ZScoreThreshold float64 `yaml:"z_score_threshold"`
	// Static stream thresholds checked on every incoming point,
	// independent of the adaptive baseline.
	StaticWarning  float64 `yaml:"static_warning"`
	StaticCritical float64 `yaml:"static_critical"`
}

// CorrelationConfig tunes the pairwise correlation engine.
type CorrelationConfig struct {
	MinSamples        int      `yaml:"min_samples"`
	CoefficientCutoff float64  `yaml:"coefficient_cutoff"`
	AlignmentWindow   Duration `yaml:"alignment_window"`
}

// PatternConfig tunes periodicity detection. Daily and weekly cutoffs
// are looser than seasonal because intraday and intraweek noise runs
// higher.
type PatternConfig struct {
	DailyCutoff        float64 `yaml:"daily_cutoff"`
	WeeklyCutoff       float64 `yaml:"weekly_cutoff"`
	SeasonalCutoff     float64 `yaml:"seasonal_cutoff"`
	DailyMinSamples    int     `yaml:"daily_min_samples"`
	WeeklyMinSamples   int     `yaml:"weekly_min_samples"`
	SeasonalMinSamples int     `yaml:"seasonal_min_samples"`
	HabitMinSamples    int     `yaml:"habit_min_samples"`
}

// StreamConfig tunes the real-time stream processor.
type StreamConfig struct {
	WindowCapacity    int      `yaml:"window_capacity"`
	AlertCooldown     Duration `yaml:"alert_cooldown"`
	IdleTTL           Duration `yaml:"idle_ttl"` // 0 disables idle-stream eviction
	TrendMinEvents    int      `yaml:"trend_min_events"`
	TrendSlopeCutoff  float64  `yaml:"trend_slope_cutoff"`
	AnomalyMinEvents  int      `yaml:"anomaly_min_events"`
	AnomalyZCutoff    float64  `yaml:"anomaly_z_cutoff"`
	AdaptiveMinPoints int      `yaml:"adaptive_min_points"`
}

// Thresholds is the complete analytics configuration object.
type Thresholds struct {
	Metrics     map[health.MetricKind]MetricThresholds `yaml:"metrics"`
	Correlation CorrelationConfig                      `yaml:"correlation"`
	Pattern     PatternConfig                          `yaml:"pattern"`
	Stream      StreamConfig                           `yaml:"stream"`
}

// Metric returns the threshold table for a kind, reporting whether one
// is configured. Detectors skip unconfigured kinds.
func (t *Thresholds) Metric(kind health.MetricKind) (MetricThresholds, bool) {
	m, ok := t.Metrics[kind]
	return m, ok
}

// Defaults returns the stock configuration. The literal detection
// constants are carried over from prior operational use and are not
// clinically validated; deployments are expected to override them.
func Defaults() *Thresholds {
	return &Thresholds{
		Metrics: map[health.MetricKind]MetricThresholds{
			health.KindHeartRate: {
				RangeMin: 40, RangeMax: 150, RapidChangePct: 30,
				ZScoreThreshold: 2.0, StaticWarning: 100, StaticCritical: 130,
			},
			health.KindSystolicBP: {
				RangeMin: 90, RangeMax: 140, RapidChangePct: 20,
				ZScoreThreshold: 2.0, StaticWarning: 140, StaticCritical: 180,
			},
			health.KindDiastolicBP: {
				RangeMin: 60, RangeMax: 90, RapidChangePct: 20,
				ZScoreThreshold: 2.0, StaticWarning: 90, StaticCritical: 120,
			},
			health.KindSpO2: {
				RangeMin: 90, RangeMax: 100, RapidChangePct: 5,
				ZScoreThreshold: 2.5, StaticWarning: 94, StaticCritical: 90,
			},
			health.KindTemperature: {
				RangeMin: 35, RangeMax: 39, RapidChangePct: 5,
				ZScoreThreshold: 2.5, StaticWarning: 38, StaticCritical: 39.5,
			},
			health.KindRespiratoryRate: {
				RangeMin: 8, RangeMax: 25, RapidChangePct: 25,
				ZScoreThreshold: 2.0, StaticWarning: 22, StaticCritical: 28,
			},
			health.KindGlucose: {
				RangeMin: 60, RangeMax: 200, RapidChangePct: 30,
				ZScoreThreshold: 2.0, StaticWarning: 180, StaticCritical: 250,
			},
			health.KindSteps: {
				RangeMin: 0, RangeMax: 50000, RapidChangePct: 300,
				ZScoreThreshold: 2.5, StaticWarning: 40000, StaticCritical: 50000,
			},
			health.KindSleepHours: {
				RangeMin: 0, RangeMax: 16, RapidChangePct: 80,
				ZScoreThreshold: 2.5, StaticWarning: 3, StaticCritical: 2,
			},
			health.KindWeight: {
				RangeMin: 30, RangeMax: 250, RapidChangePct: 5,
				ZScoreThreshold: 2.5, StaticWarning: 0, StaticCritical: 0,
			},
		},
		Correlation: CorrelationConfig{
			MinSamples:        5,
			CoefficientCutoff: 0.3,
			AlignmentWindow:   Duration(30 * time.Minute),
		},
		Pattern: PatternConfig{
			DailyCutoff:        0.05,
			WeeklyCutoff:       0.05,
			SeasonalCutoff:     0.1,
			DailyMinSamples:    7,
			WeeklyMinSamples:   7,
			SeasonalMinSamples: 30,
			HabitMinSamples:    14,
		},
		Stream: StreamConfig{
			WindowCapacity:    100,
			AlertCooldown:     Duration(time.Hour),
			IdleTTL:           Duration(24 * time.Hour),
			TrendMinEvents:    5,
			TrendSlopeCutoff:  0.1,
			AnomalyMinEvents:  10,
			AnomalyZCutoff:    2.5,
			AdaptiveMinPoints: 10,
		},
	}
}

// Validate rejects tables that would make the detectors misbehave.
func (t *Thresholds) Validate() error {
	for kind, m := range t.Metrics {
		if m.RangeMax <= m.RangeMin {
			return fmt.Errorf("metric %s: range_max %.2f must exceed range_min %.2f", kind, m.RangeMax, m.RangeMin)
		}
		if m.RapidChangePct <= 0 {
			return fmt.Errorf("metric %s: rapid_change_pct must be positive", kind)
		}
		if m.ZScoreThreshold <= 0 {
			return fmt.Errorf("metric %s: z_score_threshold must be positive", kind)
		}
	}
	if t.Correlation.MinSamples < 2 {
		return fmt.Errorf("correlation.min_samples must be at least 2")
	}
	if t.Correlation.CoefficientCutoff < 0 || t.Correlation.CoefficientCutoff > 1 {
		return fmt.Errorf("correlation.coefficient_cutoff must be in [0,1]")
	}
	if t.Stream.WindowCapacity <= 0 {
		return fmt.Errorf("stream.window_capacity must be positive")
	}
	if t.Stream.AlertCooldown < 0 {
		return fmt.Errorf("stream.alert_cooldown must not be negative")
	}
	return nil
}

// ServiceConfig is the process-level configuration read from the
// environment, separate from the analytics configuration in Thresholds.
type ServiceConfig struct {
	HTTPAddr       string
	RedisAddr      string
	RedisDB        int
	LogLevel       string
	LogFormat      string
	ThresholdsPath string
}

// LoadFromEnv reads service configuration with defaults.
func LoadFromEnv() *ServiceConfig {
	cfg := &ServiceConfig{
		HTTPAddr:       getEnvOrDefault("HEALTHWATCH_HTTP_ADDR", ":8080"),
		RedisAddr:      getEnvOrDefault("HEALTHWATCH_REDIS_ADDR", ""),
		LogLevel:       getEnvOrDefault("HEALTHWATCH_LOG_LEVEL", "info"),
		LogFormat:      getEnvOrDefault("HEALTHWATCH_LOG_FORMAT", "json"),
		ThresholdsPath: getEnvOrDefault("HEALTHWATCH_THRESHOLDS_PATH", ""),
	}
	if v := os.Getenv("HEALTHWATCH_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.RedisDB = db
		}
	}
	return cfg
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
