package pattern

import (
	"math"

	"github.com/vitalgrid/healthwatch/pkg/health"
	"github.com/vitalgrid/healthwatch/pkg/stats"
)

// DetectPatterns evaluates the daily, weekly, seasonal, and habit
// hypotheses for one metric's series. Hypotheses whose minimum sample
// count is not met are reported as not detected with zero strength.
func (e *Engine) DetectPatterns(series health.MetricSeries) []health.PatternResult {
	cfg := e.provider.Get().Pattern

	kind := health.KindUnknown
	if len(series) > 0 {
		kind = series[0].Kind
	}

	daily := e.detect(series, health.PatternDaily, cfg.DailyMinSamples, cfg.DailyCutoff, hourOfDay)
	weekly := e.detect(series, health.PatternWeekly, cfg.WeeklyMinSamples, cfg.WeeklyCutoff, dayOfWeek)
	seasonal := e.detect(series, health.PatternSeasonal, cfg.SeasonalMinSamples, cfg.SeasonalCutoff, monthOfYear)

	results := []health.PatternResult{daily, weekly, seasonal}
	for i := range results {
		results[i].Kind = kind
	}

	// Habit reuses the intraday and intraweek detectors over a larger
	// minimum window: a habit is a daily or weekly rhythm with enough
	// history behind it.
	habit := health.PatternResult{Kind: kind, Pattern: health.PatternHabit}
	if len(series) >= cfg.HabitMinSamples {
		habit.Strength = math.Max(daily.Strength, weekly.Strength)
		habit.Confidence = math.Max(daily.Confidence, weekly.Confidence)
		habit.Detected = daily.Detected || weekly.Detected
	}
	results = append(results, habit)

	return results
}

// DetectPattern evaluates a single hypothesis.
func (e *Engine) DetectPattern(series health.MetricSeries, pt health.PatternType) health.PatternResult {
	for _, r := range e.DetectPatterns(series) {
		if r.Pattern == pt {
			return r
		}
	}
	return health.PatternResult{Pattern: pt}
}

func (e *Engine) detect(series health.MetricSeries, pt health.PatternType, minSamples int, cutoff float64, group func(series health.MetricSeries, i int) int) health.PatternResult {
	result := health.PatternResult{Pattern: pt}
	if len(series) < minSamples {
		return result
	}

	values := series.Values()
	result.Strength = stats.GroupedVariance(values, func(i int) int {
		return group(series, i)
	})
	result.Detected = result.Strength > cutoff

	// Spectral power over the same window corroborates the grouped
	// variance signal without changing the detection decision.
	spectral := stats.DominantPeriod(values).Power
	result.Confidence = math.Min(1, float64(len(series))/100+result.Strength+0.25*spectral)

	return result
}

func hourOfDay(series health.MetricSeries, i int) int {
	return series[i].Timestamp.Hour()
}

func dayOfWeek(series health.MetricSeries, i int) int {
	return int(series[i].Timestamp.Weekday())
}

func monthOfYear(series health.MetricSeries, i int) int {
	return int(series[i].Timestamp.Month())
}
