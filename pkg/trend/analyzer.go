// Package trend classifies metric series as increasing, decreasing,
// stable, or fluctuating by regressing values on elapsed time and
// weighing the statistical significance of the fit.
package trend

import (
	"math"

	"github.com/vitalgrid/healthwatch/pkg/health"
	"github.com/vitalgrid/healthwatch/pkg/stats"
)

// MinPoints is the smallest series a trend can be computed over.
// Shorter series yield the insufficient-data sentinel, not an error.
const MinPoints = 5

// Analyzer classifies trends. It is stateless and safe for concurrent
// use.
type Analyzer struct{}

// NewAnalyzer returns a trend analyzer.
func NewAnalyzer() *Analyzer { return &Analyzer{} }

// Analyze regresses the series values on elapsed days and classifies
// the direction.
//
// Direction policy: a p-value above 0.1 means the slope is not
// statistically distinguishable from zero, so the trend is stable
// regardless of its magnitude. A significant fit with r-squared below
// 0.1 moves, but not linearly: fluctuating. Otherwise the slope sign
// decides.
func (a *Analyzer) Analyze(series health.MetricSeries) health.TrendResult {
	kind := health.KindUnknown
	if len(series) > 0 {
		kind = series[0].Kind
	}
	if len(series) < MinPoints {
		return health.TrendResult{
			Kind:         kind,
			Direction:    health.TrendInsufficient,
			Significance: health.SignificanceNone,
			PValue:       1,
			SampleSize:   len(series),
		}
	}

	reg, err := stats.LinearRegression(series.ElapsedDays(), series.Values())
	if err != nil {
		// Unreachable given the MinPoints guard, but the sentinel is
		// still the right answer if it ever fires.
		return health.TrendResult{
			Kind:         kind,
			Direction:    health.TrendInsufficient,
			Significance: health.SignificanceNone,
			PValue:       1,
			SampleSize:   len(series),
		}
	}

	direction := classify(reg)

	return health.TrendResult{
		Kind:         kind,
		Direction:    direction,
		Slope:        reg.Slope,
		RSquared:     reg.RSquared,
		PValue:       reg.PValue,
		Confidence:   confidence(reg, len(series)),
		Significance: significance(reg.PValue),
		SampleSize:   len(series),
	}
}

func classify(reg stats.Regression) health.TrendDirection {
	switch {
	case reg.PValue > 0.1:
		return health.TrendStable
	case reg.RSquared < 0.1:
		return health.TrendFluctuating
	case reg.Slope > 0:
		return health.TrendIncreasing
	default:
		return health.TrendDecreasing
	}
}

// confidence blends fit quality with significance and sample bonuses,
// capped at 100.
func confidence(reg stats.Regression, sampleSize int) float64 {
	c := reg.RSquared * 100

	switch {
	case reg.PValue < 0.01:
		c += 10
	case reg.PValue < 0.05:
		c += 5
	}

	switch {
	case sampleSize >= 14:
		c += 5
	case sampleSize >= MinPoints:
		c += 2
	}

	return math.Min(100, c)
}

func significance(p float64) health.Significance {
	switch {
	case p < 0.01:
		return health.SignificanceHigh
	case p < 0.05:
		return health.SignificanceMedium
	case p < 0.1:
		return health.SignificanceLow
	default:
		return health.SignificanceNone
	}
}
