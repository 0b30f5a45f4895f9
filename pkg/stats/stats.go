// Package stats is the pure statistics kernel shared by the trend,
// anomaly, pattern, and streaming components. Every function is
// deterministic and side-effect free, and "no signal" conditions
// (zero variance, mismatched lengths) yield neutral values rather
// than errors: a false "no anomaly" is preferable to failing a batch
// of analyses over one degenerate series.
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	hwerrors "github.com/vitalgrid/healthwatch/pkg/errors"
)

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the sample standard deviation (n-1), or 0 when fewer
// than two values are given.
func StdDev(values []float64) float64 {
	_, sd := MeanStdDev(values)
	return sd
}

// MeanStdDev returns the mean and sample standard deviation in one
// pass over the data.
func MeanStdDev(values []float64) (mean, std float64) {
	n := len(values)
	if n == 0 {
		return 0, 0
	}
	mean = Mean(values)
	if n < 2 {
		return mean, 0
	}
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(n-1))
}

// ZScores returns the Z-score of every value against the slice's own
// mean and sample standard deviation. A zero-variance series yields
// all zeros, so no statistical outliers are signaled.
func ZScores(values []float64) []float64 {
	scores := make([]float64, len(values))
	mean, std := MeanStdDev(values)
	if std == 0 {
		return scores
	}
	for i, v := range values {
		scores[i] = (v - mean) / std
	}
	return scores
}

// Regression holds an ordinary-least-squares fit of y on x.
type Regression struct {
	Slope     float64
	Intercept float64
	RSquared  float64
	PValue    float64
}

// LinearRegression fits y = intercept + slope*x by ordinary least
// squares and reports the two-sided p-value of the slope under the
// t-distribution with n-2 degrees of freedom. Fewer than two points
// is an insufficient-data error; a zero-variance x yields the neutral
// fit (slope 0, p 1).
func LinearRegression(x, y []float64) (Regression, error) {
	n := len(x)
	if n != len(y) {
		if len(y) < n {
			n = len(y)
		}
		return Regression{}, hwerrors.NewInsufficientData(2, n)
	}
	if n < 2 {
		return Regression{}, hwerrors.NewInsufficientData(2, n)
	}

	meanX := Mean(x)
	meanY := Mean(y)

	var sxx, sxy float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		sxx += dx * dx
		sxy += dx * (y[i] - meanY)
	}
	if sxx == 0 {
		return Regression{Intercept: meanY, PValue: 1}, nil
	}

	slope := sxy / sxx
	intercept := meanY - slope*meanX

	var sse, sst float64
	for i := 0; i < n; i++ {
		resid := y[i] - (intercept + slope*x[i])
		sse += resid * resid
		dy := y[i] - meanY
		sst += dy * dy
	}

	r2 := 0.0
	if sst > 0 {
		r2 = 1 - sse/sst
		if r2 < 0 {
			r2 = 0
		}
	}

	return Regression{
		Slope:     slope,
		Intercept: intercept,
		RSquared:  r2,
		PValue:    slopePValue(slope, sse, sxx, n),
	}, nil
}

// slopePValue is the two-sided test of slope != 0.
func slopePValue(slope, sse, sxx float64, n int) float64 {
	df := float64(n - 2)
	if df < 1 {
		return 1
	}
	if sse <= 0 {
		// Perfect fit: the slope estimate has zero residual error.
		if slope == 0 {
			return 1
		}
		return 0
	}
	se := math.Sqrt((sse / df) / sxx)
	t := math.Abs(slope / se)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * (1 - dist.CDF(t))
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p
}

// Pearson returns the Pearson correlation coefficient of x and y.
// Mismatched lengths, fewer than two points, or zero variance on
// either side all return 0: callers treat "no correlation" as the
// safe default, so this function never errors.
func Pearson(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return 0
	}
	meanX := Mean(x)
	meanY := Mean(y)
	var sxx, syy, sxy float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	denom := math.Sqrt(sxx * syy)
	if denom == 0 {
		return 0
	}
	r := sxy / denom
	if r > 1 {
		r = 1
	}
	if r < -1 {
		r = -1
	}
	return r
}

// GroupedVariance measures periodicity strength: the variance of
// per-group means normalized by the squared overall mean, clipped to
// [0, 1]. key maps a value's index to its group (hour of day, weekday,
// month). Fewer than two distinct groups, or a zero overall mean,
// yields 0.
func GroupedVariance(values []float64, key func(i int) int) float64 {
	if len(values) == 0 {
		return 0
	}
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for i, v := range values {
		g := key(i)
		sums[g] += v
		counts[g]++
	}
	if len(sums) < 2 {
		return 0
	}

	overall := Mean(values)
	if overall == 0 {
		return 0
	}

	groupMeans := make([]float64, 0, len(sums))
	for g, sum := range sums {
		groupMeans = append(groupMeans, sum/float64(counts[g]))
	}

	meanOfMeans := Mean(groupMeans)
	var ss float64
	for _, m := range groupMeans {
		d := m - meanOfMeans
		ss += d * d
	}
	variance := ss / float64(len(groupMeans))

	strength := variance / (overall * overall)
	if strength > 1 {
		strength = 1
	}
	return strength
}
