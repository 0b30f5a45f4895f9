package stats

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Periodicity is the dominant cycle found in a series by spectral
// analysis.
type Periodicity struct {
	// Period is the cycle length in samples (0 when no cycle stands out).
	Period float64
	// Power is the share of total spectral power in the dominant bin,
	// in [0, 1].
	Power float64
}

// DominantPeriod runs a real FFT over the mean-removed series and
// returns the strongest non-DC frequency component. Series shorter
// than four samples carry no usable spectrum and return the zero
// Periodicity.
func DominantPeriod(values []float64) Periodicity {
	n := len(values)
	if n < 4 {
		return Periodicity{}
	}

	mean := Mean(values)
	detrended := make([]float64, n)
	for i, v := range values {
		detrended[i] = v - mean
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, detrended)

	var total float64
	bestBin := 0
	bestPower := 0.0
	for k := 1; k < len(coeffs); k++ {
		p := cmplx.Abs(coeffs[k])
		p *= p
		total += p
		if p > bestPower {
			bestPower = p
			bestBin = k
		}
	}
	if total == 0 || bestBin == 0 {
		return Periodicity{}
	}

	return Periodicity{
		Period: float64(n) / float64(bestBin),
		Power:  bestPower / total,
	}
}

// Breakpoints finds structural mean shifts in a series. For each
// candidate split it scores the separation of the left and right
// segment means against the pooled deviation, then keeps score maxima
// above 2.0 that are at least minSegment apart. Returns the split
// indices in ascending order; nil when the series is too short or no
// shift stands out.
func Breakpoints(values []float64, minSegment int) []int {
	if minSegment < 2 {
		minSegment = 2
	}
	n := len(values)
	if n < 2*minSegment {
		return nil
	}

	scores := make([]float64, n)
	for i := minSegment; i <= n-minSegment; i++ {
		left := values[:i]
		right := values[i:]
		meanL, stdL := MeanStdDev(left)
		meanR, stdR := MeanStdDev(right)
		pooled := (stdL*float64(len(left)-1) + stdR*float64(len(right)-1)) / float64(n-2)
		if pooled == 0 {
			if meanL != meanR {
				scores[i] = 1e9
			}
			continue
		}
		diff := meanL - meanR
		if diff < 0 {
			diff = -diff
		}
		scores[i] = diff / pooled
	}

	var breaks []int
	last := -minSegment
	for i := minSegment; i <= n-minSegment; i++ {
		if scores[i] <= 2.0 {
			continue
		}
		// Keep only the local maximum of each run of candidates.
		if len(breaks) > 0 && i-last < minSegment {
			if scores[i] > scores[last] {
				breaks[len(breaks)-1] = i
				last = i
			}
			continue
		}
		breaks = append(breaks, i)
		last = i
	}
	return breaks
}
