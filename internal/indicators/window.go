// Package indicators holds the technical indicators used by the strategies.
//
// Every exported function returns a series of the same length as its input
// with no NaN or Inf: undefined warm-up values come back as 0. The lowercase
// helpers keep NaN so that indicators can be chained before the final fill.
package indicators

import "math"

var nan = math.NaN()

func undefined(v float64) bool { return math.IsNaN(v) || math.IsInf(v, 0) }

func nans(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = nan
	}
	return out
}

// zeroFill replaces NaN and Inf with 0 in place.
func zeroFill(xs []float64) []float64 {
	for i, v := range xs {
		if undefined(v) {
			xs[i] = 0
		}
	}
	return xs
}

// backFill gives each NaN the next defined value after it.
func backFill(xs []float64) []float64 {
	next := nan
	for i := len(xs) - 1; i >= 0; i-- {
		if math.IsNaN(xs[i]) {
			xs[i] = next
		} else {
			next = xs[i]
		}
	}
	return xs
}

// ewm is an exponentially weighted mean. adjust=true weights every past
// observation by (1-alpha)^k and normalises by the weight sum; adjust=false is
// the plain recursion y = (1-alpha)*y + alpha*x seeded with the first value.
// NaN inputs decay the old weight without contributing. Output is NaN until
// minPeriods observations have been seen.
func ewm(xs []float64, alpha float64, adjust bool, minPeriods int) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	if minPeriods < 1 {
		minPeriods = 1
	}
	newWt := 1.0
	if !adjust {
		newWt = alpha
	}
	oldWt := 1.0

	weighted := xs[0]
	nobs := 0
	if !math.IsNaN(weighted) {
		nobs = 1
	}
	out[0] = maskObs(weighted, nobs, minPeriods)

	for i := 1; i < len(xs); i++ {
		cur := xs[i]
		observed := !math.IsNaN(cur)
		if observed {
			nobs++
		}
		switch {
		case !math.IsNaN(weighted):
			oldWt *= 1 - alpha
			if observed {
				if weighted != cur {
					weighted = (oldWt*weighted + newWt*cur) / (oldWt + newWt)
				}
				if adjust {
					oldWt += newWt
				} else {
					oldWt = 1
				}
			}
		case observed:
			weighted = cur
		}
		out[i] = maskObs(weighted, nobs, minPeriods)
	}
	return out
}

func maskObs(v float64, nobs, minPeriods int) float64 {
	if nobs < minPeriods {
		return nan
	}
	return v
}

// rolling applies fn to every full window of n values. A window that is not
// full or contains NaN yields NaN.
func rolling(xs []float64, n int, fn func(window []float64) float64) []float64 {
	out := nans(len(xs))
	if n < 1 {
		return out
	}
	for i := n - 1; i < len(xs); i++ {
		w := xs[i-n+1 : i+1]
		if hasNaN(w) {
			continue
		}
		out[i] = fn(w)
	}
	return out
}

func hasNaN(xs []float64) bool {
	for _, v := range xs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func mean(w []float64) float64 {
	s := 0.0
	for _, v := range w {
		s += v
	}
	return s / float64(len(w))
}

// sampleStd uses n-1 in the denominator.
func sampleStd(w []float64) float64 {
	if len(w) < 2 {
		return nan
	}
	m := mean(w)
	ss := 0.0
	for _, v := range w {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(w)-1))
}

func minOf(w []float64) float64 {
	m := w[0]
	for _, v := range w[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(w []float64) float64 {
	m := w[0]
	for _, v := range w[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func copyOf(xs []float64) []float64 {
	return append(make([]float64, 0, len(xs)), xs...)
}
