package indicators

import "math"

// Bands is an upper/middle/lower envelope.
type Bands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Inside reports whether b sits strictly inside outer at bar i.
func (b Bands) Inside(outer Bands, i int) bool {
	return b.Upper[i] < outer.Upper[i] && b.Lower[i] > outer.Lower[i]
}

// Bollinger is SMA ± k sample standard deviations. The warm-up is back-filled
// from the first defined bar.
func Bollinger(xs []float64, period int, k float64) Bands {
	mid := sma(xs, period)
	std := rolling(xs, period, sampleStd)
	up := make([]float64, len(xs))
	lo := make([]float64, len(xs))
	for i := range xs {
		up[i] = mid[i] + k*std[i]
		lo[i] = mid[i] - k*std[i]
	}
	return Bands{
		Upper:  zeroFill(backFill(up)),
		Middle: zeroFill(backFill(mid)),
		Lower:  zeroFill(backFill(lo)),
	}
}

// trueRange uses high-low on the first bar.
func trueRange(high, low, close []float64) []float64 {
	tr := make([]float64, len(close))
	for i := range close {
		tr[i] = high[i] - low[i]
		if i == 0 {
			continue
		}
		tr[i] = math.Max(tr[i], math.Max(math.Abs(high[i]-close[i-1]), math.Abs(low[i]-close[i-1])))
	}
	return tr
}

// wilder is the recursive smoothing with alpha = 1/period.
func wilder(xs []float64, period int) []float64 {
	if period < 1 {
		return nans(len(xs))
	}
	return ewm(xs, 1/float64(period), false, 0)
}

func sameLen(high, low, close []float64) bool {
	return len(high) == len(close) && len(low) == len(close)
}

// ATR is the Wilder-smoothed true range.
func ATR(high, low, close []float64, period int) []float64 {
	if !sameLen(high, low, close) {
		return make([]float64, len(close))
	}
	return zeroFill(wilder(trueRange(high, low, close), period))
}

// Keltner is EMA(period) ± mult·ATR(period).
func Keltner(high, low, close []float64, period int, mult float64) Bands {
	n := len(close)
	if !sameLen(high, low, close) {
		return Bands{Upper: make([]float64, n), Middle: make([]float64, n), Lower: make([]float64, n)}
	}
	mid := ema(close, period)
	atr := wilder(trueRange(high, low, close), period)
	up := make([]float64, n)
	lo := make([]float64, n)
	for i := range close {
		up[i] = mid[i] + mult*atr[i]
		lo[i] = mid[i] - mult*atr[i]
	}
	return Bands{Upper: zeroFill(up), Middle: zeroFill(mid), Lower: zeroFill(lo)}
}
