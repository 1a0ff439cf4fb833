package indicators

import "math"

// DMI holds the directional movement system.
type DMI struct {
	ADX     []float64
	PlusDI  []float64
	MinusDI []float64
}

// ADX computes +DI, -DI and ADX with Wilder smoothing. A directional move
// counts only when it is positive and strictly larger than the opposite one.
func ADX(high, low, close []float64, period int) DMI {
	n := len(close)
	if !sameLen(high, low, close) || period < 1 {
		return DMI{ADX: make([]float64, n), PlusDI: make([]float64, n), MinusDI: make([]float64, n)}
	}
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}
	tr := wilder(trueRange(high, low, close), period)
	pSmooth := wilder(plusDM, period)
	mSmooth := wilder(minusDM, period)

	plus := make([]float64, n)
	minus := make([]float64, n)
	dx := make([]float64, n)
	for i := 0; i < n; i++ {
		plus[i] = 100 * pSmooth[i] / tr[i]
		minus[i] = 100 * mSmooth[i] / tr[i]
		dx[i] = 100 * math.Abs(plus[i]-minus[i]) / (plus[i] + minus[i])
		if math.IsInf(dx[i], 0) {
			dx[i] = nan
		}
	}
	adx := wilder(dx, period)
	return DMI{ADX: zeroFill(adx), PlusDI: zeroFill(plus), MinusDI: zeroFill(minus)}
}

// Rising reports xs[i] > xs[i-1]; false on the first bar.
func Rising(xs []float64, i int) bool {
	if i < 1 || i >= len(xs) {
		return false
	}
	return xs[i] > xs[i-1]
}
