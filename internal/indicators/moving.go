package indicators

import "math"

// SMA is the rolling mean over period values.
func SMA(xs []float64, period int) []float64 {
	return zeroFill(sma(xs, period))
}

func sma(xs []float64, period int) []float64 {
	return rolling(xs, period, mean)
}

// EMA uses span=period (alpha = 2/(period+1)) seeded with the first price.
func EMA(xs []float64, period int) []float64 {
	return zeroFill(ema(xs, period))
}

func ema(xs []float64, period int) []float64 {
	if period < 1 {
		return nans(len(xs))
	}
	return ewm(xs, 2/(float64(period)+1), false, 0)
}

// WMA weights the window 1..period, the most recent bar heaviest.
func WMA(xs []float64, period int) []float64 {
	return zeroFill(wma(xs, period))
}

func wma(xs []float64, period int) []float64 {
	denom := float64(period*(period+1)) / 2
	return rolling(xs, period, func(w []float64) float64 {
		s := 0.0
		for i, v := range w {
			s += v * float64(i+1)
		}
		return s / denom
	})
}

// HMA is the Hull moving average: WMA(sqrt n) of 2*WMA(n/2) - WMA(n).
func HMA(xs []float64, period int) []float64 {
	return zeroFill(hma(xs, period))
}

func hma(xs []float64, period int) []float64 {
	half := period / 2
	root := int(math.Sqrt(float64(period)))
	if half < 1 || root < 1 {
		return nans(len(xs))
	}
	wHalf := wma(xs, half)
	wFull := wma(xs, period)
	raw := make([]float64, len(xs))
	for i := range xs {
		raw[i] = 2*wHalf[i] - wFull[i]
	}
	return wma(raw, root)
}
