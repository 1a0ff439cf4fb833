package indicators

import "math"

// RSI smooths gains and losses with alpha = 1/period over adjusted weights and
// needs period observations before it is defined. A window with no losses
// reads 100; a flat window (0/0) reads 0 like any other undefined value.
func RSI(xs []float64, period int) []float64 {
	out := make([]float64, len(xs))
	if period < 1 || len(xs) == 0 {
		return out
	}
	gain := make([]float64, len(xs))
	loss := make([]float64, len(xs))
	for i := 1; i < len(xs); i++ {
		d := xs[i] - xs[i-1]
		switch {
		case d > 0:
			gain[i] = d
		case d < 0:
			loss[i] = -d
		}
	}
	alpha := 1 / float64(period)
	avgGain := ewm(gain, alpha, true, period)
	avgLoss := ewm(loss, alpha, true, period)

	for i := range out {
		g, l := avgGain[i], avgLoss[i]
		switch {
		case math.IsNaN(g) || math.IsNaN(l):
			out[i] = 0
		case l == 0 && g > 0:
			out[i] = 100
		case l == 0:
			out[i] = 0
		default:
			out[i] = 100 - 100/(1+g/l)
		}
	}
	return out
}

// StochRSI returns %K and %D over an RSI series, both scaled 0..100.
func StochRSI(rsi []float64, period, kPeriod, dPeriod int) (k, d []float64) {
	lo := rolling(rsi, period, minOf)
	hi := rolling(rsi, period, maxOf)
	raw := make([]float64, len(rsi))
	for i := range rsi {
		v := (rsi[i] - lo[i]) / (hi[i] - lo[i])
		if undefined(v) {
			v = 0
		}
		raw[i] = v * 100
	}
	kRaw := sma(raw, kPeriod)
	dRaw := sma(kRaw, dPeriod)
	return zeroFill(kRaw), zeroFill(dRaw)
}

type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

func MACD(xs []float64, fast, slow, signal int) MACDResult {
	f := ema(xs, fast)
	s := ema(xs, slow)
	line := make([]float64, len(xs))
	for i := range xs {
		line[i] = f[i] - s[i]
	}
	sig := ema(line, signal)
	hist := make([]float64, len(xs))
	for i := range xs {
		hist[i] = line[i] - sig[i]
	}
	return MACDResult{
		MACD:      zeroFill(line),
		Signal:    zeroFill(sig),
		Histogram: zeroFill(hist),
	}
}
