package strategy

import (
	"math"

	"signal_bot/internal/indicators"
	"signal_bot/internal/models"
)

// frame holds every indicator of a series, computed once per evaluation.
type frame struct {
	series models.Series
	n      int
	last   int

	close, high, low, volume []float64

	ema200 []float64
	bb     indicators.Bands
	kc     indicators.Bands
	volSMA []float64
	rsi    []float64
	stochK []float64
	stochD []float64
	hma    []float64
	dmi    indicators.DMI
	atr    []float64
}

func newFrame(s models.Series, p Params) *frame {
	f := &frame{
		series: s,
		n:      s.Len(),
		last:   s.Len() - 1,
		close:  s.Closes(),
		high:   s.Highs(),
		low:    s.Lows(),
		volume: s.Volumes(),
	}
	f.ema200 = indicators.EMA(f.close, p.TrendEMA)
	f.bb = indicators.Bollinger(f.close, p.BBPeriod, p.BBStdDev)
	f.kc = indicators.Keltner(f.high, f.low, f.close, p.KeltnerPeriod, p.KeltnerMult)
	f.volSMA = indicators.SMA(f.volume, p.VolumePeriod)
	f.rsi = indicators.RSI(f.close, p.RSIPeriod)
	f.stochK, f.stochD = indicators.StochRSI(f.rsi, p.StochPeriod, p.StochK, p.StochD)
	f.hma = indicators.HMA(f.close, p.HMAPeriod)
	f.dmi = indicators.ADX(f.high, f.low, f.close, p.ADXPeriod)
	f.atr = indicators.ATR(f.high, f.low, f.close, p.ATRPeriod)
	return f
}

func (f *frame) volRatio(i int) float64 {
	if f.volSMA[i] <= 0 {
		return 0
	}
	return round2(f.volume[i] / f.volSMA[i])
}

func (f *frame) metrics(i int) models.Metrics {
	return models.Metrics{
		Close:    f.close[i],
		RSI:      f.rsi[i],
		ADX:      f.dmi.ADX[i],
		PlusDI:   f.dmi.PlusDI[i],
		MinusDI:  f.dmi.MinusDI[i],
		ATR:      f.atr[i],
		HMA:      f.hma[i],
		BBUpper:  f.bb.Upper[i],
		BBLower:  f.bb.Lower[i],
		EMA200:   f.ema200[i],
		StochK:   f.stochK[i],
		StochD:   f.stochD[i],
		VolRatio: f.volRatio(i),
	}
}

// squeezeWithin reports a Bollinger-inside-Keltner bar among the lookback
// bars before i, not counting i itself.
func (f *frame) squeezeWithin(i, lookback int) bool {
	if i < lookback {
		return false
	}
	for j := i - lookback; j < i; j++ {
		if f.bb.Inside(f.kc, j) {
			return true
		}
	}
	return false
}

func (f *frame) adxExhausted(i int, p Params) bool {
	return i >= 1 && f.dmi.ADX[i-1] > p.ADXExhaust && f.dmi.ADX[i] < p.ADXRelease
}

// volatilityIndex maps ATR/close onto 0..1.
func (f *frame) volatilityIndex(p Params) float64 {
	if f.n == 0 || f.close[f.last] <= 0 {
		return 0
	}
	v := (f.atr[f.last] / f.close[f.last]) / p.VolatilityRef
	return math.Min(1, math.Max(0, v))
}
