package strategy

import (
	"fmt"

	"signal_bot/internal/models"
)

// TrendVelocity buys an accelerating trend: price above HMA, +DI leading,
// a strong and rising ADX and RSI momentum above the midline.
type TrendVelocity struct {
	p Params
}

func NewTrendVelocity(p Params) *TrendVelocity {
	return &TrendVelocity{p: p.withDefaults()}
}

func (s *TrendVelocity) Kind() Kind   { return KindTrendVelocity }
func (s *TrendVelocity) Name() string { return "TrendVelocity" }

func (s *TrendVelocity) Analyze(series models.Series) (Result, error) {
	return s.evaluate(newFrame(series, s.p))
}

func (s *TrendVelocity) evaluate(f *frame) (Result, error) {
	if f.n < s.p.MinTrend {
		return wait("insufficient data", f), fmt.Errorf("%w: trend velocity needs %d candles, got %d",
			models.ErrDataUnavailable, s.p.MinTrend, f.n)
	}
	i := f.last
	adx := f.dmi.ADX

	trendHMA := f.close[i] > f.hma[i]
	diBullish := f.dmi.PlusDI[i] > f.dmi.MinusDI[i]
	adxStrong := adx[i] > s.p.ADXStrong
	adxRising := adx[i] > adx[i-1]
	momentum := f.rsi[i] > s.p.RSIMomentum

	r := Result{
		Direction: models.DirectionWait,
		Source:    s.Name(),
		Debug: map[string]bool{
			"trend_hma":    trendHMA,
			"di_bullish":   diBullish,
			"adx_strong":   adxStrong,
			"adx_rising":   adxRising,
			"momentum_rsi": momentum,
		},
		Metrics: f.metrics(i),
	}
	if trendHMA && diBullish && adxStrong && adxRising && momentum {
		r.Direction = models.DirectionBuy
		r.Reason = fmt.Sprintf("Trend velocity: ADX %.1f rising, RSI %.1f", adx[i], f.rsi[i])
	} else {
		r.Reason = "no trend velocity"
	}
	return r, nil
}

// longExit reports whether a long should be closed at bar i: price lost the
// HMA or ADX collapsed from above the exhaustion level.
func (s *TrendVelocity) longExit(f *frame, i int) (bool, string) {
	if f.close[i] < f.hma[i] {
		return true, "Trend Loss"
	}
	if f.adxExhausted(i, s.p) {
		return true, "ADX Exhaust"
	}
	return false, ""
}

func (s *TrendVelocity) shortExit(f *frame, i int) (bool, string) {
	if f.close[i] > f.hma[i] {
		return true, "Trend Reclaim"
	}
	if f.adxExhausted(i, s.p) {
		return true, "ADX Exhaust"
	}
	return false, ""
}

func (s *TrendVelocity) EntryParams(r Result) (models.EntryPlan, bool) {
	return atrEntry(s.p, r)
}
