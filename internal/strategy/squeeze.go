package strategy

import (
	"fmt"
	"time"

	"signal_bot/internal/models"
)

// Squeeze trades the expansion out of volatility compression. A breakout
// through the upper Bollinger band with trend and momentum is a BUY, its
// mirror through the lower band is a SHORT.
type Squeeze struct {
	p  Params
	tv *TrendVelocity
}

func NewSqueeze(p Params) *Squeeze {
	p = p.withDefaults()
	return &Squeeze{p: p, tv: NewTrendVelocity(p)}
}

func (s *Squeeze) Kind() Kind   { return KindSqueeze }
func (s *Squeeze) Name() string { return "SqueezeBreakout" }

func (s *Squeeze) Analyze(series models.Series) (Result, error) {
	return s.evaluate(newFrame(series, s.p))
}

func (s *Squeeze) evaluate(f *frame) (Result, error) {
	if f.n < s.p.MinTrend {
		return wait("insufficient data", f), fmt.Errorf("%w: squeeze needs %d candles, got %d",
			models.ErrDataUnavailable, s.p.MinTrend, f.n)
	}
	return s.at(f, f.last), nil
}

func (s *Squeeze) at(f *frame, i int) Result {
	c := f.close[i]
	adx := f.dmi.ADX

	recent := f.squeezeWithin(i, s.p.SqueezeLookback)
	adxRising := i >= 1 && adx[i] > adx[i-1]
	adxStrong := adx[i] > s.p.ADXStrong
	up := c > f.bb.Upper[i] && c > f.hma[i] && f.rsi[i] > s.p.RSIMomentum && adxRising
	down := c < f.bb.Lower[i] && c < f.hma[i] && f.rsi[i] < s.p.RSIMomentum && adxRising

	r := Result{
		Direction: models.DirectionWait,
		Source:    s.Name(),
		Debug: map[string]bool{
			"squeeze_recent": recent,
			"breakout_up":    up,
			"breakout_down":  down,
			"adx_rising":     adxRising,
			"adx_strong":     adxStrong,
		},
		Metrics: f.metrics(i),
	}
	reason := ""
	switch {
	case recent:
		reason = "Squeeze Break"
	case adxStrong:
		reason = "Velocity Break"
	}
	switch {
	case up && reason != "":
		r.Direction = models.DirectionBuy
		r.Reason = reason
	case down && reason != "":
		r.Direction = models.DirectionShort
		r.Reason = reason
	}
	return r
}

// Marker is one bar of a historical scan that produced an entry or exit.
type Marker struct {
	Time   time.Time `json:"time"`
	Side   string    `json:"side"`
	Reason string    `json:"reason"`
	Close  float64   `json:"close"`
}

const (
	MarkerBuy  = "buy"
	MarkerSell = "sell"
)

// ScanBreakouts replays the long side over every bar once the trend EMA has
// warmed up. An exit on the same bar overrides an entry.
func (s *Squeeze) ScanBreakouts(series models.Series) []Marker {
	f := newFrame(series, s.p)
	var out []Marker
	for i := s.p.TrendEMA; i < f.n; i++ {
		side, reason := "", ""
		if r := s.at(f, i); r.Direction == models.DirectionBuy {
			side, reason = MarkerBuy, r.Reason
		}
		if ok, why := s.tv.longExit(f, i); ok {
			side, reason = MarkerSell, why
		}
		if side == "" {
			continue
		}
		out = append(out, Marker{
			Time:   series.Candles[i].Time,
			Side:   side,
			Reason: reason,
			Close:  f.close[i],
		})
	}
	return out
}
