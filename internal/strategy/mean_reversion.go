package strategy

import (
	"fmt"

	"signal_bot/internal/models"
)

// MeanReversion buys an oversold outlier inside an uptrend: close under the
// lower Bollinger band but above the trend EMA, on a volume climax, with a
// Stochastic-RSI bullish cross in the oversold zone.
type MeanReversion struct {
	p Params
}

func NewMeanReversion(p Params) *MeanReversion {
	return &MeanReversion{p: p.withDefaults()}
}

func (s *MeanReversion) Kind() Kind   { return KindMeanReversion }
func (s *MeanReversion) Name() string { return "MeanReversion" }

func (s *MeanReversion) Analyze(series models.Series) (Result, error) {
	return s.evaluate(newFrame(series, s.p))
}

func (s *MeanReversion) evaluate(f *frame) (Result, error) {
	if f.n < s.p.MinMeanRevert {
		return wait("insufficient data", f), fmt.Errorf("%w: mean reversion needs %d candles, got %d",
			models.ErrDataUnavailable, s.p.MinMeanRevert, f.n)
	}
	i := f.last
	c := f.close[i]

	setup := c < f.bb.Lower[i]
	trend := c > f.ema200[i]
	climax := f.volume[i] > f.volSMA[i]*s.p.VolumeClimax
	crossUp := f.stochK[i-1] < f.stochD[i-1] && f.stochK[i] > f.stochD[i]
	trigger := crossUp && f.stochK[i] < s.p.StochOversold

	r := Result{
		Direction: models.DirectionWait,
		Source:    s.Name(),
		Debug: map[string]bool{
			"setup_bb":      setup,
			"trend_ema":     trend,
			"vol_climax":    climax,
			"trigger_stoch": trigger,
		},
		Metrics: f.metrics(i),
	}
	if setup && trend && climax && trigger {
		r.Direction = models.DirectionBuy
		r.Reason = fmt.Sprintf("BB lower pierced above EMA%d, volume x%.2f, StochRSI cross at %.1f",
			s.p.TrendEMA, r.Metrics.VolRatio, r.Metrics.StochK)
	} else {
		r.Reason = "no mean reversion setup"
	}
	return r, nil
}

func (s *MeanReversion) EntryParams(r Result) (models.EntryPlan, bool) {
	return atrEntry(s.p, r)
}
