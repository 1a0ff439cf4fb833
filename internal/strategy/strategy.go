package strategy

import (
	"math"

	"signal_bot/internal/models"
)

// Kind is the closed set of evaluators the selector can pick.
type Kind string

const (
	KindMeanReversion Kind = "MEAN_REVERSION"
	KindTrendVelocity Kind = "TREND_VELOCITY"
	KindSqueeze       Kind = "SQUEEZE_BREAKOUT"
	KindGrid          Kind = "GRID"
	KindScalping      Kind = "SCALPING"
	KindCombined      Kind = "COMBINED"
)

// Result is the verdict of one evaluator on the last bar of a series.
type Result struct {
	Direction models.Direction
	Reason    string
	// Source names the evaluator that fired inside Combined.
	Source  string
	Debug   map[string]bool
	Metrics models.Metrics
}

func (r Result) Buy() bool { return r.Direction == models.DirectionBuy }

// Evaluator is implemented only inside this package.
type Evaluator interface {
	Kind() Kind
	Name() string
	Analyze(s models.Series) (Result, error)

	evaluate(f *frame) (Result, error)
}

// Sizer is optional; evaluators that know their stop distance implement it.
// ok is false when the result carries no usable ATR.
type Sizer interface {
	EntryParams(r Result) (plan models.EntryPlan, ok bool)
}

func atrEntry(p Params, r Result) (models.EntryPlan, bool) {
	m := r.Metrics
	if m.Close <= 0 || m.ATR <= 0 {
		return models.EntryPlan{Entry: m.Close}, false
	}
	risk := p.ATRStopMult * m.ATR
	return models.EntryPlan{
		Entry:      m.Close,
		StopLoss:   max(m.Close-risk, 0),
		TakeProfit: m.Close + p.RewardRisk*risk,
	}, true
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func wait(reason string, f *frame) Result {
	r := Result{Direction: models.DirectionWait, Reason: reason, Debug: map[string]bool{}}
	if f != nil && f.n > 0 {
		r.Metrics = f.metrics(f.last)
	}
	return r
}
