package strategy

import (
	"fmt"

	"signal_bot/internal/indicators"
	"signal_bot/internal/models"
)

const (
	htfFast = 50
	htfSlow = 200
)

// Engine runs the spot evaluator chosen by the selector and the futures
// breakout rules over the same indicator frame.
type Engine struct {
	p          Params
	selector   Selector
	combined   bool
	squeeze    *Squeeze
	tv         *TrendVelocity
	evaluators map[Kind]Evaluator
}

// NewEngine wires every evaluator kind. With combined set, assets that would
// get mean reversion are evaluated by Combined instead.
func NewEngine(p Params, sel Selector, combined bool) *Engine {
	p = p.withDefaults()
	e := &Engine{
		p:          p,
		selector:   sel,
		combined:   combined,
		squeeze:    NewSqueeze(p),
		tv:         NewTrendVelocity(p),
		evaluators: make(map[Kind]Evaluator),
	}
	for _, k := range []Kind{KindMeanReversion, KindTrendVelocity, KindSqueeze, KindGrid, KindScalping, KindCombined} {
		e.evaluators[k] = NewEvaluator(k, p)
	}
	return e
}

func (e *Engine) Params() Params { return e.p }

func (e *Engine) Squeeze() *Squeeze { return e.squeeze }

// Analyze evaluates the last bar of series for asset. It fails with
// ErrDataUnavailable when the series is too short for the futures rules; a
// spot evaluator that lacks data only leaves the spot side empty.
func (e *Engine) Analyze(asset string, series models.Series, state models.SystemState) (models.Analysis, error) {
	out := models.Analysis{
		Asset:   asset,
		Futures: models.DirectionWait,
		Debug:   map[string]bool{},
	}
	if series.Empty() {
		return out, fmt.Errorf("%w: no candles for %s", models.ErrDataUnavailable, asset)
	}
	f := newFrame(series, e.p)
	out.Metrics = f.metrics(f.last)
	out.VolatilityIndex = f.volatilityIndex(e.p)

	flags := state.EnabledStrategies
	if flags == nil {
		flags = models.DefaultSystemState().EnabledStrategies
	}
	kind := e.selector.Select(asset, out.VolatilityIndex, flags)
	if kind == KindMeanReversion && e.combined {
		kind = KindCombined
	}
	ev := e.evaluators[kind]
	out.Strategy = ev.Name()

	spot, err := ev.evaluate(f)
	switch {
	case err != nil:
		out.SpotReason = err.Error()
	case kind == KindMeanReversion && !flags[models.FlagMeanReversion]:
		out.SpotReason = "mean reversion disabled"
	default:
		out.SpotSignal = spot.Buy()
		out.SpotReason = spot.Reason
		if sz, ok := ev.(Sizer); ok && out.SpotSignal {
			if plan, ok := sz.EntryParams(Result{Metrics: out.Metrics}); ok {
				out.SpotPlan = &plan
			}
		}
	}
	for k, v := range spot.Debug {
		out.Debug[k] = v
	}

	if f.n < e.p.MinTrend {
		out.FuturesReason = "insufficient data"
		return out, fmt.Errorf("%w: %s has %d candles, futures rules need %d",
			models.ErrDataUnavailable, asset, f.n, e.p.MinTrend)
	}
	out.Futures, out.FuturesReason = e.futures(f, out.Debug)
	return out, nil
}

// futures orders the rules: breakout up, breakdown, exhaustion of both sides,
// then the single-side exits.
func (e *Engine) futures(f *frame, debug map[string]bool) (models.Direction, string) {
	i := f.last
	sq := e.squeeze.at(f, i)
	for k, v := range sq.Debug {
		debug[k] = v
	}
	longExit, longWhy := e.tv.longExit(f, i)
	shortExit, shortWhy := e.tv.shortExit(f, i)
	debug["long_exit"] = longExit
	debug["short_exit"] = shortExit

	switch {
	case sq.Direction == models.DirectionBuy, sq.Direction == models.DirectionShort:
		return sq.Direction, sq.Reason
	case longExit && shortExit:
		return models.DirectionExitAll, longWhy
	case longExit:
		return models.DirectionCloseLong, longWhy
	case shortExit:
		return models.DirectionCloseShort, shortWhy
	}
	return models.DirectionWait, "no futures setup"
}

// Trend classifies a higher-timeframe series by close, EMA50 and EMA200.
func (e *Engine) Trend(series models.Series) models.Trend {
	if series.Len() < 2 {
		return models.TrendNeutral
	}
	c := series.Closes()
	fast := indicators.EMA(c, htfFast)
	slow := indicators.EMA(c, htfSlow)
	i := len(c) - 1
	switch {
	case c[i] > fast[i] && fast[i] > slow[i]:
		return models.TrendBull
	case c[i] < fast[i] && fast[i] < slow[i]:
		return models.TrendBear
	}
	return models.TrendNeutral
}

