package sessions

import (
	"errors"
	"fmt"

	"signal_bot/internal/models"

	"github.com/shopspring/decimal"
)

// ErrOrderTooSmall is returned when the sized order falls under the exchange
// minimums. The session state is left untouched.
var ErrOrderTooSmall = errors.New("order below exchange minimum")

// Limits are the process-wide risk bounds every session is held to.
type Limits struct {
	MaxLeverage int
	ATRStopMult float64
	RewardRisk  float64
}

func DefaultLimits() Limits {
	return Limits{MaxLeverage: 125, ATRStopMult: 1.5, RewardRisk: 2}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxLeverage <= 0 {
		l.MaxLeverage = d.MaxLeverage
	}
	if l.ATRStopMult <= 0 {
		l.ATRStopMult = d.ATRStopMult
	}
	if l.RewardRisk <= 0 {
		l.RewardRisk = d.RewardRisk
	}
	return l
}

// Plan is a fully sized futures entry.
type Plan struct {
	Symbol     string
	Side       models.PositionState
	Entry      float64
	Quantity   float64
	StopLoss   float64
	TakeProfit float64
	Margin     float64
	Notional   float64
	Leverage   int
}

func (p Plan) Request() models.OpenRequest {
	return models.OpenRequest{
		Symbol:     p.Symbol,
		Side:       p.Side,
		Quantity:   p.Quantity,
		StopLoss:   p.StopLoss,
		TakeProfit: p.TakeProfit,
		Leverage:   p.Leverage,
	}
}

// planFutures sizes an entry:
//
//	margin   = free × max_capital_pct
//	notional = margin × leverage
//	qty      = floor(notional / price, step)
//
// The stop sits ATRStopMult×ATR away when atr > 0, otherwise stop_loss_pct of
// the price. The take-profit is RewardRisk times the stop distance.
func planFutures(
	symbol string,
	side models.PositionState,
	price float64,
	free float64,
	atr float64,
	cfg models.SessionConfig,
	f models.SymbolFilter,
	lim Limits,
) (Plan, error) {
	if side != models.PositionLong && side != models.PositionShort {
		return Plan{}, fmt.Errorf("%w: side %q", models.ErrConfigValidation, side)
	}
	if price <= 0 {
		return Plan{}, fmt.Errorf("%w: price %v for %s", models.ErrDataUnavailable, price, symbol)
	}
	if free <= 0 {
		return Plan{}, fmt.Errorf("%w: no free margin", ErrOrderTooSmall)
	}

	lev := cfg.Leverage
	if lev < 1 {
		lev = 1
	}
	if lev > lim.MaxLeverage {
		lev = lim.MaxLeverage
	}

	px := decimal.NewFromFloat(price)
	margin := decimal.NewFromFloat(free).Mul(decimal.NewFromFloat(cfg.MaxCapitalPct))
	notional := margin.Mul(decimal.NewFromInt(int64(lev)))
	qty := floorToStep(notional.Div(px), f.StepSize)

	if qty.LessThanOrEqual(decimal.Zero) || qty.LessThan(decimal.NewFromFloat(f.MinQty)) {
		return Plan{}, fmt.Errorf("%w: qty %s < min %v for %s", ErrOrderTooSmall, qty, f.MinQty, symbol)
	}
	if f.MinNotional > 0 && qty.Mul(px).LessThan(decimal.NewFromFloat(f.MinNotional)) {
		return Plan{}, fmt.Errorf("%w: notional %s < %v for %s", ErrOrderTooSmall, qty.Mul(px).StringFixed(2), f.MinNotional, symbol)
	}

	var dist decimal.Decimal
	if atr > 0 {
		dist = decimal.NewFromFloat(atr).Mul(decimal.NewFromFloat(lim.ATRStopMult))
	} else {
		dist = px.Mul(decimal.NewFromFloat(cfg.StopLossPct))
	}
	reward := dist.Mul(decimal.NewFromFloat(lim.RewardRisk))

	stop, take := px.Sub(dist), px.Add(reward)
	if side == models.PositionShort {
		stop, take = px.Add(dist), px.Sub(reward)
	}
	stop = roundToTick(stop, f.TickSize)
	take = roundToTick(take, f.TickSize)
	if stop.LessThanOrEqual(decimal.Zero) {
		stop = decimal.Zero
	}
	if take.LessThanOrEqual(decimal.Zero) {
		take = decimal.Zero
	}

	return Plan{
		Symbol:     symbol,
		Side:       side,
		Entry:      price,
		Quantity:   qty.InexactFloat64(),
		StopLoss:   stop.InexactFloat64(),
		TakeProfit: take.InexactFloat64(),
		Margin:     margin.InexactFloat64(),
		Notional:   qty.Mul(px).InexactFloat64(),
		Leverage:   lev,
	}, nil
}

// spotQuote is the quote amount of a spot buy, rounded down to cents.
func spotQuote(free float64, cfg models.SessionConfig, f models.SymbolFilter) (float64, error) {
	q := decimal.NewFromFloat(free).Mul(decimal.NewFromFloat(cfg.SpotAllocationPct)).RoundDown(2)
	if q.LessThanOrEqual(decimal.Zero) {
		return 0, fmt.Errorf("%w: spot allocation is empty", ErrOrderTooSmall)
	}
	if f.MinNotional > 0 && q.LessThan(decimal.NewFromFloat(f.MinNotional)) {
		return 0, fmt.Errorf("%w: %s < %v", ErrOrderTooSmall, q.StringFixed(2), f.MinNotional)
	}
	return q.InexactFloat64(), nil
}

func floorToStep(v decimal.Decimal, step float64) decimal.Decimal {
	if step <= 0 {
		return v.Truncate(8)
	}
	s := decimal.NewFromFloat(step)
	return v.Div(s).Floor().Mul(s)
}

func roundToTick(v decimal.Decimal, tick float64) decimal.Decimal {
	if tick <= 0 {
		return v.Round(8)
	}
	t := decimal.NewFromFloat(tick)
	return v.Div(t).Round(0).Mul(t)
}
