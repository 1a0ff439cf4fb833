package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"signal_bot/internal/models"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/tracing"

	"github.com/opentracing/opentracing-go"
)

const quoteAsset = "USDT"

// Execute runs one dispatch action for this session.
func (s *Session) Execute(ctx context.Context, action models.Action, asset string, atr float64) (string, error) {
	switch action {
	case models.ActionOpenLong:
		return s.ExecuteLong(ctx, asset, atr)
	case models.ActionOpenShort:
		return s.ExecuteShort(ctx, asset, atr)
	case models.ActionClose:
		return s.ExecuteClose(ctx, asset)
	case models.ActionSpotBuy:
		return s.ExecuteSpotBuy(ctx, asset)
	}
	return "", fmt.Errorf("%w: unknown action %q", models.ErrConfigValidation, action)
}

// ExecuteLong opens a long futures position. atr <= 0 falls back to the
// session's stop_loss_pct.
func (s *Session) ExecuteLong(ctx context.Context, asset string, atr float64) (string, error) {
	return s.open(ctx, asset, models.PositionLong, atr)
}

func (s *Session) ExecuteShort(ctx context.Context, asset string, atr float64) (string, error) {
	return s.open(ctx, asset, models.PositionShort, atr)
}

func (s *Session) open(ctx context.Context, asset string, side models.PositionState, atr float64) (string, error) {
	s.execMu.Lock()
	defer s.execMu.Unlock()
	return s.openLocked(ctx, asset, side, atr)
}

// openLocked ожидает, что execMu уже захвачен.
func (s *Session) openLocked(ctx context.Context, asset string, side models.PositionState, atr float64) (msg string, err error) {
	span, ctx := tracing.StartSpan(ctx, "session.open", opentracing.Tags{"asset": asset, "side": string(side)})
	defer func() { tracing.Finish(span, err) }()

	client, cfg, err := s.exchange()
	if err != nil {
		return "", err
	}

	price, err := client.Price(ctx, asset)
	if err != nil {
		return "", models.NewTradingError("price", asset, err)
	}
	filter, err := client.FuturesFilter(ctx, asset)
	if err != nil {
		return "", models.NewTradingError("filters", asset, err)
	}
	bal, err := client.FuturesBalance(ctx)
	if err != nil {
		return "", models.NewTradingError("balance", asset, err)
	}

	plan, err := planFutures(asset, side, price, bal.Free, atr, cfg, filter, s.limits)
	if err != nil {
		return "", err
	}

	if err = client.SetLeverage(ctx, asset, plan.Leverage); err != nil {
		return "", models.NewTradingError("leverage", asset, err)
	}
	order, err := client.OpenPosition(ctx, plan.Request())
	if err != nil {
		return "", models.NewTradingError("open", asset, err)
	}

	logger.Info("session %d opened %s %s qty=%v lev=%d", s.chatID, side, asset, plan.Quantity, plan.Leverage)
	return fmt.Sprintf("✅ %s %s opened\nqty %v @ %v (x%d)\nSL %v | TP %v\norder %s",
		side, asset, plan.Quantity, plan.Entry, plan.Leverage, plan.StopLoss, plan.TakeProfit, order.OrderID), nil
}

// ExecuteClose closes every open position on asset. No position is not an
// error.
func (s *Session) ExecuteClose(ctx context.Context, asset string) (msg string, err error) {
	span, ctx := tracing.StartSpan(ctx, "session.close", opentracing.Tags{"asset": asset})
	defer func() { tracing.Finish(span, err) }()

	s.execMu.Lock()
	defer s.execMu.Unlock()

	client, _, err := s.exchange()
	if err != nil {
		return "", err
	}
	positions, err := client.Positions(ctx)
	if err != nil {
		return "", models.NewTradingError("positions", asset, err)
	}
	return s.closeLocked(ctx, client, asset, positions)
}

func (s *Session) closeLocked(ctx context.Context, client Exchange, asset string, positions []models.Position) (string, error) {
	var closed []string
	for _, p := range positions {
		if p.Symbol != asset || p.Size == 0 {
			continue
		}
		if _, err := client.ClosePosition(ctx, p); err != nil {
			return "", models.NewTradingError("close", asset, err)
		}
		closed = append(closed, fmt.Sprintf("%s %s %v", p.Side, p.Symbol, p.Size))
	}
	if len(closed) == 0 {
		return fmt.Sprintf("ℹ️ no open position on %s", asset), nil
	}
	logger.Info("session %d closed %s", s.chatID, asset)
	return "✅ closed " + strings.Join(closed, ", "), nil
}

// ExecuteCloseAll закрывает все открытые позиции. Ошибка по одной не
// останавливает остальные, все ошибки склеиваются в одну.
func (s *Session) ExecuteCloseAll(ctx context.Context) (msg string, err error) {
	span, ctx := tracing.StartSpan(ctx, "session.close_all", nil)
	defer func() { tracing.Finish(span, err) }()

	s.execMu.Lock()
	defer s.execMu.Unlock()

	client, _, err := s.exchange()
	if err != nil {
		return "", err
	}
	positions, err := client.Positions(ctx)
	if err != nil {
		return "", models.NewTradingError("positions", "", err)
	}

	var (
		closed []string
		errs   []error
	)
	for _, p := range positions {
		if p.Size == 0 {
			continue
		}
		if _, cerr := client.ClosePosition(ctx, p); cerr != nil {
			errs = append(errs, models.NewTradingError("close", p.Symbol, cerr))
			continue
		}
		closed = append(closed, p.Symbol)
	}

	switch {
	case len(closed) == 0 && len(errs) == 0:
		msg = "ℹ️ no open positions"
	case len(closed) > 0:
		msg = "✅ closed " + strings.Join(closed, ", ")
	}
	return msg, errors.Join(errs...)
}

// ExecuteSell закрывает открытый лонг по активу, иначе открывает шорт.
// Позиции читаются под execMu, иначе два параллельных SELL откроют два шорта.
func (s *Session) ExecuteSell(ctx context.Context, asset string, atr float64) (string, error) {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	client, _, err := s.exchange()
	if err != nil {
		return "", err
	}
	positions, err := client.Positions(ctx)
	if err != nil {
		return "", models.NewTradingError("positions", asset, err)
	}
	for _, p := range positions {
		if p.Symbol == asset && p.Side == models.PositionLong && p.Size > 0 {
			return s.closeLocked(ctx, client, asset, positions)
		}
	}
	return s.openLocked(ctx, asset, models.PositionShort, atr)
}

// ExecuteSpotBuy spends spot_allocation_pct of the free quote balance.
func (s *Session) ExecuteSpotBuy(ctx context.Context, asset string) (msg string, err error) {
	span, ctx := tracing.StartSpan(ctx, "session.spot_buy", opentracing.Tags{"asset": asset})
	defer func() { tracing.Finish(span, err) }()

	s.execMu.Lock()
	defer s.execMu.Unlock()

	client, cfg, err := s.exchange()
	if err != nil {
		return "", err
	}
	bal, err := client.SpotBalance(ctx, quoteAsset)
	if err != nil {
		return "", models.NewTradingError("spot balance", asset, err)
	}
	filter, err := client.SpotFilter(ctx, asset)
	if err != nil {
		return "", models.NewTradingError("spot filters", asset, err)
	}
	quote, err := spotQuote(bal.Free, cfg, filter)
	if err != nil {
		return "", err
	}
	order, err := client.SpotMarketBuy(ctx, asset, quote)
	if err != nil {
		return "", models.NewTradingError("spot buy", asset, err)
	}

	logger.Info("session %d spot buy %s quote=%v", s.chatID, asset, quote)
	return fmt.Sprintf("✅ spot BUY %s for %v %s\nqty %v @ %v\norder %s",
		asset, quote, quoteAsset, order.Quantity, order.Price, order.OrderID), nil
}

// Wallet is the account summary shown by /wallet.
type Wallet struct {
	Futures   models.Balance
	Spot      models.Balance
	Positions []models.Position
}

func (s *Session) Wallet(ctx context.Context) (w Wallet, err error) {
	client, _, err := s.exchange()
	if err != nil {
		return Wallet{}, err
	}
	if w.Futures, err = client.FuturesBalance(ctx); err != nil {
		return Wallet{}, models.NewTradingError("balance", "", err)
	}
	if w.Spot, err = client.SpotBalance(ctx, quoteAsset); err != nil {
		return Wallet{}, models.NewTradingError("spot balance", "", err)
	}
	positions, err := client.Positions(ctx)
	if err != nil {
		return Wallet{}, models.NewTradingError("positions", "", err)
	}
	for _, p := range positions {
		if p.Size != 0 {
			w.Positions = append(w.Positions, p)
		}
	}
	return w, nil
}
