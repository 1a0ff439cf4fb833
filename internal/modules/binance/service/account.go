package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/opentracing/opentracing-go"
	"github.com/patrickmn/go-cache"

	"signal_bot/internal/models"
	"signal_bot/internal/runner/sessions"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/tracing"
)

// Account is one user's USDT-M futures and spot account.
type Account struct {
	futures *futures.Client
	spot    *binance.Client
	timeout time.Duration
	// symbol rules are the same for every account
	filters *cache.Cache
}

// Factory builds accounts that share one symbol-rule cache.
type Factory struct {
	timeout time.Duration
	filters *cache.Cache
}

func NewFactory(timeout, cacheTTL time.Duration) *Factory {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &Factory{timeout: timeout, filters: cache.New(cacheTTL, 2*cacheTTL)}
}

// New matches sessions.ClientFactory.
func (f *Factory) New(creds models.Credentials, proxyURL string) (sessions.Exchange, error) {
	if creds.Empty() {
		return nil, fmt.Errorf("%w: missing API keys", models.ErrConfigValidation)
	}
	fc := futures.NewClient(creds.APIKey, creds.APISecret)
	sc := binance.NewClient(creds.APIKey, creds.APISecret)
	if proxyURL != "" {
		hc, err := proxiedHTTPClient(proxyURL, f.timeout)
		if err != nil {
			return nil, err
		}
		fc.HTTPClient = hc
		sc.HTTPClient = hc
	}
	return &Account{futures: fc, spot: sc, timeout: f.timeout, filters: f.filters}, nil
}

func (a *Account) call(ctx context.Context, op, symbol string) (context.Context, func(*error)) {
	span, ctx := tracing.StartSpan(ctx, "binance."+op, opentracing.Tags{"symbol": symbol})
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	return ctx, func(err *error) {
		cancel()
		*err = models.NewTradingError(op, symbol, *err)
		tracing.Finish(span, *err)
	}
}

func (a *Account) FuturesBalance(ctx context.Context) (b models.Balance, err error) {
	ctx, done := a.call(ctx, "futures balance", "")
	defer done(&err)

	balances, err := a.futures.NewGetBalanceService().Do(ctx)
	if err != nil {
		return models.Balance{}, err
	}
	for _, x := range balances {
		if x.Asset == "USDT" {
			return models.Balance{
				Asset:      x.Asset,
				Free:       parseFloat(x.AvailableBalance),
				Total:      parseFloat(x.Balance),
				Unrealized: parseFloat(x.CrossUnPnl),
			}, nil
		}
	}
	return models.Balance{Asset: "USDT"}, nil
}

func (a *Account) SpotBalance(ctx context.Context, asset string) (b models.Balance, err error) {
	ctx, done := a.call(ctx, "spot balance", asset)
	defer done(&err)

	acc, err := a.spot.NewGetAccountService().Do(ctx)
	if err != nil {
		return models.Balance{}, err
	}
	for _, x := range acc.Balances {
		if x.Asset == asset {
			free, locked := parseFloat(x.Free), parseFloat(x.Locked)
			return models.Balance{Asset: asset, Free: free, Total: free + locked}, nil
		}
	}
	return models.Balance{Asset: asset}, nil
}

// Positions lists the non-empty futures positions.
func (a *Account) Positions(ctx context.Context) (out []models.Position, err error) {
	ctx, done := a.call(ctx, "positions", "")
	defer done(&err)

	risks, err := a.futures.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range risks {
		amt := parseFloat(r.PositionAmt)
		if amt == 0 {
			continue
		}
		lev, _ := strconv.Atoi(r.Leverage)
		out = append(out, models.Position{
			Symbol:        r.Symbol,
			Side:          positionSide(amt),
			Size:          abs(amt),
			EntryPrice:    parseFloat(r.EntryPrice),
			MarkPrice:     parseFloat(r.MarkPrice),
			UnrealizedPnL: parseFloat(r.UnRealizedProfit),
			Leverage:      lev,
		})
	}
	return out, nil
}

func (a *Account) Price(ctx context.Context, symbol string) (p float64, err error) {
	ctx, done := a.call(ctx, "price", symbol)
	defer done(&err)

	prices, err := a.futures.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("empty price list")
	}
	return parseFloat(prices[0].Price), nil
}

func (a *Account) FuturesFilter(ctx context.Context, symbol string) (f models.SymbolFilter, err error) {
	key := "futures:" + symbol
	if v, ok := a.filters.Get(key); ok {
		return v.(models.SymbolFilter), nil
	}
	ctx, done := a.call(ctx, "futures exchange info", symbol)
	defer done(&err)

	info, err := a.futures.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return models.SymbolFilter{}, err
	}
	found := false
	for _, s := range info.Symbols {
		sf := parseFilters(s.Symbol, s.Filters)
		a.filters.Set("futures:"+s.Symbol, sf, cache.DefaultExpiration)
		if s.Symbol == symbol {
			f, found = sf, true
		}
	}
	if !found {
		return models.SymbolFilter{}, fmt.Errorf("%w: unknown futures symbol", models.ErrDataUnavailable)
	}
	return f, nil
}

func (a *Account) SpotFilter(ctx context.Context, symbol string) (f models.SymbolFilter, err error) {
	key := "spot:" + symbol
	if v, ok := a.filters.Get(key); ok {
		return v.(models.SymbolFilter), nil
	}
	ctx, done := a.call(ctx, "spot exchange info", symbol)
	defer done(&err)

	info, err := a.spot.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	if err != nil {
		return models.SymbolFilter{}, err
	}
	for _, s := range info.Symbols {
		if s.Symbol == symbol {
			f = parseFilters(s.Symbol, s.Filters)
			a.filters.Set(key, f, cache.DefaultExpiration)
			return f, nil
		}
	}
	return models.SymbolFilter{}, fmt.Errorf("%w: unknown spot symbol", models.ErrDataUnavailable)
}

func (a *Account) SetLeverage(ctx context.Context, symbol string, leverage int) (err error) {
	ctx, done := a.call(ctx, "leverage", symbol)
	defer done(&err)

	_, err = a.futures.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx)
	return err
}

// OpenPosition places the market entry and then the reduce-only stop and
// take-profit orders. A failed protective order is reported but the entry
// stays.
func (a *Account) OpenPosition(ctx context.Context, req models.OpenRequest) (o models.Order, err error) {
	ctx, done := a.call(ctx, "open", req.Symbol)
	defer done(&err)

	f, err := a.FuturesFilter(ctx, req.Symbol)
	if err != nil {
		return models.Order{}, err
	}
	side, exit := futures.SideTypeBuy, futures.SideTypeSell
	if req.Side == models.PositionShort {
		side, exit = futures.SideTypeSell, futures.SideTypeBuy
	}

	qty := formatQty(req.Quantity, f.StepSize)
	res, err := a.futures.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(qty).
		Do(ctx)
	if err != nil {
		return models.Order{}, err
	}
	o = models.Order{
		OrderID:  orderID(res.OrderID),
		Symbol:   req.Symbol,
		Side:     string(side),
		Quantity: req.Quantity,
		Price:    parseFloat(res.AvgPrice),
	}

	if req.StopLoss > 0 {
		if _, serr := a.futures.NewCreateOrderService().
			Symbol(req.Symbol).
			Side(exit).
			Type(futures.OrderTypeStopMarket).
			StopPrice(formatQty(req.StopLoss, f.TickSize)).
			ClosePosition(true).
			Do(ctx); serr != nil {
			return o, fmt.Errorf("stop loss: %w", serr)
		}
	}
	if req.TakeProfit > 0 {
		if _, terr := a.futures.NewCreateOrderService().
			Symbol(req.Symbol).
			Side(exit).
			Type(futures.OrderTypeTakeProfitMarket).
			StopPrice(formatQty(req.TakeProfit, f.TickSize)).
			ClosePosition(true).
			Do(ctx); terr != nil {
			return o, fmt.Errorf("take profit: %w", terr)
		}
	}
	return o, nil
}

// ClosePosition flattens a position with a reduce-only market order and
// cancels its leftover protective orders.
func (a *Account) ClosePosition(ctx context.Context, p models.Position) (o models.Order, err error) {
	ctx, done := a.call(ctx, "close", p.Symbol)
	defer done(&err)

	f, err := a.FuturesFilter(ctx, p.Symbol)
	if err != nil {
		return models.Order{}, err
	}
	side := futures.SideTypeSell
	if p.Side == models.PositionShort {
		side = futures.SideTypeBuy
	}
	res, err := a.futures.NewCreateOrderService().
		Symbol(p.Symbol).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(formatQty(p.Size, f.StepSize)).
		ReduceOnly(true).
		Do(ctx)
	if err != nil {
		return models.Order{}, err
	}
	if cerr := a.futures.NewCancelAllOpenOrdersService().Symbol(p.Symbol).Do(ctx); cerr != nil {
		logger.Warn("close %s: cancel open orders: %v", p.Symbol, cerr)
	}

	return models.Order{
		OrderID:  orderID(res.OrderID),
		Symbol:   p.Symbol,
		Side:     string(side),
		Quantity: p.Size,
		Price:    parseFloat(res.AvgPrice),
	}, nil
}

// SpotMarketBuy spends quote USDT on symbol.
func (a *Account) SpotMarketBuy(ctx context.Context, symbol string, quote float64) (o models.Order, err error) {
	ctx, done := a.call(ctx, "spot buy", symbol)
	defer done(&err)

	res, err := a.spot.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideTypeBuy).
		Type(binance.OrderTypeMarket).
		QuoteOrderQty(formatQty(quote, 0.01)).
		Do(ctx)
	if err != nil {
		return models.Order{}, err
	}
	qty := parseFloat(res.ExecutedQuantity)
	spent := parseFloat(res.CummulativeQuoteQuantity)
	price := 0.0
	if qty > 0 {
		price = spent / qty
	}
	return models.Order{
		OrderID:  orderID(res.OrderID),
		Symbol:   symbol,
		Side:     string(binance.SideTypeBuy),
		Quantity: qty,
		Price:    price,
	}, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
