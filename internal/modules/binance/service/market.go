package service

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/opentracing/opentracing-go"
	"github.com/patrickmn/go-cache"

	"signal_bot/internal/helper"
	"signal_bot/internal/models"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/tracing"
)

// Market serves public candles from the spot REST API. It needs no keys.
type Market struct {
	spot    *binance.Client
	timeout time.Duration
	cache   *cache.Cache
}

// NewMarket builds the public data client. proxyURL routes the data
// traffic through a proxy when set.
func NewMarket(proxyURL string, timeout time.Duration, cacheTTL time.Duration) (*Market, error) {
	spot := binance.NewClient("", "")
	if proxyURL != "" {
		hc, err := proxiedHTTPClient(proxyURL, timeout)
		if err != nil {
			return nil, err
		}
		spot.HTTPClient = hc
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &Market{spot: spot, timeout: timeout, cache: cache.New(cacheTTL, 2*cacheTTL)}, nil
}

// Candles never fails: on any error the series comes back empty, still
// annotated with what was asked.
func (m *Market) Candles(ctx context.Context, symbol, timeframe string, limit int) models.Series {
	out := models.Series{Symbol: symbol, Timeframe: timeframe}
	if !isUSDT(symbol) {
		logger.Warn("candles %s: no USDT market for this symbol", symbol)
		return out
	}

	span, ctx := tracing.StartSpan(ctx, "binance.klines", opentracing.Tags{"symbol": symbol, "tf": timeframe})
	var err error
	defer func() { tracing.Finish(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	klines, err := m.spot.NewKlinesService().
		Symbol(symbol).
		Interval(helper.NormTF(timeframe)).
		Limit(limit).
		Do(ctx)
	if err != nil {
		logger.Warn("candles %s %s: %v", symbol, timeframe, &models.TradingError{Op: "klines", Symbol: symbol, Err: err})
		return out
	}
	out.Candles = spotCandles(klines)
	return out
}

// Price is the last traded spot price, cached briefly.
func (m *Market) Price(ctx context.Context, symbol string) (float64, error) {
	key := "price:" + symbol
	if v, ok := m.cache.Get(key); ok {
		return v.(float64), nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	prices, err := m.spot.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, &models.TradingError{Op: "price", Symbol: symbol, Err: err}
	}
	if len(prices) == 0 {
		return 0, &models.TradingError{Op: "price", Symbol: symbol, Err: fmt.Errorf("empty price list")}
	}
	p := parseFloat(prices[0].Price)
	m.cache.Set(key, p, 5*time.Second)
	return p, nil
}
