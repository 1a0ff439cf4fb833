package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"signal_bot/internal/models"
	"signal_bot/pkg/logger"
)

func TestParseFilters(t *testing.T) {
	raw := []map[string]interface{}{
		{"filterType": "PRICE_FILTER", "tickSize": "0.10", "minPrice": "556.80"},
		{"filterType": "LOT_SIZE", "stepSize": "0.001", "minQty": "0.001"},
		{"filterType": "MIN_NOTIONAL", "notional": "100"},
	}
	f := parseFilters("BTCUSDT", raw)
	want := models.SymbolFilter{Symbol: "BTCUSDT", StepSize: 0.001, TickSize: 0.1, MinQty: 0.001, MinNotional: 100}
	if f != want {
		t.Fatalf("futures filter = %+v", f)
	}

	spot := parseFilters("ETHUSDT", []map[string]interface{}{
		{"filterType": "LOT_SIZE", "stepSize": "0.00010000", "minQty": "0.00010000"},
		{"filterType": "NOTIONAL", "minNotional": "5.00000000"},
	})
	if spot.MinNotional != 5 || spot.StepSize != 0.0001 {
		t.Fatalf("spot filter = %+v", spot)
	}
}

func TestFormatQty(t *testing.T) {
	tests := []struct {
		v, step float64
		want    string
	}{
		{0.16789, 0.001, "0.167"},
		{5, 0.001, "5"},
		{97.04, 0.1, "97"},
		{123.456, 1, "123"},
		{25.059, 0.01, "25.05"},
		{1.5, 0, "1.5"},
	}
	for _, tt := range tests {
		if got := formatQty(tt.v, tt.step); got != tt.want {
			t.Errorf("formatQty(%v, %v) = %s, want %s", tt.v, tt.step, got, tt.want)
		}
	}
}

func TestSpotCandles(t *testing.T) {
	in := []*binance.Kline{
		{OpenTime: 1704067200000, Open: "100", High: "101.5", Low: "99", Close: "100.5", Volume: "12.25"},
	}
	out := spotCandles(in)
	if len(out) != 1 {
		t.Fatalf("len = %d", len(out))
	}
	c := out[0]
	if !c.Time.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) || c.High != 101.5 || c.Volume != 12.25 {
		t.Fatalf("candle = %+v", c)
	}
}

func TestPositionSide(t *testing.T) {
	if positionSide(0.5) != models.PositionLong || positionSide(-2) != models.PositionShort || positionSide(0) != models.PositionNeutral {
		t.Fatal("position side mapping")
	}
}

func TestProxyValidation(t *testing.T) {
	if _, err := proxiedHTTPClient("socks5://127.0.0.1:1080", time.Second); err != nil {
		t.Fatalf("socks5: %v", err)
	}
	for _, bad := range []string{"ftp://host:21", "not a url", "http://"} {
		if _, err := proxiedHTTPClient(bad, time.Second); !errors.Is(err, models.ErrConfigValidation) {
			t.Errorf("%q: err = %v", bad, err)
		}
	}
}

func TestFactoryRejectsEmptyKeys(t *testing.T) {
	f := NewFactory(time.Second, time.Minute)
	if _, err := f.New(models.Credentials{}, ""); !errors.Is(err, models.ErrConfigValidation) {
		t.Fatalf("err = %v", err)
	}
	if _, err := f.New(models.Credentials{APIKey: "k", APISecret: "s"}, "http://proxy:3128"); err != nil {
		t.Fatalf("err = %v", err)
	}
}

func TestMarketSkipsNonUSDT(t *testing.T) {
	m, err := NewMarket("", time.Second, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	s := m.Candles(t.Context(), "TSLA", "15m", 10)
	if !s.Empty() || s.Symbol != "TSLA" || s.Timeframe != "15m" {
		t.Fatalf("series = %+v", s)
	}
}

// fakeFutures serves the few futures endpoints an Account touches.
func fakeFutures(t *testing.T, infoStatus, cancelStatus int) *Account {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/fapi/v1/exchangeInfo" && infoStatus != http.StatusOK:
			w.WriteHeader(infoStatus)
			_, _ = w.Write([]byte(`{"code":-1000,"msg":"maintenance"}`))
		case r.URL.Path == "/fapi/v1/exchangeInfo":
			_, _ = w.Write([]byte(`{"symbols":[{"symbol":"ETHUSDT","filters":[` +
				`{"filterType":"LOT_SIZE","stepSize":"0.001","minQty":"0.001"},` +
				`{"filterType":"PRICE_FILTER","tickSize":"0.01"}]}]}`))
		case r.URL.Path == "/fapi/v1/order":
			_, _ = w.Write([]byte(`{"symbol":"ETHUSDT","orderId":42,"avgPrice":"2000.5"}`))
		case r.URL.Path == "/fapi/v1/allOpenOrders":
			w.WriteHeader(cancelStatus)
			_, _ = w.Write([]byte(`{"code":-2011,"msg":"Unknown order sent."}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	fc := futures.NewClient("k", "s")
	fc.BaseURL = srv.URL
	return &Account{futures: fc, timeout: time.Second, filters: cache.New(time.Minute, time.Minute)}
}

func TestClosePositionLogsCancelFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	prev := logger.InfoLogger
	logger.InfoLogger = zap.New(core)
	t.Cleanup(func() { logger.InfoLogger = prev })

	a := fakeFutures(t, http.StatusOK, http.StatusBadRequest)
	o, err := a.ClosePosition(t.Context(), models.Position{Symbol: "ETHUSDT", Side: models.PositionLong, Size: 0.5})
	if err != nil {
		t.Fatalf("close failed on cancel error: %v", err)
	}
	if o.OrderID != "42" || o.Price != 2000.5 {
		t.Fatalf("order = %+v", o)
	}
	found := logs.FilterMessageSnippet("cancel open orders").Len()
	if found != 1 {
		t.Fatalf("cancel failure logged %d times", found)
	}
}

func TestOpenPositionWrapsOnce(t *testing.T) {
	a := fakeFutures(t, http.StatusServiceUnavailable, http.StatusOK)
	_, err := a.OpenPosition(t.Context(), models.OpenRequest{Symbol: "ETHUSDT", Side: models.PositionLong, Quantity: 1})
	if !errors.Is(err, models.ErrExternalCall) {
		t.Fatalf("err = %v", err)
	}
	var te, inner *models.TradingError
	if !errors.As(err, &te) || te.Op != "futures exchange info" {
		t.Fatalf("op = %+v", te)
	}
	if errors.As(te.Err, &inner) {
		t.Fatalf("wrapped twice: %v", err)
	}
}
