package runner

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"signal_bot/internal/models"
	"signal_bot/internal/runner/filter"
	"signal_bot/internal/runner/router"
	"signal_bot/internal/strategy"
)

func buildSeries(high, low, close []float64) models.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var s models.Series
	for i := range close {
		s.Candles = append(s.Candles, models.Candle{
			Time:   start.Add(time.Duration(i) * 15 * time.Minute),
			Open:   close[i],
			High:   high[i],
			Low:    low[i],
			Close:  close[i],
			Volume: 100,
		})
	}
	return s
}

// climb is chop followed by an accelerating rise to 150.
func climb() models.Series {
	var high, low, close []float64
	for i := 0; i < 150; i++ {
		v := 100 + 2*math.Sin(float64(i)*1.7)
		close, high, low = append(close, v), append(high, v+2), append(low, v-2)
	}
	for j := 0; j < 150; j++ {
		v := 100 + 50*float64(j)/149
		r := 2 + 3*float64(j)/149
		close, high, low = append(close, v), append(high, v+r), append(low, v-r)
	}
	return buildSeries(high, low, close)
}

// breakout is a tight range left upwards on the last bar.
func breakout() models.Series {
	var high, low, close []float64
	for i := 0; i < 259; i++ {
		v := 100 + 0.3*math.Sin(float64(i)*0.8)
		close, high, low = append(close, v), append(high, v+1.5), append(low, v-1.5)
	}
	prev := close[len(close)-1]
	v := prev + 3
	close, high, low = append(close, v), append(high, v+1.5), append(low, prev-0.2)
	return buildSeries(high, low, close)
}

func ramp(step float64) models.Series {
	var c []float64
	for i := 0; i < 250; i++ {
		c = append(c, 1000+step*float64(i))
	}
	return buildSeries(c, c, c)
}

type fakeMarket struct {
	mu       sync.Mutex
	series   map[string]models.Series
	htf      models.Series
	htfCalls int
	calls    map[string]int
}

func (m *fakeMarket) Candles(_ context.Context, symbol, timeframe string, _ int) models.Series {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	if timeframe == "1h" {
		m.htfCalls++
		return m.htf
	}
	m.calls[symbol]++
	s := m.series[symbol]
	s.Symbol, s.Timeframe = symbol, timeframe
	return s
}

type fakeDispatcher struct {
	mu     sync.Mutex
	alerts []models.Alert
	// hang blocks every dispatch until its context ends
	hang bool
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, a models.Alert) router.Delivery {
	d.mu.Lock()
	d.alerts = append(d.alerts, a)
	hang := d.hang
	d.mu.Unlock()
	if hang {
		<-ctx.Done()
		return router.Delivery{Failed: 1}
	}
	return router.Delivery{Notified: 1}
}

type fakeHealth struct {
	mu     sync.Mutex
	cycles int
	assets int
}

func (h *fakeHealth) CycleDone(_ time.Time, assets int) {
	h.mu.Lock()
	h.cycles++
	h.assets = assets
	h.mu.Unlock()
}

type memStateStore struct {
	mu      sync.Mutex
	st      *models.SystemState
	loadErr error
	saves   int
}

func (s *memStateStore) LoadState(context.Context) (models.SystemState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return models.SystemState{}, s.loadErr
	}
	if s.st == nil {
		return models.DefaultSystemState(), nil
	}
	return s.st.Clone(), nil
}

func (s *memStateStore) SaveState(_ context.Context, st models.SystemState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := st.Clone()
	s.st = &c
	s.saves++
	return nil
}

type fixture struct {
	runner *Runner
	market *fakeMarket
	disp   *fakeDispatcher
	book   *filter.PositionBook
	keeper *StateKeeper
	health *fakeHealth
}

func newFixture(series map[string]models.Series, htf models.Series) *fixture {
	assets := make([]string, 0, len(series))
	for a := range series {
		assets = append(assets, a)
	}
	keeper := NewStateKeeper(&memStateStore{}, map[string][]string{models.GroupCrypto: assets})
	market := &fakeMarket{series: series, htf: htf}
	disp := &fakeDispatcher{}
	book := filter.NewPositionBook(nil)
	health := &fakeHealth{}
	engine := strategy.NewEngine(strategy.DefaultParams(), strategy.NewSelector(nil, nil, "BTCUSDT", 0), false)

	r := New(Config{Workers: 2}, Deps{
		Market:     market,
		Engine:     engine,
		State:      keeper,
		Aggregator: filter.NewAggregator(time.Hour, 0),
		Book:       book,
		Dispatcher: disp,
		Health:     health,
	})
	return &fixture{runner: r, market: market, disp: disp, book: book, keeper: keeper, health: health}
}

func TestCycleDispatchesFuturesEntryOnce(t *testing.T) {
	fx := newFixture(map[string]models.Series{"ETHUSDT": breakout()}, ramp(1))
	ctx := context.Background()

	fx.runner.Cycle(ctx)
	if len(fx.disp.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(fx.disp.alerts))
	}
	a := fx.disp.alerts[0]
	if a.Action != models.ActionOpenLong || a.Side != models.PositionLong {
		t.Fatalf("alert = %s %s", a.Action, a.Side)
	}
	if a.Reason != "Squeeze Break [MTF: BULL]" {
		t.Fatalf("reason = %q", a.Reason)
	}
	if !strings.Contains(a.Text, "LONG SIGNAL: ETHUSDT") {
		t.Fatalf("text = %q", a.Text)
	}
	if st := fx.book.State("ETHUSDT"); st != models.PositionLong {
		t.Fatalf("position = %s", st)
	}

	fx.runner.Cycle(ctx)
	if len(fx.disp.alerts) != 1 {
		t.Fatalf("repeat within cooldown was dispatched")
	}
	if fx.market.htfCalls != 1 {
		t.Fatalf("higher timeframe fetched %d times, want 1 (cached)", fx.market.htfCalls)
	}
	if fx.health.cycles != 2 || fx.health.assets != 1 {
		t.Fatalf("health = %+v", fx.health)
	}
}

func TestCycleHigherTimeframeVeto(t *testing.T) {
	fx := newFixture(map[string]models.Series{"ETHUSDT": breakout()}, ramp(-1))

	fx.runner.Cycle(context.Background())
	if len(fx.disp.alerts) != 0 {
		t.Fatalf("vetoed entry dispatched: %+v", fx.disp.alerts)
	}
	an, ok := fx.runner.Last("ETHUSDT")
	if !ok || an.Futures != models.DirectionWait || !strings.HasPrefix(an.FuturesReason, "MTF veto") {
		t.Fatalf("analysis = %+v", an)
	}
	if st := fx.book.State("ETHUSDT"); st != models.PositionNeutral {
		t.Fatalf("position = %s", st)
	}
}

func TestCycleSpotSkipsFutures(t *testing.T) {
	fx := newFixture(map[string]models.Series{"BTCUSDT": climb()}, ramp(1))

	fx.runner.Cycle(context.Background())
	if len(fx.disp.alerts) != 1 {
		t.Fatalf("alerts = %d", len(fx.disp.alerts))
	}
	a := fx.disp.alerts[0]
	if a.Action != models.ActionSpotBuy || a.Strategy != "TrendVelocity" {
		t.Fatalf("alert = %+v", a)
	}
	if st := fx.book.State("BTCUSDT"); st != models.PositionNeutral {
		t.Fatalf("spot alert moved the futures book to %s", st)
	}
}

func TestCycleSkipsDisabledAndBrokenAssets(t *testing.T) {
	fx := newFixture(map[string]models.Series{
		"ETHUSDT": breakout(),
		"SOLUSDT": {},
	}, ramp(1))
	if _, err := fx.keeper.ToggleAsset(context.Background(), "ETHUSDT"); err != nil {
		t.Fatal(err)
	}

	fx.runner.Cycle(context.Background())
	if fx.market.calls["ETHUSDT"] != 0 {
		t.Fatal("disabled asset was fetched")
	}
	if fx.market.calls["SOLUSDT"] != 1 {
		t.Fatal("broken asset was not attempted")
	}
	if len(fx.disp.alerts) != 0 || fx.health.cycles != 1 {
		t.Fatalf("alerts=%d cycles=%d", len(fx.disp.alerts), fx.health.cycles)
	}
}

func TestRadar(t *testing.T) {
	fx := newFixture(map[string]models.Series{"ETHUSDT": breakout(), "SOLUSDT": {}}, ramp(1))
	out := fx.runner.Radar(context.Background())
	if !strings.Contains(out, "ETHUSDT: $") || !strings.Contains(out, "🚀 LONG") {
		t.Fatalf("radar = %q", out)
	}
	if !strings.Contains(out, "SOLUSDT: ❌") {
		t.Fatalf("radar misses the error row: %q", out)
	}

	if _, err := fx.keeper.ToggleGroup(context.Background(), models.GroupCrypto); err != nil {
		t.Fatal(err)
	}
	if out := fx.runner.Radar(context.Background()); !strings.Contains(out, "disabled") {
		t.Fatalf("radar with no groups = %q", out)
	}
}

func TestStateKeeper(t *testing.T) {
	ctx := context.Background()
	store := &memStateStore{}
	k := NewStateKeeper(store, map[string][]string{
		models.GroupCrypto: {"BTCUSDT", "ETHUSDT"},
		models.GroupStocks: {"TSLA"},
	})
	var cooldown time.Duration
	k.OnCooldown(func(d time.Duration) { cooldown = d })
	k.Load(ctx)
	if cooldown != time.Hour {
		t.Fatalf("cooldown after load = %s", cooldown)
	}

	if got := k.Assets(); strings.Join(got, ",") != "BTCUSDT,ETHUSDT" {
		t.Fatalf("assets = %v", got)
	}
	on, err := k.ToggleGroup(ctx, "stocks")
	if err != nil || !on {
		t.Fatalf("toggle stocks = %v, %v", on, err)
	}
	if got := k.Assets(); strings.Join(got, ",") != "BTCUSDT,ETHUSDT,TSLA" {
		t.Fatalf("assets = %v", got)
	}
	if _, err := k.ToggleGroup(ctx, "FOREX"); !errors.Is(err, models.ErrConfigValidation) {
		t.Fatalf("unknown group err = %v", err)
	}

	disabled, _ := k.ToggleAsset(ctx, "BTCUSDT")
	if !disabled || strings.Join(k.Assets(), ",") != "ETHUSDT,TSLA" {
		t.Fatalf("disable BTC: %v %v", disabled, k.Assets())
	}
	disabled, _ = k.ToggleAsset(ctx, "BTCUSDT")
	if disabled || len(k.Assets()) != 3 {
		t.Fatalf("enable BTC: %v %v", disabled, k.Assets())
	}

	on, _ = k.ToggleStrategy(ctx, "grid")
	if !on || !k.Get().EnabledStrategies[models.FlagGrid] {
		t.Fatal("grid not enabled")
	}
	if _, err := k.ToggleStrategy(ctx, "MARTINGALE"); !errors.Is(err, models.ErrConfigValidation) {
		t.Fatalf("unknown strategy err = %v", err)
	}

	if err := k.SetCooldown(ctx, 120); err != nil || cooldown != 2*time.Minute {
		t.Fatalf("cooldown = %s, err %v", cooldown, err)
	}
	if store.st == nil || store.st.SignalCooldown != 120 || !store.st.GroupConfig[models.GroupStocks] {
		t.Fatalf("stored state = %+v", store.st)
	}
}

func TestStateKeeperLoadFailureKeepsDefaults(t *testing.T) {
	k := NewStateKeeper(&memStateStore{loadErr: errors.New("corrupt")}, map[string][]string{models.GroupCrypto: {"BTCUSDT"}})
	k.Load(context.Background())
	if got := k.Get(); got.SignalCooldown != 3600 || !got.GroupConfig[models.GroupCrypto] {
		t.Fatalf("state = %+v", got)
	}
}

func TestCycleBoundsHungDispatch(t *testing.T) {
	fx := newFixture(map[string]models.Series{"ETHUSDT": breakout()}, ramp(1))
	fx.disp.hang = true
	fx.runner.cfg.DispatchTimeout = 50 * time.Millisecond

	done := make(chan struct{})
	go func() {
		fx.runner.Cycle(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cycle blocked on a hung dispatch")
	}
	if len(fx.disp.alerts) != 1 {
		t.Fatalf("alerts = %d", len(fx.disp.alerts))
	}
}
