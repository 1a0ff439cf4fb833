package filter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"signal_bot/internal/models"
)

func analysis(dir models.Direction, price float64) models.Analysis {
	return models.Analysis{Asset: "BTCUSDT", Futures: dir, Metrics: models.Metrics{Close: price}}
}

func TestAggregatorCooldownDeviationAndChange(t *testing.T) {
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := NewAggregator(time.Hour, 0.008)
	a.now = func() time.Time { return clock }

	if !a.ShouldAlert("BTCUSDT", analysis(models.DirectionBuy, 100)) {
		t.Fatal("first signal suppressed")
	}

	clock = clock.Add(10 * time.Minute)
	if a.ShouldAlert("BTCUSDT", analysis(models.DirectionBuy, 100.5)) {
		t.Fatal("same signal within cooldown and 0.5% move alerted")
	}

	clock = clock.Add(10 * time.Minute)
	if !a.ShouldAlert("BTCUSDT", analysis(models.DirectionBuy, 101)) {
		t.Fatal("move above 0.8% suppressed")
	}

	clock = clock.Add(time.Minute)
	if !a.ShouldAlert("BTCUSDT", analysis(models.DirectionCloseLong, 101)) {
		t.Fatal("signal change suppressed")
	}

	clock = clock.Add(61 * time.Minute)
	if !a.ShouldAlert("BTCUSDT", analysis(models.DirectionCloseLong, 101)) {
		t.Fatal("signal after cooldown suppressed")
	}

	snap := a.Snapshot()
	if len(snap) != 1 || snap[0].LastSignal != models.SignalType(models.DirectionCloseLong) || snap[0].LastPrice != 101 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestAggregatorNoSignalHasNoSideEffects(t *testing.T) {
	a := NewAggregator(time.Hour, 0)
	if a.ShouldAlert("ETHUSDT", analysis(models.DirectionWait, 100)) {
		t.Fatal("WAIT alerted")
	}
	if len(a.Snapshot()) != 0 {
		t.Fatal("state recorded without an alert")
	}
}

func TestAggregatorSpotSignalType(t *testing.T) {
	a := NewAggregator(time.Hour, 0)
	an := analysis(models.DirectionBuy, 100)
	an.SpotSignal = true
	if !a.ShouldAlert("ETHUSDT", an) {
		t.Fatal("spot suppressed")
	}
	if got := a.Snapshot()[0].LastSignal; got != models.SignalSpotBuy {
		t.Fatalf("last signal = %s, spot should win", got)
	}
	// futures-only BUY is a different type than SPOT_BUY
	if !a.ShouldAlert("ETHUSDT", analysis(models.DirectionBuy, 100)) {
		t.Fatal("type change suppressed")
	}
}

func TestAggregatorConcurrentSameAsset(t *testing.T) {
	a := NewAggregator(time.Hour, 0)
	var alerts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if a.ShouldAlert("SOLUSDT", analysis(models.DirectionShort, 50)) {
				alerts.Add(1)
			}
		}()
	}
	wg.Wait()
	if alerts.Load() != 1 {
		t.Fatalf("alerts = %d, want 1", alerts.Load())
	}
}

func TestGate(t *testing.T) {
	tests := []struct {
		cur    models.PositionState
		dir    models.Direction
		ok     bool
		action models.Action
		side   models.PositionState
		to     models.PositionState
	}{
		{models.PositionNeutral, models.DirectionBuy, true, models.ActionOpenLong, models.PositionLong, models.PositionLong},
		{models.PositionNeutral, models.DirectionShort, true, models.ActionOpenShort, models.PositionShort, models.PositionShort},
		{models.PositionNeutral, models.DirectionCloseLong, false, "", "", ""},
		{models.PositionNeutral, models.DirectionExitAll, false, "", "", ""},
		{models.PositionLong, models.DirectionBuy, false, "", "", ""},
		{models.PositionLong, models.DirectionCloseLong, true, models.ActionClose, models.PositionLong, models.PositionNeutral},
		{models.PositionLong, models.DirectionCloseShort, false, "", "", ""},
		{models.PositionShort, models.DirectionCloseShort, true, models.ActionClose, models.PositionShort, models.PositionNeutral},
		{models.PositionShort, models.DirectionExitAll, true, models.ActionClose, models.PositionShort, models.PositionNeutral},
		{models.PositionLong, models.DirectionWait, false, "", "", ""},
		{"", models.DirectionBuy, true, models.ActionOpenLong, models.PositionLong, models.PositionLong},
	}
	for _, tt := range tests {
		got, ok := Gate(tt.cur, tt.dir)
		if ok != tt.ok || got.Action != tt.action || got.Side != tt.side || got.To != tt.to {
			t.Errorf("Gate(%s, %s) = %+v, %v", tt.cur, tt.dir, got, ok)
		}
	}
}

type fakeMirror struct {
	mu    sync.Mutex
	saved map[string]models.PositionState
	err   error
}

func (m *fakeMirror) SavePosition(_ context.Context, asset string, st models.PositionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.saved == nil {
		m.saved = map[string]models.PositionState{}
	}
	m.saved[asset] = st
	return nil
}

func (m *fakeMirror) LoadPositions(context.Context) (map[string]models.PositionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]models.PositionState{}
	for k, v := range m.saved {
		out[k] = v
	}
	return out, m.err
}

func TestPositionBook(t *testing.T) {
	ctx := context.Background()
	mirror := &fakeMirror{}
	b := NewPositionBook(mirror)

	if _, ok := b.Apply(ctx, "BTCUSDT", models.DirectionCloseLong); ok {
		t.Fatal("close on neutral applied")
	}
	tr, ok := b.Apply(ctx, "BTCUSDT", models.DirectionBuy)
	if !ok || tr.Action != models.ActionOpenLong || tr.Asset != "BTCUSDT" {
		t.Fatalf("open = %+v %v", tr, ok)
	}
	if b.State("BTCUSDT") != models.PositionLong || mirror.saved["BTCUSDT"] != models.PositionLong {
		t.Fatal("state not committed")
	}
	tr, ok = b.Apply(ctx, "BTCUSDT", models.DirectionCloseLong)
	if !ok || tr.Action != models.ActionClose || b.State("BTCUSDT") != models.PositionNeutral {
		t.Fatalf("close = %+v %v", tr, ok)
	}

	b.Set(ctx, "ETHUSDT", models.PositionShort)
	restored := NewPositionBook(mirror)
	if err := restored.Restore(ctx); err != nil {
		t.Fatal(err)
	}
	if restored.State("ETHUSDT") != models.PositionShort {
		t.Fatal("mirror not restored")
	}
	if snap := restored.Snapshot(); len(snap) != 1 || snap[0].Asset != "ETHUSDT" {
		t.Fatalf("snapshot = %+v", snap)
	}

	mirror.err = errors.New("redis down")
	if _, ok := b.Apply(ctx, "SOLUSDT", models.DirectionShort); !ok || b.State("SOLUSDT") != models.PositionShort {
		t.Fatal("mirror failure blocked the transition")
	}
}

func TestPositionBookRace(t *testing.T) {
	b := NewPositionBook(nil)
	var opened atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := b.Apply(context.Background(), "XRPUSDT", models.DirectionBuy); ok {
				opened.Add(1)
			}
		}()
	}
	wg.Wait()
	if opened.Load() != 1 {
		t.Fatalf("opened %d times", opened.Load())
	}
}

func TestMTFVeto(t *testing.T) {
	calls := 0
	trend := models.TrendBear
	m := NewMTF(func(context.Context, string) (models.Trend, error) {
		calls++
		return trend, nil
	}, time.Minute)
	ctx := context.Background()

	a := analysis(models.DirectionWait, 100)
	m.Apply(ctx, &a)
	if calls != 0 {
		t.Fatal("fetched without a signal")
	}

	a = analysis(models.DirectionBuy, 100)
	a.FuturesReason = "Squeeze Break"
	m.Apply(ctx, &a)
	if a.Futures != models.DirectionWait || !strings.Contains(a.FuturesReason, "MTF veto") {
		t.Fatalf("long against BEAR: %s %q", a.Futures, a.FuturesReason)
	}

	a = analysis(models.DirectionShort, 100)
	a.FuturesReason = "Squeeze Break"
	m.Apply(ctx, &a)
	if a.Futures != models.DirectionShort || a.FuturesReason != "Squeeze Break [MTF: BEAR]" {
		t.Fatalf("short with BEAR: %s %q", a.Futures, a.FuturesReason)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, trend should be cached", calls)
	}

	m2 := NewMTF(func(context.Context, string) (models.Trend, error) {
		return models.TrendBull, nil
	}, time.Minute)
	a = analysis(models.DirectionShort, 100)
	m2.Apply(ctx, &a)
	if a.Futures != models.DirectionWait {
		t.Fatalf("short against BULL: %s", a.Futures)
	}
}

func TestMTFFetchErrorKeepsSignal(t *testing.T) {
	m := NewMTF(func(context.Context, string) (models.Trend, error) {
		return "", errors.New("timeout")
	}, time.Minute)
	a := analysis(models.DirectionBuy, 100)
	a.FuturesReason = "Velocity Break"
	m.Apply(context.Background(), &a)
	if a.Futures != models.DirectionBuy || a.FuturesReason != "Velocity Break" {
		t.Fatalf("got %s %q", a.Futures, a.FuturesReason)
	}
}
