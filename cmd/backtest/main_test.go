package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"signal_bot/internal/strategy"

	"github.com/bytedance/sonic"
)

func sampleReport() report {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return report{
		Symbol:    "BTCUSDT",
		Timeframe: "15m",
		Bars:      500,
		From:      t0,
		To:        t0.Add(499 * 15 * time.Minute),
		Markers: []strategy.Marker{
			{Time: t0.Add(time.Hour), Side: strategy.MarkerBuy, Reason: "Squeeze Break", Close: 61000},
			{Time: t0.Add(5 * time.Hour), Side: strategy.MarkerSell, Reason: "HMA flip", Close: 62500.5},
		},
	}
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	if err := render(&buf, sampleReport(), "text"); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"BTCUSDT 15m: 500 bars 2024-03-01 12:00:00",
		"2024-03-01 13:00:00  BUY",
		"Squeeze Break",
		"SELL",
		"1 entries, 1 exits",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output misses %q:\n%s", want, out)
		}
	}

	buf.Reset()
	empty := sampleReport()
	empty.Markers = nil
	if err := render(&buf, empty, "text"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "no breakouts") {
		t.Fatalf("empty report:\n%s", buf.String())
	}
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := render(&buf, sampleReport(), "json"); err != nil {
		t.Fatal(err)
	}
	var got report
	if err := sonic.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Symbol != "BTCUSDT" || len(got.Markers) != 2 || got.Markers[1].Side != strategy.MarkerSell {
		t.Fatalf("decoded = %+v", got)
	}
}

func TestSettings(t *testing.T) {
	v, err := loadSettings([]string{"--symbol", "ethusdt", "--format", "json", "--config", "", "--limit", "300"})
	if err != nil {
		t.Fatal(err)
	}
	if v.GetString("symbol") != "ethusdt" || v.GetInt("limit") != 300 || v.GetString("format") != "json" {
		t.Fatalf("settings = %v", v.AllSettings())
	}
	if v.GetDuration("exchange.timeout") != 10*time.Second {
		t.Fatalf("timeout default = %v", v.GetDuration("exchange.timeout"))
	}

	v.Set("format", "csv")
	if err := run(context.Background(), v, &bytes.Buffer{}); err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Fatalf("csv format: %v", err)
	}
}

func TestParamsFromConfig(t *testing.T) {
	v, err := loadSettings([]string{"--config", ""})
	if err != nil {
		t.Fatal(err)
	}
	v.Set("strategy.squeeze_lookback", 30)
	v.Set("strategy.adx_strong", 35.0)
	p := params(v)
	if p.SqueezeLookback != 30 || p.ADXStrong != 35 {
		t.Fatalf("params = %+v", p)
	}
	if p.HMAPeriod != strategy.DefaultParams().HMAPeriod {
		t.Fatalf("hma period changed: %d", p.HMAPeriod)
	}
}
