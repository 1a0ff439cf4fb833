package helper

import (
	"strings"
	"testing"

	"signal_bot/internal/models"
)

func TestPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{64231.5, "$64,231.50"},
		{0.5, "$0.500000"},
		{100, "$100.00"},
	}
	for _, tt := range tests {
		if got := Price(tt.in); got != tt.want {
			t.Errorf("Price(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormTF(t *testing.T) {
	for in, want := range map[string]string{"1H": "1h", "60m": "1h", "15m": "15m", " 4H ": "4h"} {
		if got := NormTF(in); got != want {
			t.Errorf("NormTF(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFuturesAlert(t *testing.T) {
	a := models.Analysis{FuturesReason: "Squeeze Break [MTF: BULL]", Metrics: models.Metrics{Close: 150, ADX: 31.25}}
	got := FuturesAlert("Bitcoin", models.ActionOpenLong, models.PositionLong, a)
	for _, want := range []string{"LONG SIGNAL: Bitcoin", "$150.00", "Squeeze Break [MTF: BULL]", "ADX: 31.2"} {
		if !strings.Contains(got, want) {
			t.Errorf("alert %q misses %q", got, want)
		}
	}
	exit := FuturesAlert("Bitcoin", models.ActionClose, models.PositionShort, a)
	if !strings.Contains(exit, "FUTURES EXIT (SHORT)") {
		t.Errorf("exit alert = %q", exit)
	}
}

func TestRadarLine(t *testing.T) {
	a := models.Analysis{SpotSignal: true, Futures: models.DirectionBuy, Metrics: models.Metrics{Close: 2, RSI: 55.55}}
	got := RadarLine("ETH", a)
	if got != "• ETH: $2.00 | RSI: 55.5 💎 SPOT 🚀 LONG" && got != "• ETH: $2.00 | RSI: 55.6 💎 SPOT 🚀 LONG" {
		t.Errorf("RadarLine = %q", got)
	}
}

func TestDebugOrder(t *testing.T) {
	a := models.Analysis{Asset: "BTCUSDT", Debug: map[string]bool{"b": false, "a": true, "c": true}}
	lines := strings.Split(Debug(a), "\n")
	got := strings.Join(lines[3:], ",")
	if got != "✅ a,✅ c,❌ b" {
		t.Errorf("debug lines = %q", got)
	}
}

func TestSpotAlertPlan(t *testing.T) {
	a := models.Analysis{Strategy: "MeanReversion", SpotSignal: true, SpotReason: "dip", Metrics: models.Metrics{Close: 100}}
	if strings.Contains(SpotAlert("BTC", a), "Stop") {
		t.Fatal("stop line without a plan")
	}
	a.SpotPlan = &models.EntryPlan{Entry: 100, StopLoss: 97, TakeProfit: 106}
	if got := SpotAlert("BTC", a); !strings.Contains(got, "Stop: $97.00 | Target: $106.00") {
		t.Fatalf("alert = %q", got)
	}
}
