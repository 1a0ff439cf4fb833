package helper

import (
	"fmt"
	"sort"
	"strings"

	"signal_bot/internal/models"

	"github.com/dustin/go-humanize"
)

// Price renders a quote with thousands separators and two decimals; values
// under one keep six.
func Price(v float64) string {
	if v != 0 && v < 1 && v > -1 {
		return "$" + humanize.FormatFloat("#,###.######", v)
	}
	return "$" + humanize.FormatFloat("#,###.##", v)
}

func Pct(v float64) string {
	return humanize.FtoaWithDigits(v*100, 2) + "%"
}

// SpotAlert is the text of a spot BUY alert.
func SpotAlert(display string, a models.Analysis) string {
	text := fmt.Sprintf("💎 SPOT SIGNAL: %s\nStrategy: %s\nPrice: %s\nReason: %s",
		display, a.Strategy, Price(a.Metrics.Close), a.SpotReason)
	if p := a.SpotPlan; p != nil {
		text += fmt.Sprintf("\nStop: %s | Target: %s", Price(p.StopLoss), Price(p.TakeProfit))
	}
	return text
}

// FuturesAlert is the text of a gated futures action.
func FuturesAlert(display string, action models.Action, side models.PositionState, a models.Analysis) string {
	switch action {
	case models.ActionOpenLong:
		return fmt.Sprintf("🚀 LONG SIGNAL: %s\nStrategy: Squeeze & Velocity\nPrice: %s\nReason: %s\nADX: %.1f",
			display, Price(a.Metrics.Close), a.FuturesReason, a.Metrics.ADX)
	case models.ActionOpenShort:
		return fmt.Sprintf("📉 SHORT SIGNAL: %s\nStrategy: Bearish Breakout\nPrice: %s\nReason: %s\nADX: %.1f",
			display, Price(a.Metrics.Close), a.FuturesReason, a.Metrics.ADX)
	default:
		return fmt.Sprintf("🏁 FUTURES EXIT (%s): %s\nReason: %s", side, display, a.FuturesReason)
	}
}

// RadarLine is one asset row of the /price report.
func RadarLine(display string, a models.Analysis) string {
	var icons []string
	if a.SpotSignal {
		icons = append(icons, "💎 SPOT")
	}
	switch a.Futures {
	case models.DirectionBuy:
		icons = append(icons, "🚀 LONG")
	case models.DirectionShort:
		icons = append(icons, "📉 SHORT")
	case models.DirectionCloseLong, models.DirectionCloseShort, models.DirectionExitAll:
		icons = append(icons, "🏁 CLOSE")
	}
	line := fmt.Sprintf("• %s: %s | RSI: %.1f", display, Price(a.Metrics.Close), a.Metrics.RSI)
	if len(icons) > 0 {
		line += " " + strings.Join(icons, " ")
	}
	return line
}

// Debug lists the sub-conditions of an analysis, true first.
func Debug(a models.Analysis) string {
	keys := make([]string, 0, len(a.Debug))
	for k := range a.Debug {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if a.Debug[keys[i]] != a.Debug[keys[j]] {
			return a.Debug[keys[i]]
		}
		return keys[i] < keys[j]
	})

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] vol=%.2f\n", a.Asset, a.Strategy, a.VolatilityIndex)
	fmt.Fprintf(&b, "spot=%v %s\nfutures=%s %s\n", a.SpotSignal, a.SpotReason, a.Futures, a.FuturesReason)
	for _, k := range keys {
		mark := "❌"
		if a.Debug[k] {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%s %s\n", mark, k)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Wallet renders a balance summary.
func Wallet(futures, spot models.Balance, positions []models.Position) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💰 Futures: %s free / %s total", Price(futures.Free), Price(futures.Total))
	if futures.Unrealized != 0 {
		fmt.Fprintf(&b, " (uPnL %s)", Price(futures.Unrealized))
	}
	fmt.Fprintf(&b, "\n💵 Spot %s: %s free", spot.Asset, Price(spot.Free))
	if len(positions) == 0 {
		b.WriteString("\n📭 No open positions")
		return b.String()
	}
	b.WriteString("\n📊 Positions:")
	for _, p := range positions {
		fmt.Fprintf(&b, "\n• %s %s %v @ %s | uPnL %s",
			p.Symbol, p.Side, p.Size, Price(p.EntryPrice), Price(p.UnrealizedPnL))
	}
	return b.String()
}
