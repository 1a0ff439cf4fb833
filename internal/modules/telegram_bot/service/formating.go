package service

import (
	"fmt"
	"sort"
	"strings"

	"signal_bot/internal/helper"
	"signal_bot/internal/models"
)

var modeDescriptions = map[models.Mode]string{
	models.ModeWatcher: "👀 WATCHER: text alerts only, nothing is traded.",
	models.ModeCopilot: "🤝 COPILOT: every signal comes as a proposal to accept or skip.",
	models.ModePilot:   "🤖 PILOT: signals are executed automatically.",
}

func welcomeText(admin bool) string {
	var b strings.Builder
	b.WriteString("👋 Signal bot\n\n")
	b.WriteString("Setup\n")
	b.WriteString("/set_keys KEY SECRET - connect Binance keys\n")
	b.WriteString("/risk - risk presets and quick settings\n")
	b.WriteString("/set_leverage n, /set_margin pct, /set_spot_alloc pct, /set_stop pct\n")
	b.WriteString("/set_proxy url|off\n")
	b.WriteString("/status - session and system settings\n\n")
	b.WriteString("Market\n")
	b.WriteString("/price [asset] - radar or a single quote\n\n")
	b.WriteString("Trading\n")
	b.WriteString("/wallet, /buy asset, /long asset, /sell asset\n")
	b.WriteString("/close asset, /closeall\n")
	b.WriteString("/watcher, /copilot, /pilot, /mode\n")
	b.WriteString("/delete_session\n")
	if admin {
		b.WriteString("\nAdmin\n")
		b.WriteString("/toggle_group G, /toggle_asset A, /toggle_strategy S\n")
		b.WriteString("/set_interval seconds - signal cooldown\n")
		b.WriteString("/debug [asset], /api_token\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func configText(cfg models.SessionConfig) string {
	proxy := cfg.ProxyURL
	if proxy == "" {
		proxy = "none"
	}
	return fmt.Sprintf("Mode: %s\nLeverage: x%d\nMargin per trade: %s\nSpot allocation: %s\nStop loss: %s\nProxy: %s",
		cfg.Mode, cfg.Leverage, helper.Pct(cfg.MaxCapitalPct), helper.Pct(cfg.SpotAllocationPct),
		helper.Pct(cfg.StopLossPct), proxy)
}

func systemText(st models.SystemState) string {
	var b strings.Builder
	b.WriteString("Groups:")
	for _, g := range sortedKeys(st.GroupConfig) {
		fmt.Fprintf(&b, "\n• %s %s", g, onOff(st.GroupConfig[g]))
	}
	b.WriteString("\nStrategies:")
	for _, s := range sortedKeys(st.EnabledStrategies) {
		fmt.Fprintf(&b, "\n• %s %s", s, onOff(st.EnabledStrategies[s]))
	}
	if len(st.DisabledAssets) > 0 {
		fmt.Fprintf(&b, "\nDisabled assets: %s", strings.Join(st.DisabledAssets, ", "))
	}
	fmt.Fprintf(&b, "\nCooldown: %ds", st.SignalCooldown)
	return b.String()
}

func debugSummary(snap map[string]models.Analysis, names func(string) string) string {
	if len(snap) == 0 {
		return "No analyses yet."
	}
	assets := make([]string, 0, len(snap))
	for a := range snap {
		assets = append(assets, a)
	}
	sort.Strings(assets)

	var b strings.Builder
	b.WriteString("🔬 Last analyses")
	for _, a := range assets {
		an := snap[a]
		fmt.Fprintf(&b, "\n• %s [%s] spot=%t futures=%s | %s",
			names(a), an.Strategy, an.SpotSignal, an.Futures, an.FuturesReason)
	}
	return b.String()
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
