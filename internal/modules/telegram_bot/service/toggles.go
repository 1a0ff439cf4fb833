package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"signal_bot/internal/models"
)

func (t *Telegram) handleToggleGroup(ctx context.Context, r request) error {
	if r.arg(0) == "" {
		return t.reply(r.chatID, "Usage: /toggle_group CRYPTO|STOCKS|COMMODITY")
	}
	on, err := t.state.ToggleGroup(ctx, r.arg(0))
	if err != nil && !persistOnly(err) {
		return err
	}
	return t.reply(r.chatID, fmt.Sprintf("🔀 Group %s %s", r.arg(0), onOff(on)))
}

func (t *Telegram) handleToggleAsset(ctx context.Context, r request) error {
	if r.arg(0) == "" {
		return t.reply(r.chatID, "Usage: /toggle_asset ASSET")
	}
	asset := t.resolve(r.arg(0))
	disabled, err := t.state.ToggleAsset(ctx, asset)
	if err != nil && !persistOnly(err) {
		return err
	}
	return t.reply(r.chatID, fmt.Sprintf("🔀 %s %s", asset, onOff(!disabled)))
}

func (t *Telegram) handleToggleStrategy(ctx context.Context, r request) error {
	if r.arg(0) == "" {
		return t.reply(r.chatID, "Usage: /toggle_strategy MEAN_REVERSION|GRID|SCALPING")
	}
	on, err := t.state.ToggleStrategy(ctx, r.arg(0))
	if err != nil && !persistOnly(err) {
		return err
	}
	return t.reply(r.chatID, fmt.Sprintf("🔀 Strategy %s %s", r.arg(0), onOff(on)))
}

func (t *Telegram) handleSetCooldown(ctx context.Context, r request) error {
	seconds, err := strconv.Atoi(r.arg(0))
	if err != nil {
		return t.reply(r.chatID, "Usage: /set_interval seconds")
	}
	if err := t.state.SetCooldown(ctx, seconds); err != nil && !persistOnly(err) {
		return err
	}
	return t.reply(r.chatID, fmt.Sprintf("⏱ Signal cooldown %s", time.Duration(seconds)*time.Second))
}

func (t *Telegram) handleDebug(ctx context.Context, r request) error {
	if asset := r.arg(0); asset != "" {
		text, err := t.analyzer.Quote(ctx, t.resolve(asset))
		if err != nil {
			return err
		}
		return t.reply(r.chatID, text)
	}
	text := debugSummary(t.analyzer.Snapshot(), t.names)
	text += fmt.Sprintf("\n\nSessions: %d, pending proposals: %d\n%s",
		t.sessions.Len(), t.proposals.Pending(), systemText(t.state.Get()))
	return t.reply(r.chatID, text)
}

func (t *Telegram) handleAPIToken(_ context.Context, r request) error {
	if t.tokens == nil {
		return fmt.Errorf("%w: admin api is disabled", models.ErrConfigValidation)
	}
	token, exp, err := t.tokens.Issue(itoa(r.chatID))
	if err != nil {
		return err
	}
	return t.reply(r.chatID, "🔐 API token, valid until "+exp.UTC().Format(time.RFC3339)+"\n\n"+token)
}

// persistOnly reports a change that was applied in memory but not saved.
// The state keeper already logged it, so the toggle still succeeds.
func persistOnly(err error) bool {
	return !errors.Is(err, models.ErrConfigValidation)
}
