package service

import (
	"context"
	"fmt"

	"signal_bot/internal/models"
	"signal_bot/internal/runner/sessions"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Inline risk menu callbacks: CFG|LEV|n, CFG|MARGIN|x, CFG|SPOT|x,
// CFG|PRESET|name and CFG|ASK|key.
const cfgPrefix = "CFG"

var cfgKeys = map[string]string{
	"LEV":    sessions.KeyLeverage,
	"MARGIN": sessions.KeyMaxCapitalPct,
	"SPOT":   sessions.KeySpotAllocationPct,
	"STOP":   sessions.KeyStopLossPct,
}

var askPrompts = map[string]string{
	sessions.KeyLeverage:          "Send the leverage as an integer, e.g. 10",
	sessions.KeyMaxCapitalPct:     "Send the margin per trade in percent, e.g. 5",
	sessions.KeySpotAllocationPct: "Send the spot allocation in percent, 0 disables spot buys",
	sessions.KeyStopLossPct:       "Send the stop loss in percent, e.g. 2",
}

func (t *Telegram) handleID(_ context.Context, r request) error {
	switch r.role {
	case roleAdmin:
		return t.reply(r.chatID, "🆔 ID: "+itoa(r.chatID)+"\n👑 admin")
	case roleSubscriber:
		return t.reply(r.chatID, "🆔 ID: "+itoa(r.chatID)+"\n✅ subscriber")
	}
	return t.reply(r.chatID, "🆔 ID: "+itoa(r.chatID)+"\n❌ not authorized")
}

func (t *Telegram) handleStart(_ context.Context, r request) error {
	return t.reply(r.chatID, welcomeText(r.role == roleAdmin))
}

func (t *Telegram) handleStatus(_ context.Context, r request) error {
	text := "⚙️ Session\n"
	if s, err := t.sessions.Get(r.chatID); err == nil {
		text += configText(s.Config())
		if !s.HasCredentials() {
			text += "\n🔑 No API keys, use /set_keys"
		}
	} else {
		text += "none, use /set_keys KEY SECRET"
	}
	text += "\n\n🛰 System\n" + systemText(t.state.Get())
	return t.reply(r.chatID, text)
}

func (t *Telegram) handleRisk(_ context.Context, r request) error {
	s, err := t.sessions.Get(r.chatID)
	if err != nil {
		return err
	}
	msg := tgbot.NewMessage(r.chatID, "🎚 Risk settings\n\n"+configText(s.Config()))
	msg.ReplyMarkup = riskKeyboard()
	_, err = t.SendMessage(msg)
	return err
}

func riskKeyboard() tgbot.InlineKeyboardMarkup {
	btn := func(label, kind, value string) tgbot.InlineKeyboardButton {
		return tgbot.NewInlineKeyboardButtonData(label, cfgPrefix+"|"+kind+"|"+value)
	}
	presets := make([]tgbot.InlineKeyboardButton, 0, len(models.PresetOrder))
	for _, name := range models.PresetOrder {
		presets = append(presets, btn(models.Presets[name].Name, "PRESET", name))
	}
	return tgbot.NewInlineKeyboardMarkup(
		presets,
		tgbot.NewInlineKeyboardRow(
			btn("x3", "LEV", "3"), btn("x5", "LEV", "5"), btn("x10", "LEV", "10"), btn("x20", "LEV", "20"),
		),
		tgbot.NewInlineKeyboardRow(
			btn("Margin 5%", "MARGIN", "0.05"), btn("10%", "MARGIN", "0.1"), btn("25%", "MARGIN", "0.25"),
		),
		tgbot.NewInlineKeyboardRow(
			btn("Spot off", "SPOT", "0"), btn("Spot 5%", "SPOT", "0.05"), btn("10%", "SPOT", "0.1"),
		),
		tgbot.NewInlineKeyboardRow(
			btn("✏️ Leverage", "ASK", sessions.KeyLeverage), btn("✏️ Stop", "ASK", sessions.KeyStopLossPct),
		),
	)
}

func (t *Telegram) handleSetKeys(ctx context.Context, r request) error {
	if len(r.args) != 2 {
		return t.reply(r.chatID, "Usage: /set_keys KEY SECRET")
	}
	// в сообщении секрет, убираем его из истории чата
	if _, err := t.bot.Request(tgbot.NewDeleteMessage(r.chatID, r.msgID)); err != nil {
		_ = t.reply(r.chatID, "⚠️ Could not delete your message, remove it by hand.")
	}
	s, err := t.sessions.CreateOrUpdate(ctx, r.chatID, models.Credentials{APIKey: r.args[0], APISecret: r.args[1]})
	if err != nil {
		if s == nil {
			return err
		}
		_ = t.reply(r.chatID, "⚠️ Keys are active but were not persisted: "+err.Error())
	}
	return t.reply(r.chatID, fmt.Sprintf("✅ Keys saved. Mode: %s\n%s", s.Mode(), modeDescriptions[s.Mode()]))
}

// setter handles the single-value /set_* commands.
func (t *Telegram) setter(key string) func(context.Context, request) error {
	return func(ctx context.Context, r request) error {
		if len(r.args) != 1 {
			return t.reply(r.chatID, "Usage: /"+commandFor(key)+" value")
		}
		return t.applySetting(ctx, r.chatID, key, r.args[0])
	}
}

func commandFor(key string) string {
	switch key {
	case sessions.KeyLeverage:
		return "set_leverage"
	case sessions.KeyMaxCapitalPct:
		return "set_margin"
	case sessions.KeySpotAllocationPct:
		return "set_spot_alloc"
	case sessions.KeyStopLossPct:
		return "set_stop"
	}
	return "set_proxy"
}

func (t *Telegram) applySetting(ctx context.Context, chatID int64, key, value string) error {
	s, err := t.sessions.Get(chatID)
	if err != nil {
		return err
	}
	if err := s.UpdateConfig(key, value); err != nil {
		return err
	}
	t.persist(ctx, chatID)
	return t.reply(chatID, "✅ Config updated\n"+configText(s.Config()))
}

// persist сохраняет сессии; при ошибке главной остаётся память.
func (t *Telegram) persist(ctx context.Context, chatID int64) {
	if err := t.sessions.Save(ctx); err != nil {
		t.report(chatID, "save", fmt.Errorf("settings applied but not saved: %w", err))
	}
}

func (t *Telegram) modeSwitch(mode models.Mode) func(context.Context, request) error {
	return func(ctx context.Context, r request) error {
		s, err := t.sessions.Get(r.chatID)
		if err != nil {
			return err
		}
		if err := s.SetMode(string(mode)); err != nil {
			return err
		}
		t.persist(ctx, r.chatID)
		return t.reply(r.chatID, "🔁 Mode switched\n"+modeDescriptions[mode])
	}
}

func (t *Telegram) handleMode(_ context.Context, r request) error {
	s, err := t.sessions.Get(r.chatID)
	if err != nil {
		return err
	}
	return t.reply(r.chatID, "Current mode: "+string(s.Mode())+"\n"+modeDescriptions[s.Mode()])
}

func (t *Telegram) handleDeleteSession(ctx context.Context, r request) error {
	if err := t.sessions.Remove(ctx, r.chatID); err != nil {
		return err
	}
	return t.reply(r.chatID, "🗑 Session deleted, keys removed.")
}

// handleConfigCallback applies a CFG|… button and rewrites the menu message.
func (t *Telegram) handleConfigCallback(ctx context.Context, chatID int64, msgID int, kind, value string) (string, error) {
	s, err := t.sessions.Get(chatID)
	if err != nil {
		return "", err
	}
	switch kind {
	case "PRESET":
		if err := s.ApplyPreset(value); err != nil {
			return "", err
		}
	case "ASK":
		prompt, ok := askPrompts[value]
		if !ok {
			return "", fmt.Errorf("%w: unknown setting %q", models.ErrConfigValidation, value)
		}
		t.await.set(chatID, value)
		return "✏️", t.reply(chatID, prompt)
	default:
		key, ok := cfgKeys[kind]
		if !ok {
			return "", fmt.Errorf("%w: unknown setting %q", models.ErrConfigValidation, kind)
		}
		if err := s.UpdateConfig(key, value); err != nil {
			return "", err
		}
	}
	t.persist(ctx, chatID)
	return "✅ Saved", t.editTextAndMarkup(chatID, msgID, "✅ Config updated\n\n"+configText(s.Config()), riskKeyboard())
}
