package service

import (
	"context"
	"errors"
	"strings"

	"signal_bot/internal/models"
	"signal_bot/internal/runner/router"
	"signal_bot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type role int

const (
	rolePublic role = iota
	roleSubscriber
	roleAdmin
)

type request struct {
	chatID int64
	msgID  int
	args   []string
	role   role
}

func (r request) arg(i int) string {
	if i < len(r.args) {
		return r.args[i]
	}
	return ""
}

type command struct {
	run   func(ctx context.Context, r request) error
	admin bool
}

func (t *Telegram) commandTable() map[string]command {
	user := func(fn func(context.Context, request) error) command { return command{run: fn} }
	admin := func(fn func(context.Context, request) error) command { return command{run: fn, admin: true} }

	return map[string]command{
		"start":          user(t.handleStart),
		"help":           user(t.handleStart),
		"status":         user(t.handleStatus),
		"config":         user(t.handleStatus),
		"risk":           user(t.handleRisk),
		"price":          user(t.handlePrice),
		"set_keys":       user(t.handleSetKeys),
		"set_leverage":   user(t.setter("leverage")),
		"set_margin":     user(t.setter("max_capital_pct")),
		"set_spot_alloc": user(t.setter("spot_allocation_pct")),
		"set_stop":       user(t.setter("stop_loss_pct")),
		"set_proxy":      user(t.setter("proxy_url")),
		"wallet":         user(t.handleWallet),
		"buy":            user(t.handleBuy),
		"long":           user(t.handleLong),
		"sell":           user(t.handleSell),
		"close":          user(t.handleClose),
		"closeall":       user(t.handleCloseAll),
		"watcher":        user(t.modeSwitch(models.ModeWatcher)),
		"copilot":        user(t.modeSwitch(models.ModeCopilot)),
		"pilot":          user(t.modeSwitch(models.ModePilot)),
		"mode":           user(t.handleMode),
		"delete_session": user(t.handleDeleteSession),

		"toggle_group":    admin(t.handleToggleGroup),
		"toggle_asset":    admin(t.handleToggleAsset),
		"toggle_strategy": admin(t.handleToggleStrategy),
		"set_interval":    admin(t.handleSetCooldown),
		"set_cooldown":    admin(t.handleSetCooldown),
		"debug":           admin(t.handleDebug),
		"api_token":       admin(t.handleAPIToken),
	}
}

func (t *Telegram) roleOf(chatID int64) role {
	if t.opts.AdminID != 0 && chatID == t.opts.AdminID {
		return roleAdmin
	}
	if _, ok := t.subscribers[chatID]; ok {
		return roleSubscriber
	}
	if t.sessions != nil && t.sessions.Has(chatID) {
		return roleSubscriber
	}
	return rolePublic
}

// Handle обрабатывает один апдейт: лимит, проверка роли, потом команда,
// колбэк или ожидаемое значение.
func (t *Telegram) Handle(ctx context.Context, update tgbot.Update) {
	ctx, cancel := context.WithTimeout(ctx, t.opts.CommandTimeout)
	defer cancel()

	switch {
	case update.Message != nil:
		t.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.Message == nil || cb.Message.Chat == nil {
			return
		}
		if !t.limiter.Allow(cb.Message.Chat.ID) {
			t.answer(cb.ID, "⏳ Too many requests")
			return
		}
		t.handleCallback(ctx, cb)
	}
}

func (t *Telegram) handleMessage(ctx context.Context, msg *tgbot.Message) {
	if msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	if !t.limiter.Allow(chatID) {
		_ = t.reply(chatID, "⏳ Too many requests, slow down.")
		return
	}
	rl := t.roleOf(chatID)

	if !msg.IsCommand() {
		if rl == rolePublic {
			return
		}
		if key, ok := t.await.pop(chatID); ok {
			t.report(chatID, "set "+key, t.applySetting(ctx, chatID, key, strings.TrimSpace(msg.Text)))
		}
		return
	}

	name := strings.ToLower(msg.Command())
	req := request{chatID: chatID, msgID: msg.MessageID, args: strings.Fields(msg.CommandArguments()), role: rl}

	if name == "id" {
		t.report(chatID, name, t.handleID(ctx, req))
		return
	}
	if rl == rolePublic {
		_ = t.reply(chatID, "⛔ Access denied. ID: "+itoa(chatID))
		return
	}
	cmd, ok := t.commands[name]
	if !ok {
		_ = t.reply(chatID, "🤷 Unknown command. See /help")
		return
	}
	if cmd.admin && rl != roleAdmin {
		_ = t.reply(chatID, "🛡️ Admin only.")
		return
	}
	t.report(chatID, name, cmd.run(ctx, req))
}

// report turns a handler error into a chat reply.
func (t *Telegram) report(chatID int64, op string, err error) {
	if err == nil {
		return
	}
	logger.Warn("telegram %d /%s: %v", chatID, op, err)
	_ = t.reply(chatID, userError(err))
}

func userError(err error) string {
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		return "🔑 No trading session. Send /set_keys KEY SECRET first."
	case errors.Is(err, models.ErrConfigValidation):
		return "⚠️ " + err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "⌛ Timed out, try again."
	}
	return "❌ " + err.Error()
}

func (t *Telegram) answer(callbackID, text string) {
	if _, err := t.bot.Request(tgbot.NewCallback(callbackID, text)); err != nil {
		logger.Warn("telegram callback answer: %v", err)
	}
}

func (t *Telegram) handleCallback(ctx context.Context, cb *tgbot.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	msgID := cb.Message.MessageID
	if t.roleOf(chatID) == rolePublic {
		t.answer(cb.ID, "⛔ Access denied")
		return
	}

	if confirm, token, ok := router.ParseCallback(cb.Data); ok {
		t.answer(cb.ID, "")
		t.resolveProposal(ctx, chatID, msgID, cb.Message.Text, confirm, token)
		return
	}

	parts := strings.Split(cb.Data, "|")
	if len(parts) == 3 && parts[0] == cfgPrefix {
		note, err := t.handleConfigCallback(ctx, chatID, msgID, parts[1], parts[2])
		if err != nil {
			t.answer(cb.ID, "⚠️ rejected")
			t.report(chatID, "callback", err)
			return
		}
		t.answer(cb.ID, note)
		return
	}
	t.answer(cb.ID, "🤷 unknown action")
}

// resolveProposal исполняет или пропускает предложение COPILOT и заменяет
// кнопки результатом.
func (t *Telegram) resolveProposal(ctx context.Context, chatID int64, msgID int, prompt string, confirm bool, token string) {
	var outcome string
	if confirm {
		_, msg, err := t.proposals.Confirm(ctx, chatID, token)
		if err != nil {
			outcome = userError(err)
		} else {
			outcome = msg
		}
	} else {
		if _, err := t.proposals.Reject(chatID, token); err != nil {
			outcome = userError(err)
		} else {
			outcome = "⏭ Skipped"
		}
	}
	if err := t.editText(chatID, msgID, prompt+"\n\n"+outcome); err != nil {
		logger.Warn("telegram edit %d/%d: %v", chatID, msgID, err)
		_ = t.reply(chatID, outcome)
	}
}
