package service

import (
	"context"
	"fmt"

	"signal_bot/internal/helper"
	"signal_bot/internal/models"
	"signal_bot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (t *Telegram) handlePrice(ctx context.Context, r request) error {
	if asset := r.arg(0); asset != "" {
		text, err := t.analyzer.Quote(ctx, t.resolve(asset))
		if err != nil {
			return err
		}
		return t.reply(r.chatID, text)
	}

	placeholder, err := t.bot.Send(tgbot.NewMessage(r.chatID, "⏳ Scanning the market..."))
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrExternalCall, err)
	}
	report := t.analyzer.Radar(ctx)
	if len(report) > maxMessageLen {
		return t.reply(r.chatID, report)
	}
	if err := t.editText(r.chatID, placeholder.MessageID, report); err != nil {
		return t.reply(r.chatID, report)
	}
	return nil
}

func (t *Telegram) handleWallet(ctx context.Context, r request) error {
	s, err := t.sessions.Get(r.chatID)
	if err != nil {
		return err
	}
	w, err := s.Wallet(ctx)
	if err != nil {
		return err
	}
	return t.reply(r.chatID, helper.Wallet(w.Futures, w.Spot, w.Positions))
}

// trade runs one manual order for the asset named in the first argument.
func (t *Telegram) trade(ctx context.Context, r request, usage string, exec func(ctx context.Context, asset string) (string, error)) error {
	if r.arg(0) == "" {
		return t.reply(r.chatID, "Usage: "+usage)
	}
	asset := t.resolve(r.arg(0))
	msg, err := exec(ctx, asset)
	if err != nil {
		return err
	}
	return t.reply(r.chatID, msg)
}

// atrFor считает ATR для стопа. При нуле берём фиксированный стоп сессии.
func (t *Telegram) atrFor(ctx context.Context, asset string) float64 {
	an, err := t.analyzer.Process(ctx, asset)
	if err != nil {
		logger.Warn("telegram: atr for %s: %v", asset, err)
		return 0
	}
	return an.Metrics.ATR
}

func (t *Telegram) handleBuy(ctx context.Context, r request) error {
	s, err := t.sessions.Get(r.chatID)
	if err != nil {
		return err
	}
	return t.trade(ctx, r, "/buy asset", s.ExecuteSpotBuy)
}

func (t *Telegram) handleLong(ctx context.Context, r request) error {
	s, err := t.sessions.Get(r.chatID)
	if err != nil {
		return err
	}
	return t.trade(ctx, r, "/long asset", func(ctx context.Context, asset string) (string, error) {
		return s.ExecuteLong(ctx, asset, t.atrFor(ctx, asset))
	})
}

// handleSell closes an open long, otherwise opens a short.
func (t *Telegram) handleSell(ctx context.Context, r request) error {
	s, err := t.sessions.Get(r.chatID)
	if err != nil {
		return err
	}
	return t.trade(ctx, r, "/sell asset", func(ctx context.Context, asset string) (string, error) {
		return s.ExecuteSell(ctx, asset, t.atrFor(ctx, asset))
	})
}

func (t *Telegram) handleClose(ctx context.Context, r request) error {
	s, err := t.sessions.Get(r.chatID)
	if err != nil {
		return err
	}
	return t.trade(ctx, r, "/close asset", s.ExecuteClose)
}

func (t *Telegram) handleCloseAll(ctx context.Context, r request) error {
	s, err := t.sessions.Get(r.chatID)
	if err != nil {
		return err
	}
	msg, err := s.ExecuteCloseAll(ctx)
	if msg != "" {
		_ = t.reply(r.chatID, msg)
	}
	return err
}
