package telegram

import (
	"context"
	"fmt"
	"net/http"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/telegram_bot/service"
	"signal_bot/internal/runner"
	"signal_bot/internal/runner/router"
	"signal_bot/internal/runner/sessions"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			NewBotAPI,
			service.NewNotifier,
			func(n *service.Notifier) router.Notifier { return n },
			NewTelegram,
		),
		fx.Invoke(
			func(lc fx.Lifecycle, t *service.Telegram) {
				lc.Append(fx.Hook{
					OnStart: func(context.Context) error {
						t.Start()
						return nil
					},
					OnStop: func(context.Context) error {
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}

func NewBotAPI(cfg *config.Config) (service.Bot, error) {
	if cfg.Telegram.Token == "" {
		return nil, fmt.Errorf("%w: telegram token is empty, set TELEGRAM_TOKEN", models.ErrConfigValidation)
	}
	// long polling shares this client, so the timeout must outlast the poll
	client := &http.Client{Timeout: cfg.Telegram.HTTPTimeout}
	b, err := tgbot.NewBotAPIWithClient(cfg.Telegram.Token, tgbot.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("%w: telegram: %v", models.ErrExternalCall, err)
	}
	return b, nil
}

func NewTelegram(
	cfg *config.Config,
	bot service.Bot,
	mgr *sessions.Manager,
	rt *router.Router,
	r *runner.Runner,
	keeper *runner.StateKeeper,
	tokens service.TokenIssuer,
) *service.Telegram {
	return service.NewTelegram(bot, service.Options{
		AdminID:        cfg.Telegram.AdminID,
		ChatIDs:        cfg.Telegram.ChatIDs,
		Workers:        cfg.Telegram.Workers,
		RatePerMinute:  cfg.Telegram.RatePerMinute,
		Burst:          cfg.Telegram.Burst,
		CommandTimeout: cfg.Telegram.CommandTimeout,
		PollTimeout:    config.TelegramPollTimeout,
	}, service.Deps{
		Sessions:  mgr,
		Proposals: rt,
		Analyzer:  r,
		State:     keeper,
		Resolve:   cfg.ResolveSymbol,
		Names:     cfg.DisplayName,
		Tokens:    tokens,
	})
}
