package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"signal_bot/internal/models"
	"signal_bot/internal/runner/sessions"
	"signal_bot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot is the part of the Telegram API the service talks to. *tgbot.BotAPI
// satisfies it.
type Bot interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
	Request(c tgbot.Chattable) (*tgbot.APIResponse, error)
	GetUpdatesChan(config tgbot.UpdateConfig) tgbot.UpdatesChannel
	StopReceivingUpdates()
}

// Analyzer runs on-demand market evaluations.
type Analyzer interface {
	Radar(ctx context.Context) string
	Quote(ctx context.Context, asset string) (string, error)
	Process(ctx context.Context, asset string) (models.Analysis, error)
	Snapshot() map[string]models.Analysis
}

// Proposals resolves COPILOT confirmations.
type Proposals interface {
	Confirm(ctx context.Context, chatID int64, token string) (models.Proposal, string, error)
	Reject(chatID int64, token string) (models.Proposal, error)
	Pending() int
}

// Toggles is the operator control surface over the system state.
type Toggles interface {
	Get() models.SystemState
	ToggleGroup(ctx context.Context, group string) (bool, error)
	ToggleAsset(ctx context.Context, asset string) (bool, error)
	ToggleStrategy(ctx context.Context, flag string) (bool, error)
	SetCooldown(ctx context.Context, seconds int) error
}

// TokenIssuer signs admin API tokens.
type TokenIssuer interface {
	Issue(subject string) (string, time.Time, error)
}

type Options struct {
	AdminID        int64
	ChatIDs        []int64
	Workers        int
	RatePerMinute  int
	Burst          int
	CommandTimeout time.Duration
	PollTimeout    time.Duration
}

type Deps struct {
	Sessions  *sessions.Manager
	Proposals Proposals
	Analyzer  Analyzer
	State     Toggles
	Resolve   func(input string) string
	Names     func(symbol string) string
	Tokens    TokenIssuer
}

// Telegram is the chat front-end: it routes commands and callbacks to the
// session manager and delivers router notifications.
type Telegram struct {
	*Notifier
	bot         Bot
	opts        Options
	subscribers map[int64]struct{}

	sessions  *sessions.Manager
	proposals Proposals
	analyzer  Analyzer
	state     Toggles
	resolve   func(string) string
	names     func(string) string
	tokens    TokenIssuer

	limiter  *limiter
	await    *awaitStore
	commands map[string]command

	jobs   chan tgbot.Update
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTelegram(bot Bot, opts Options, d Deps) *Telegram {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 30 * time.Second
	}
	if opts.PollTimeout < time.Second {
		opts.PollTimeout = 30 * time.Second
	}
	subs := make(map[int64]struct{}, len(opts.ChatIDs))
	for _, id := range opts.ChatIDs {
		subs[id] = struct{}{}
	}
	resolve := d.Resolve
	if resolve == nil {
		resolve = func(s string) string { return s }
	}
	names := d.Names
	if names == nil {
		names = func(s string) string { return s }
	}

	t := &Telegram{
		Notifier:    NewNotifier(bot),
		bot:         bot,
		opts:        opts,
		subscribers: subs,
		sessions:    d.Sessions,
		proposals:   d.Proposals,
		analyzer:    d.Analyzer,
		state:       d.State,
		resolve:     resolve,
		names:       names,
		tokens:      d.Tokens,
		limiter:     newLimiter(opts.RatePerMinute, opts.Burst),
		await:       newAwaitStore(),
		jobs:        make(chan tgbot.Update, opts.Workers*4),
	}
	t.commands = t.commandTable()
	return t
}

// Notifier delivers outbound messages. It only needs the bot API so the
// router can depend on it without the command side.
type Notifier struct {
	bot Bot
}

func NewNotifier(bot Bot) *Notifier {
	return &Notifier{bot: bot}
}

// Send implements the router notifier. Choices become one row of inline
// buttons under the last chunk. It returns when ctx is done even if the
// bot call is still in flight.
func (t *Notifier) Send(ctx context.Context, chatID int64, text string, choices ...models.Choice) error {
	chunks := splitText(text, maxMessageLen)
	for i, chunk := range chunks {
		msg := tgbot.NewMessage(chatID, chunk)
		if i == len(chunks)-1 && len(choices) > 0 {
			row := make([]tgbot.InlineKeyboardButton, 0, len(choices))
			for _, c := range choices {
				row = append(row, tgbot.NewInlineKeyboardButtonData(c.Label, c.Data))
			}
			msg.ReplyMarkup = tgbot.NewInlineKeyboardMarkup(row)
		}
		if err := t.send(ctx, msg); err != nil {
			return fmt.Errorf("%w: telegram send to %d: %v", models.ErrExternalCall, chatID, err)
		}
	}
	return nil
}

// send waits for the bot call or ctx. An abandoned call ends with the
// http client timeout.
func (t *Notifier) send(ctx context.Context, c tgbot.Chattable) error {
	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(c)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Telegram) reply(chatID int64, text string) error {
	return t.Send(context.Background(), chatID, text)
}

func (t *Telegram) SendMessage(message tgbot.MessageConfig) (tgbot.Message, error) {
	return t.bot.Send(message)
}

func (t *Telegram) editText(chatID int64, msgID int, text string) error {
	_, err := t.bot.Request(tgbot.NewEditMessageText(chatID, msgID, text))
	return err
}

func (t *Telegram) editTextAndMarkup(chatID int64, msgID int, text string, kb tgbot.InlineKeyboardMarkup) error {
	_, err := t.bot.Request(tgbot.NewEditMessageTextAndMarkup(chatID, msgID, text, kb))
	return err
}

// Start читает апдейты и раздаёт их воркерам до вызова Stop.
func (t *Telegram) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	for i := 0; i < t.opts.Workers; i++ {
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case u := <-t.jobs:
					t.Handle(ctx, u)
				}
			}
		}()
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = int(t.opts.PollTimeout / time.Second)
	updates := t.bot.GetUpdatesChan(u)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				select {
				case t.jobs <- upd:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	logger.Info("telegram: polling with %d workers", t.opts.Workers)
}

func (t *Telegram) Stop() {
	t.bot.StopReceivingUpdates()
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
}
