package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"signal_bot/internal/models"
	"signal_bot/internal/runner/sessions"
	"signal_bot/pkg/logger"

	"github.com/patrickmn/go-cache"
)

// Notifier delivers a text, optionally with inline choices, to one chat.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string, choices ...models.Choice) error
}

// Publisher receives every dispatched alert, e.g. the websocket feed.
type Publisher interface {
	Publish(alert models.Alert)
}

// Sessions is the part of the session manager the router needs.
type Sessions interface {
	All() []*sessions.Session
	Get(chatID int64) (*sessions.Session, error)
	Has(chatID int64) bool
}

// Delivery counts what one dispatch did.
type Delivery struct {
	Executed int
	Proposed int
	Notified int
	Failed   int
}

// Router раскидывает алерты по сессиям в зависимости от режима: PILOT исполняет,
// COPILOT получает предложение, WATCHER просто текст. Чаты из конфига без
// сессии тоже получают текст.
type Router struct {
	sessions Sessions
	notifier Notifier
	watchers []int64
	sem      chan struct{}

	proposals *cache.Cache
	claimMu   sync.Mutex

	pubMu      sync.RWMutex
	publishers []Publisher

	now func() time.Time
}

func NewRouter(src Sessions, notifier Notifier, watchers []int64, proposalTTL time.Duration, workers int) *Router {
	if proposalTTL <= 0 {
		proposalTTL = 15 * time.Minute
	}
	if workers <= 0 {
		workers = 4
	}
	return &Router{
		sessions:  src,
		notifier:  notifier,
		watchers:  watchers,
		sem:       make(chan struct{}, workers),
		proposals: cache.New(proposalTTL, 2*proposalTTL),
		now:       time.Now,
	}
}

func (r *Router) Subscribe(p Publisher) {
	r.pubMu.Lock()
	r.publishers = append(r.publishers, p)
	r.pubMu.Unlock()
}

// Dispatch доставляет один алерт. Ошибка в одном чате не останавливает остальные.
func (r *Router) Dispatch(ctx context.Context, alert models.Alert) Delivery {
	r.publish(alert)

	var (
		mu  sync.Mutex
		out Delivery
		wg  sync.WaitGroup
	)
	count := func(f func(*Delivery)) {
		mu.Lock()
		f(&out)
		mu.Unlock()
	}

	for _, sess := range r.sessions.All() {
		s := sess
		select {
		case r.sem <- struct{}{}:
		case <-ctx.Done():
			count(func(d *Delivery) { d.Failed++ })
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-r.sem }()
			r.deliver(ctx, s, alert, count)
		}()
	}
	wg.Wait()

	for _, chatID := range r.watchers {
		if r.sessions.Has(chatID) {
			continue
		}
		if err := r.notifier.Send(ctx, chatID, alert.Text); err != nil {
			logger.Warn("notify watcher %d: %v", chatID, err)
			out.Failed++
			continue
		}
		out.Notified++
	}
	return out
}

func (r *Router) deliver(ctx context.Context, s *sessions.Session, alert models.Alert, count func(func(*Delivery))) {
	chatID := s.ChatID()

	switch s.Mode() {
	case models.ModePilot:
		msg, err := s.Execute(ctx, alert.Action, alert.Asset, alert.Metrics.ATR)
		text := alert.Text + "\n\n🤖 PILOT: " + msg
		if err != nil {
			logger.Warn("session %d: %s %s: %v", chatID, alert.Action, alert.Asset, err)
			text = alert.Text + "\n\n❌ PILOT: " + err.Error()
			count(func(d *Delivery) { d.Failed++ })
		} else {
			count(func(d *Delivery) { d.Executed++ })
		}
		r.send(ctx, chatID, text)

	case models.ModeCopilot:
		p := r.propose(chatID, alert)
		choices := []models.Choice{
			{Label: "✅ Execute", Data: ConfirmPrefix + p.Token},
			{Label: "❌ Ignore", Data: RejectPrefix + p.Token},
		}
		if err := r.notifier.Send(ctx, chatID, alert.Text, choices...); err != nil {
			logger.Warn("session %d: send proposal: %v", chatID, err)
			r.proposals.Delete(p.Token)
			count(func(d *Delivery) { d.Failed++ })
			return
		}
		count(func(d *Delivery) { d.Proposed++ })

	default:
		if err := r.notifier.Send(ctx, chatID, alert.Text); err != nil {
			logger.Warn("session %d: notify: %v", chatID, err)
			count(func(d *Delivery) { d.Failed++ })
			return
		}
		count(func(d *Delivery) { d.Notified++ })
	}
}

func (r *Router) send(ctx context.Context, chatID int64, text string) {
	if err := r.notifier.Send(ctx, chatID, text); err != nil {
		logger.Warn("session %d: notify: %v", chatID, err)
	}
}

func (r *Router) publish(alert models.Alert) {
	r.pubMu.RLock()
	defer r.pubMu.RUnlock()
	for _, p := range r.publishers {
		p.Publish(alert)
	}
}

// Broadcast sends a plain text to every session and watcher chat.
func (r *Router) Broadcast(ctx context.Context, text string) error {
	var firstErr error
	seen := make(map[int64]bool)
	targets := make([]int64, 0)
	for _, s := range r.sessions.All() {
		targets = append(targets, s.ChatID())
	}
	targets = append(targets, r.watchers...)
	for _, id := range targets {
		if seen[id] {
			continue
		}
		seen[id] = true
		if err := r.notifier.Send(ctx, id, text); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("router.Broadcast %d: %w", id, err)
		}
	}
	return firstErr
}
