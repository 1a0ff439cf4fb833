package service

import (
	"context"
	"fmt"
	"sync"

	"signal_bot/internal/models"
	"signal_bot/pkg/logger"
)

// TrendPrimer caches the higher-timeframe trend of one asset.
type TrendPrimer interface {
	PrimeTrend(ctx context.Context, asset string) error
}

type AssetLister interface {
	Assets() []string
}

type Notifier interface {
	Send(ctx context.Context, chatID int64, text string, choices ...models.Choice) error
}

// Warmuper fills the higher-timeframe cache for every enabled asset before
// the first signals need it.
type Warmuper struct {
	primer  TrendPrimer
	assets  AssetLister
	n       Notifier
	adminID int64

	// ограничиваем параллельные запросы, чтобы не упереться в лимиты биржи
	sem chan struct{}
}

func NewWarmuper(primer TrendPrimer, assets AssetLister, n Notifier, adminID int64, parallel int) *Warmuper {
	if parallel <= 0 {
		parallel = 8
	}
	return &Warmuper{
		primer:  primer,
		assets:  assets,
		n:       n,
		adminID: adminID,
		sem:     make(chan struct{}, parallel),
	}
}

// Warmup прогревает все активы и возвращает число успешных и первую ошибку.
// Упавший актив догрузит обычный цикл.
func (w *Warmuper) Warmup(ctx context.Context) (int, error) {
	symbols := w.assets.Assets()
	if len(symbols) == 0 {
		return 0, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		firstErr error
	)
	for _, sym := range symbols {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case w.sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-w.sem }()

			err := w.primer.PrimeTrend(ctx, sym)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("warmup %s: %w", sym, err)
				}
				return
			}
			ok++
		}()
	}
	wg.Wait()
	if firstErr == nil && ctx.Err() != nil {
		firstErr = ctx.Err()
	}

	msg := fmt.Sprintf("✅ Warmup finished: %d/%d higher-timeframe trends cached", ok, len(symbols))
	if firstErr != nil {
		msg = fmt.Sprintf("⚠️ Warmup finished with errors: %d/%d cached, %v", ok, len(symbols), firstErr)
	}
	w.notifyAdmin(ctx, msg)
	return ok, firstErr
}

func (w *Warmuper) notifyAdmin(ctx context.Context, msg string) {
	if w.adminID == 0 || w.n == nil {
		logger.Info("%s", msg)
		return
	}
	if err := w.n.Send(ctx, w.adminID, msg); err != nil {
		logger.Warn("warmup notify: %v", err)
	}
}
