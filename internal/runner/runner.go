package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"signal_bot/internal/helper"
	"signal_bot/internal/models"
	"signal_bot/internal/runner/filter"
	"signal_bot/internal/runner/router"
	"signal_bot/internal/strategy"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/tracing"

	"github.com/opentracing/opentracing-go"
	"golang.org/x/sync/errgroup"
)

// MarketData отдаёт свечи. При ошибке возвращается пустая серия.
type MarketData interface {
	Candles(ctx context.Context, symbol, timeframe string, limit int) models.Series
}

// Dispatcher доставляет прошедшие фильтр алерты по сессиям.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert models.Alert) router.Delivery
}

// Health is told about every finished evaluation cycle.
type Health interface {
	CycleDone(at time.Time, assets int)
}

type Config struct {
	Interval     time.Duration
	Timeframe    string
	Limit        int
	HTFTimeframe string
	HTFLimit     int
	HTFCacheTTL  time.Duration
	Workers      int
	AssetTimeout time.Duration

	// DispatchTimeout ограничивает одну рассылку алерта, вместе с отправкой и ордерами.
	DispatchTimeout time.Duration
}

type Deps struct {
	Market     MarketData
	Engine     *strategy.Engine
	State      *StateKeeper
	Aggregator *filter.Aggregator
	Book       *filter.PositionBook
	Dispatcher Dispatcher
	Names      func(symbol string) string
	Health     Health
}

// Runner это цикл оценки: на каждом тике каждый включённый актив
// анализируется, фильтруется и, если прошёл, рассылается.
type Runner struct {
	cfg    Config
	market MarketData
	engine *strategy.Engine
	state  *StateKeeper
	agg    *filter.Aggregator
	mtf    *filter.MTF
	book   *filter.PositionBook
	disp   Dispatcher
	names  func(string) string
	health Health

	lastMu sync.RWMutex
	last   map[string]models.Analysis

	now func() time.Time
}

func New(cfg Config, d Deps) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = "15m"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 200
	}
	if cfg.HTFTimeframe == "" {
		cfg.HTFTimeframe = "1h"
	}
	if cfg.HTFLimit <= 0 {
		cfg.HTFLimit = 200
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.AssetTimeout <= 0 {
		cfg.AssetTimeout = 20 * time.Second
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 30 * time.Second
	}
	names := d.Names
	if names == nil {
		names = func(s string) string { return s }
	}

	r := &Runner{
		cfg:    cfg,
		market: d.Market,
		engine: d.Engine,
		state:  d.State,
		agg:    d.Aggregator,
		book:   d.Book,
		disp:   d.Dispatcher,
		names:  names,
		health: d.Health,
		last:   make(map[string]models.Analysis),
		now:    time.Now,
	}
	r.mtf = filter.NewMTF(r.HTFTrend, cfg.HTFCacheTTL)
	return r
}

// Run evaluates immediately and then on every tick until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	logger.Info("runner started: interval=%s timeframe=%s workers=%d", r.cfg.Interval, r.cfg.Timeframe, r.cfg.Workers)
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		r.Cycle(ctx)
		select {
		case <-ctx.Done():
			logger.Info("runner stopped")
			return
		case <-ticker.C:
		}
	}
}

// Cycle один раз прогоняет все включённые активы. Ошибка по активу
// логируется и пропускается.
func (r *Runner) Cycle(ctx context.Context) {
	span, ctx := tracing.StartSpan(ctx, "runner.cycle", nil)
	defer span.Finish()

	assets := r.state.Assets()
	span.SetTag("assets", len(assets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for _, asset := range assets {
		g.Go(func() error {
			if err := r.handle(gctx, asset); err != nil {
				logger.Warn("asset %s: %v", asset, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if r.health != nil {
		r.health.CycleDone(r.now(), len(assets))
	}
}

func (r *Runner) handle(ctx context.Context, asset string) error {
	an, err := r.Process(ctx, asset)
	if err != nil {
		return err
	}
	if !r.agg.ShouldAlert(asset, an) {
		return nil
	}

	name := r.names(asset)
	if an.SpotSignal {
		r.dispatch(ctx, models.Alert{
			Asset:    asset,
			Action:   models.ActionSpotBuy,
			Strategy: an.Strategy,
			Reason:   an.SpotReason,
			Text:     helper.SpotAlert(name, an),
			Metrics:  an.Metrics,
			Plan:     an.SpotPlan,
			At:       r.now(),
		})
		return nil
	}

	t, ok := r.book.Apply(ctx, asset, an.Futures)
	if !ok {
		return nil
	}
	r.dispatch(ctx, models.Alert{
		Asset:    asset,
		Action:   t.Action,
		Side:     t.Side,
		Strategy: r.engine.Squeeze().Name(),
		Reason:   an.FuturesReason,
		Text:     helper.FuturesAlert(name, t.Action, t.Side, an),
		Metrics:  an.Metrics,
		At:       r.now(),
	})
	return nil
}

func (r *Runner) dispatch(ctx context.Context, alert models.Alert) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.DispatchTimeout)
	defer cancel()
	d := r.disp.Dispatch(ctx, alert)
	logger.Info("alert %s %s: executed=%d proposed=%d notified=%d failed=%d",
		alert.Action, alert.Asset, d.Executed, d.Proposed, d.Notified, d.Failed)
}

// Process берёт свечи, анализирует их и применяет вето старшего таймфрейма.
// Результат запоминается для /price и /debug.
func (r *Runner) Process(ctx context.Context, asset string) (an models.Analysis, err error) {
	span, ctx := tracing.StartSpan(ctx, "runner.asset", opentracing.Tags{"asset": asset})
	defer func() { tracing.Finish(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.AssetTimeout)
	defer cancel()

	series := r.market.Candles(ctx, asset, r.cfg.Timeframe, r.cfg.Limit)
	an, err = r.engine.Analyze(asset, series, r.state.Get())
	if err != nil {
		return models.Analysis{}, err
	}
	r.mtf.Apply(ctx, &an)

	r.lastMu.Lock()
	r.last[asset] = an
	r.lastMu.Unlock()
	return an, nil
}

// HTFTrend classifies the higher-timeframe trend of an asset.
func (r *Runner) HTFTrend(ctx context.Context, asset string) (models.Trend, error) {
	series := r.market.Candles(ctx, asset, helper.NormTF(r.cfg.HTFTimeframe), r.cfg.HTFLimit)
	if series.Empty() {
		return "", fmt.Errorf("%w: no %s candles for %s", models.ErrDataUnavailable, r.cfg.HTFTimeframe, asset)
	}
	return r.engine.Trend(series), nil
}

// PrimeTrend заранее прогревает кэш тренда старшего таймфрейма.
func (r *Runner) PrimeTrend(ctx context.Context, asset string) error {
	return r.mtf.Prime(ctx, asset)
}

// Last returns the most recent analysis of an asset.
func (r *Runner) Last(asset string) (models.Analysis, bool) {
	r.lastMu.RLock()
	defer r.lastMu.RUnlock()
	an, ok := r.last[asset]
	return an, ok
}

// Snapshot returns every remembered analysis.
func (r *Runner) Snapshot() map[string]models.Analysis {
	r.lastMu.RLock()
	defer r.lastMu.RUnlock()
	out := make(map[string]models.Analysis, len(r.last))
	for k, v := range r.last {
		out[k] = v
	}
	return out
}
