package runner

import (
	"context"
	"time"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/runner/filter"
	"signal_bot/internal/runner/router"
	"signal_bot/internal/runner/sessions"
	"signal_bot/internal/strategy"
	"signal_bot/pkg/logger"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			NewStateKeeperFromConfig,
			NewAggregatorFromConfig,
			filter.NewPositionBook,
			NewManagerFromConfig,
			NewRouterFromConfig,
			NewFromConfig,
		),
		fx.Invoke(Start),
	)
}

func NewStateKeeperFromConfig(cfg *config.Config, store StateStore) *StateKeeper {
	return NewStateKeeper(store, cfg.Groups)
}

func NewAggregatorFromConfig(cfg *config.Config, keeper *StateKeeper) *filter.Aggregator {
	agg := filter.NewAggregator(cfg.Runner.Cooldown, cfg.Runner.PriceDeviation)
	keeper.OnCooldown(agg.SetCooldown)
	return agg
}

func NewManagerFromConfig(
	cfg *config.Config,
	store sessions.Store,
	codec sessions.SecretCodec,
	factory sessions.ClientFactory,
) *sessions.Manager {
	defaults := models.DefaultSessionConfig()
	defaults.Leverage = cfg.Risk.Leverage
	defaults.MaxCapitalPct = cfg.Risk.MaxCapitalPct
	defaults.SpotAllocationPct = cfg.Risk.SpotAllocationPct
	defaults.StopLossPct = cfg.Risk.StopLossPct

	limits := sessions.Limits{
		MaxLeverage: cfg.Risk.MaxLeverage,
		ATRStopMult: cfg.Risk.ATRStopMult,
		RewardRisk:  cfg.Risk.TakeProfitRR,
	}
	return sessions.NewManager(store, codec, factory, limits, defaults)
}

func NewRouterFromConfig(cfg *config.Config, mgr *sessions.Manager, notifier router.Notifier) *router.Router {
	return router.NewRouter(mgr, notifier, cfg.Telegram.ChatIDs, cfg.Copilot.ProposalTTL, cfg.Runner.Workers)
}

func NewFromConfig(
	cfg *config.Config,
	market MarketData,
	engine *strategy.Engine,
	keeper *StateKeeper,
	agg *filter.Aggregator,
	book *filter.PositionBook,
	rt *router.Router,
	health Health,
) *Runner {
	return New(Config{
		Interval:        cfg.Runner.Interval,
		Timeframe:       cfg.Runner.Timeframe,
		Limit:           cfg.Runner.Limit,
		HTFTimeframe:    cfg.Runner.HTFTimeframe,
		HTFLimit:        cfg.Runner.HTFLimit,
		HTFCacheTTL:     cfg.Runner.HTFCacheTTL,
		Workers:         cfg.Runner.Workers,
		AssetTimeout:    cfg.Runner.AssetTimeout,
		DispatchTimeout: cfg.Runner.DispatchTimeout,
	}, Deps{
		Market:     market,
		Engine:     engine,
		State:      keeper,
		Aggregator: agg,
		Book:       book,
		Dispatcher: rt,
		Names:      cfg.DisplayName,
		Health:     health,
	})
}

// Start restores persisted state and runs the loop for the app lifetime.
func Start(
	lc fx.Lifecycle,
	r *Runner,
	keeper *StateKeeper,
	mgr *sessions.Manager,
	book *filter.PositionBook,
) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			keeper.Load(startCtx)
			if err := mgr.Load(startCtx); err != nil {
				return err
			}
			if err := book.Restore(startCtx); err != nil {
				logger.Warn("positions: %v", err)
			}
			go func() {
				defer close(done)
				r.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			case <-time.After(10 * time.Second):
			}
			return mgr.Save(stopCtx)
		},
	})
}
