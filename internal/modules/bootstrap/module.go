package bootstrap

import (
	"context"
	"time"

	bootstrap "signal_bot/internal/modules/bootstrap/service"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/runner"
	"signal_bot/internal/runner/router"
	"signal_bot/pkg/logger"

	"go.uber.org/fx"
)

func NewWarmuper(cfg *config.Config, r *runner.Runner, keeper *runner.StateKeeper, n router.Notifier) *bootstrap.Warmuper {
	return bootstrap.NewWarmuper(r, keeper, n, cfg.Telegram.AdminID, cfg.Runner.Workers*2)
}

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(NewWarmuper),
		fx.Invoke(func(lc fx.Lifecycle, wu *bootstrap.Warmuper) {
			ctx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						wctx, done := context.WithTimeout(ctx, 2*time.Minute)
						defer done()
						n, err := wu.Warmup(wctx)
						if err != nil {
							logger.Warn("warmup: %d assets primed, %v", n, err)
							return
						}
						logger.Info("warmup done: %d assets", n)
					}()
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
