package postgres

import (
	"context"
	"fmt"

	"signal_bot/internal/modules/config"
	"signal_bot/pkg/db"
	"signal_bot/pkg/logger"

	"go.uber.org/fx"
)

// Module отдаёт пул для postgres-стора сессий. С другим драйвером
// отдаёт nil и никуда не коннектится.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(lc fx.Lifecycle, ctx context.Context, cfg *config.Config) (*db.PgTxManager, error) {
				if cfg.Store.Driver != "postgres" {
					return nil, nil
				}
				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				err = poolMaster.Ping(ctx)
				if err != nil {
					return nil, err
				}
				logger.Info("postgres connected")

				tx := db.NewPgTxManager(poolMaster)
				lc.Append(fx.StopHook(tx.Close))
				return tx, nil
			},
		),
	)
}
