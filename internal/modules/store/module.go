package store

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/store/service"
	"signal_bot/internal/runner"
	"signal_bot/internal/runner/sessions"
	"signal_bot/pkg/db"
	"signal_bot/pkg/logger"
)

// Backend is what both store drivers implement.
type Backend interface {
	sessions.Store
	runner.StateStore
}

// NewBackend picks the driver from store.driver. tx is nil unless the
// postgres driver is selected.
func NewBackend(ctx context.Context, cfg *config.Config, tx *db.PgTxManager) (Backend, error) {
	switch cfg.Store.Driver {
	case "postgres":
		if tx == nil {
			return nil, fmt.Errorf("store: postgres driver without a pool")
		}
		pg := service.NewPg(tx)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		logger.Info("store: postgres")
		return pg, nil
	default:
		logger.Info("store: files %s, %s", cfg.Store.SessionsPath, cfg.Store.StatePath)
		return service.NewFile(cfg.Store.SessionsPath, cfg.Store.StatePath), nil
	}
}

func Module() fx.Option {
	return fx.Module("store",
		fx.Provide(
			NewBackend,
			func(b Backend) sessions.Store { return b },
			func(b Backend) runner.StateStore { return b },
		),
	)
}
