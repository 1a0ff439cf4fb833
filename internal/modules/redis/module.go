package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/redis/service"
	"signal_bot/internal/runner/filter"
	"signal_bot/pkg/logger"
)

// NewMirror connects the position mirror. Without redis the book runs in
// memory only.
func NewMirror(lc fx.Lifecycle, cfg *config.Config) filter.PositionMirror {
	if !cfg.Redis.Enabled || cfg.Redis.Addr == "" {
		logger.Info("redis: disabled, positions kept in memory")
		return nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := rdb.Ping(ctx).Err(); err != nil {
				// the book keeps working from memory
				logger.Warn("redis: ping %s: %v", cfg.Redis.Addr, err)
			}
			return nil
		},
		OnStop: func(context.Context) error { return rdb.Close() },
	})
	return service.NewPositions(rdb, cfg.Redis.Prefix)
}

func Module() fx.Option {
	return fx.Module("redis",
		fx.Provide(NewMirror),
	)
}
