package main

import (
	"context"
	"log"

	"signal_bot/internal/modules/api"
	"signal_bot/internal/modules/binance"
	"signal_bot/internal/modules/bootstrap"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/health"
	"signal_bot/internal/modules/postgres"
	"signal_bot/internal/modules/redis"
	"signal_bot/internal/modules/secrets"
	"signal_bot/internal/modules/store"
	telegram "signal_bot/internal/modules/telegram_bot"
	"signal_bot/internal/runner"
	"signal_bot/internal/strategy"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/tracing"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const serviceName = "signal_bot"

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger.SetServiceName(serviceName)
	zl, err := logger.Init(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if cfg.Tracing.Enabled {
		tracing.SetServiceName(serviceName)
		_, closeTracer, err := tracing.InitTracer(tracing.Config{Host: cfg.Tracing.Host, Port: cfg.Tracing.Port})
		if err != nil {
			logger.Warn("tracing disabled: %v", err)
		} else {
			defer closeTracer()
		}
	}

	app := fx.New(
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zl.WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),
		config.Module(cfg),
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		postgres.Module(),
		store.Module(),
		secrets.Module(),
		binance.Module(),
		redis.Module(),
		strategy.Module(),
		runner.Module(),
		bootstrap.Module(),
		health.Module(),
		telegram.Module(),
		api.Module(),
	)
	app.Run()
}
