package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"signal_bot/internal/modules/api/service"
	"signal_bot/internal/modules/config"
	telegram "signal_bot/internal/modules/telegram_bot/service"
	"signal_bot/internal/runner"
	"signal_bot/internal/runner/filter"
	"signal_bot/internal/runner/router"
	"signal_bot/internal/runner/sessions"
	"signal_bot/pkg/logger"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("api",
		fx.Provide(
			NewAuth,
			func(a *service.Auth) telegram.TokenIssuer { return a },
			NewHub,
		),
		fx.Invoke(
			func(rt *router.Router, hub *service.Hub) { rt.Subscribe(hub) },
			RunHTTP,
		),
	)
}

func NewAuth(cfg *config.Config) *service.Auth {
	return service.NewAuth(cfg.API.JWTSecret, cfg.API.TokenTTL)
}

func NewHub(lc fx.Lifecycle, cfg *config.Config) *service.Hub {
	hub := service.NewHub(cfg.API.CORSOrigins)
	lc.Append(fx.StopHook(hub.Close))
	return hub
}

// RunHTTP serves the admin API when it is enabled.
func RunHTTP(
	lc fx.Lifecycle,
	cfg *config.Config,
	auth *service.Auth,
	hub *service.Hub,
	mgr *sessions.Manager,
	book *filter.PositionBook,
	agg *filter.Aggregator,
	keeper *runner.StateKeeper,
) {
	if !cfg.API.Enabled {
		logger.Info("admin api disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	server := service.NewServer(ctx, cfg.API.CORSOrigins, service.Deps{
		Sessions:  mgr,
		Positions: book,
		Filter:    agg,
		State:     keeper,
		Auth:      auth,
		Hub:       hub,
	})
	addr := fmt.Sprintf("%s:%d", cfg.Service.Host, cfg.API.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				cancel()
				return err
			}
			logger.Info("admin api listening on %s", addr)
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("admin api: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return srv.Shutdown(ctx)
		},
	})
}
