package binance

import (
	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"go.uber.org/fx"

	"signal_bot/internal/modules/binance/service"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/runner"
	"signal_bot/internal/runner/sessions"
	"signal_bot/pkg/logger"
)

func NewMarket(cfg *config.Config) (*service.Market, error) {
	if cfg.Exchange.Testnet {
		gobinance.UseTestnet = true
		futures.UseTestnet = true
		logger.Warn("binance: testnet endpoints")
	}
	return service.NewMarket(cfg.Exchange.DataProxy, cfg.Exchange.Timeout, cfg.Exchange.CacheTTL)
}

func NewClientFactory(cfg *config.Config) sessions.ClientFactory {
	return service.NewFactory(cfg.Exchange.Timeout, cfg.Exchange.CacheTTL).New
}

func Module() fx.Option {
	return fx.Module("binance",
		fx.Provide(
			NewMarket,
			func(m *service.Market) runner.MarketData { return m },
			NewClientFactory,
		),
	)
}
