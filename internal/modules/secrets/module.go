package secrets

import (
	"go.uber.org/fx"

	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/secrets/service"
	"signal_bot/internal/runner/sessions"
	"signal_bot/pkg/logger"
)

// NewCodec picks how credentials are kept at rest from secrets.driver.
func NewCodec(cfg *config.Config) (sessions.SecretCodec, error) {
	switch cfg.Secrets.Driver {
	case "cipher":
		logger.Info("secrets: sealed at rest")
		return service.NewCipher(cfg.Secrets.Key)
	case "vault":
		kv, err := service.NewVaultClient(cfg.Vault.Address, cfg.Vault.Token, cfg.Vault.Mount)
		if err != nil {
			return nil, err
		}
		logger.Info("secrets: vault %s/%s", cfg.Vault.Mount, cfg.Vault.Path)
		return service.NewVault(kv, cfg.Vault.Path), nil
	default:
		logger.Warn("secrets: exchange keys are stored in plain text")
		return sessions.PlainCodec{}, nil
	}
}

func Module() fx.Option {
	return fx.Module("secrets",
		fx.Provide(NewCodec),
	)
}
