package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	vault "github.com/hashicorp/vault/api"

	"signal_bot/internal/models"
)

const vaultRef = "vault:"

// KV is the subset of the Vault KV v2 client the store needs.
type KV interface {
	Put(ctx context.Context, secretPath string, data map[string]interface{}, opts ...vault.KVOption) (*vault.KVSecret, error)
	Get(ctx context.Context, secretPath string) (*vault.KVSecret, error)
}

// Vault keeps credentials in a KV v2 engine. The session store only holds
// a reference of the form vault:<chat id>.
type Vault struct {
	kv   KV
	path string
}

func NewVault(kv KV, path string) *Vault {
	return &Vault{kv: kv, path: strings.Trim(path, "/")}
}

// NewVaultClient dials the configured server. An empty address falls back
// to VAULT_ADDR handled by the client itself.
func NewVaultClient(address, token, mount string) (*vault.KVv2, error) {
	cfg := vault.DefaultConfig()
	if address != "" {
		cfg.Address = address
	}
	c, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	if token != "" {
		c.SetToken(token)
	}
	return c.KVv2(mount), nil
}

func (v *Vault) Seal(ctx context.Context, chatID int64, creds models.Credentials) (out models.Credentials, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("vault.Seal: %w", err)
		}
	}()
	if strings.HasPrefix(creds.APIKey, vaultRef) {
		return creds, nil
	}
	_, err = v.kv.Put(ctx, v.secretPath(chatID), map[string]interface{}{
		"api_key":    creds.APIKey,
		"api_secret": creds.APISecret,
	})
	if err != nil {
		return models.Credentials{}, fmt.Errorf("%w: %v", models.ErrExternalCall, err)
	}
	ref := vaultRef + strconv.FormatInt(chatID, 10)
	return models.Credentials{APIKey: ref, APISecret: ref}, nil
}

// Open resolves a vault reference. Plain values pass through.
func (v *Vault) Open(ctx context.Context, chatID int64, creds models.Credentials) (out models.Credentials, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("vault.Open: %w", err)
		}
	}()
	if !strings.HasPrefix(creds.APIKey, vaultRef) {
		return creds, nil
	}
	secret, err := v.kv.Get(ctx, v.secretPath(chatID))
	if err != nil {
		return models.Credentials{}, fmt.Errorf("%w: %v", models.ErrExternalCall, err)
	}
	if secret == nil || secret.Data == nil {
		return models.Credentials{}, fmt.Errorf("%w: no secret for chat %d", models.ErrSessionNotFound, chatID)
	}
	key, _ := secret.Data["api_key"].(string)
	sec, _ := secret.Data["api_secret"].(string)
	return models.Credentials{APIKey: key, APISecret: sec}, nil
}

func (v *Vault) secretPath(chatID int64) string {
	return v.path + "/" + strconv.FormatInt(chatID, 10)
}
