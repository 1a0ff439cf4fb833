package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	vault "github.com/hashicorp/vault/api"

	"signal_bot/internal/models"
)

func TestCipherRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := NewCipher("correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}
	in := models.Credentials{APIKey: "binance-key", APISecret: "binance-secret"}

	sealed, err := c.Seal(ctx, 42, in)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(sealed.APIKey, sealedPrefix) || strings.Contains(sealed.APISecret, "binance") {
		t.Fatalf("not sealed: %q %q", sealed.APIKey, sealed.APISecret)
	}
	again, _ := c.Seal(ctx, 42, in)
	if again.APIKey == sealed.APIKey {
		t.Fatal("nonce reused")
	}

	out, err := c.Open(ctx, 42, sealed)
	if err != nil || out != in {
		t.Fatalf("open = %+v, %v", out, err)
	}

	if _, err := c.Open(ctx, 43, sealed); !errors.Is(err, ErrSealed) {
		t.Fatalf("other chat opened: %v", err)
	}
	other, _ := NewCipher("another key")
	if _, err := other.Open(ctx, 42, sealed); !errors.Is(err, ErrSealed) {
		t.Fatalf("other key opened: %v", err)
	}

	legacy, err := c.Open(ctx, 42, in)
	if err != nil || legacy != in {
		t.Fatalf("plain value: %+v, %v", legacy, err)
	}
}

func TestCipherRequiresKey(t *testing.T) {
	if _, err := NewCipher(""); !errors.Is(err, models.ErrConfigValidation) {
		t.Fatalf("err = %v", err)
	}
}

type fakeKV struct {
	data map[string]map[string]interface{}
	err  error
}

func (f *fakeKV) Put(_ context.Context, p string, data map[string]interface{}, _ ...vault.KVOption) (*vault.KVSecret, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.data[p] = data
	return &vault.KVSecret{Data: data}, nil
}

func (f *fakeKV) Get(_ context.Context, p string) (*vault.KVSecret, error) {
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.data[p]
	if !ok {
		return nil, vault.ErrSecretNotFound
	}
	return &vault.KVSecret{Data: d}, nil
}

func TestVaultRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := &fakeKV{data: map[string]map[string]interface{}{}}
	v := NewVault(kv, "/signal_bot/sessions/")
	in := models.Credentials{APIKey: "k", APISecret: "s"}

	ref, err := v.Seal(ctx, 7, in)
	if err != nil {
		t.Fatal(err)
	}
	if ref.APIKey != "vault:7" || ref.APISecret != "vault:7" {
		t.Fatalf("ref = %+v", ref)
	}
	if kv.data["signal_bot/sessions/7"]["api_secret"] != "s" {
		t.Fatalf("stored = %v", kv.data)
	}

	out, err := v.Open(ctx, 7, ref)
	if err != nil || out != in {
		t.Fatalf("open = %+v, %v", out, err)
	}

	kv.err = errors.New("sealed")
	if _, err := v.Open(ctx, 7, ref); !errors.Is(err, models.ErrExternalCall) {
		t.Fatalf("vault failure err = %v", err)
	}
	if out, err := v.Open(ctx, 7, in); err != nil || out != in {
		t.Fatal("plain credentials should pass through")
	}
}
