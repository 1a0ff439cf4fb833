package secrets

import (
	"context"
	"testing"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/secrets/service"
	"signal_bot/internal/runner/sessions"
)

func TestNewCodec(t *testing.T) {
	creds := models.Credentials{APIKey: "key-0123456789", APISecret: "secret"}

	cfg := &config.Config{}
	cfg.Secrets.Driver = "plain"
	codec, err := NewCodec(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := codec.(sessions.PlainCodec); !ok {
		t.Fatalf("plain driver gave %T", codec)
	}
	sealed, err := codec.Seal(context.Background(), 1, creds)
	if err != nil || sealed != creds {
		t.Fatalf("plain seal = %+v, %v", sealed, err)
	}

	cfg.Secrets.Driver = "cipher"
	cfg.Secrets.Key = "local-test-key"
	codec, err = NewCodec(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := codec.(*service.Cipher); !ok {
		t.Fatalf("cipher driver gave %T", codec)
	}
	sealed, err = codec.Seal(context.Background(), 1, creds)
	if err != nil || sealed == creds {
		t.Fatalf("cipher seal = %+v, %v", sealed, err)
	}
	opened, err := codec.Open(context.Background(), 1, sealed)
	if err != nil || opened != creds {
		t.Fatalf("cipher open = %+v, %v", opened, err)
	}

	cfg.Secrets.Key = ""
	if _, err = NewCodec(cfg); err == nil {
		t.Fatal("cipher without a key must fail")
	}
}
