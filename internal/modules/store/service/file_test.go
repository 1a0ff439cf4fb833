package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"signal_bot/internal/models"
)

func newFileStore(t *testing.T) (*File, string) {
	dir := t.TempDir()
	return NewFile(filepath.Join(dir, "data", "sessions.json"), filepath.Join(dir, "data", "bot_state.json")), dir
}

func TestFileSessionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	f, _ := newFileStore(t)

	got, err := f.LoadSessions(ctx)
	if err != nil || len(got) != 0 {
		t.Fatalf("empty store: %v, %v", got, err)
	}

	var in []models.SessionRecord
	for i := int64(1); i <= 5; i++ {
		cfg := models.DefaultSessionConfig()
		cfg.Leverage = int(i * 2)
		cfg.Mode = models.ModeCopilot
		cfg.ProxyURL = "socks5://127.0.0.1:1080"
		in = append(in, models.SessionRecord{ChatID: i, APIKey: "k", APISecret: "s", Config: cfg})
	}
	if err := f.SaveSessions(ctx, in); err != nil {
		t.Fatal(err)
	}
	got, err = f.LoadSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(in) {
		t.Fatalf("loaded %d sessions", len(got))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Fatalf("session %d: %+v != %+v", i, got[i], in[i])
		}
	}
}

func TestFileSessionsCorrupt(t *testing.T) {
	f, _ := newFileStore(t)
	if err := os.MkdirAll(filepath.Dir(f.sessionsPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(f.sessionsPath, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := f.LoadSessions(context.Background()); err == nil {
		t.Fatal("corrupt file loaded")
	}
}

func TestFileStateMergesOverDefaults(t *testing.T) {
	ctx := context.Background()
	f, _ := newFileStore(t)

	st, err := f.LoadState(ctx)
	if err != nil || st.SignalCooldown != 3600 {
		t.Fatalf("missing file: %+v, %v", st, err)
	}

	if err := os.MkdirAll(filepath.Dir(f.statePath), 0o755); err != nil {
		t.Fatal(err)
	}
	partial := `{"group_config": {"STOCKS": true}, "disabled_assets": ["ZECUSDT"]}`
	if err := os.WriteFile(f.statePath, []byte(partial), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err = f.LoadState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !st.GroupConfig[models.GroupStocks] || !st.GroupConfig[models.GroupCrypto] {
		t.Fatalf("groups = %v", st.GroupConfig)
	}
	if !st.EnabledStrategies[models.FlagMeanReversion] || st.SignalCooldown != 3600 {
		t.Fatalf("defaults lost: %+v", st)
	}
	if !st.AssetDisabled("ZECUSDT") {
		t.Fatal("disabled assets not loaded")
	}

	st.SignalCooldown = 120
	if err := f.SaveState(ctx, st); err != nil {
		t.Fatal(err)
	}
	back, err := f.LoadState(ctx)
	if err != nil || back.SignalCooldown != 120 {
		t.Fatalf("reload: %+v, %v", back, err)
	}

	if err := os.WriteFile(f.statePath, []byte("]["), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err = f.LoadState(ctx)
	if err == nil {
		t.Fatal("corrupt state accepted")
	}
	if st.SignalCooldown != 3600 {
		t.Fatalf("corrupt state did not fall back to defaults: %+v", st)
	}
}

func TestWriteAtomicLeavesNoTemp(t *testing.T) {
	f, dir := newFileStore(t)
	if err := f.SaveSessions(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "data"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("temp file left: %s", e.Name())
		}
	}
}
