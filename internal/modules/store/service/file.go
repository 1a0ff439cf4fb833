package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/bytedance/sonic"

	"signal_bot/internal/models"
)

// File keeps sessions and the system state in two JSON files. Every write
// goes to a temp file that is renamed over the target.
type File struct {
	sessionsPath string
	statePath    string

	mu sync.Mutex
}

func NewFile(sessionsPath, statePath string) *File {
	return &File{sessionsPath: sessionsPath, statePath: statePath}
}

// fileSession is one entry of the sessions file, keyed by chat id.
type fileSession struct {
	APIKey    string               `json:"api_key"`
	APISecret string               `json:"api_secret"`
	Config    models.SessionConfig `json:"config"`
}

// LoadSessions reads every stored session. A missing file is an empty store.
func (f *File) LoadSessions(ctx context.Context) (out []models.SessionRecord, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("file.LoadSessions: %w", err)
		}
	}()
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.sessionsPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var byChat map[string]fileSession
	if err := sonic.Unmarshal(raw, &byChat); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.sessionsPath, err)
	}
	for key, s := range byChat {
		chatID, perr := strconv.ParseInt(key, 10, 64)
		if perr != nil {
			continue
		}
		out = append(out, models.SessionRecord{
			ChatID:    chatID,
			APIKey:    s.APIKey,
			APISecret: s.APISecret,
			Config:    s.Config,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}

// SaveSessions replaces the stored set.
func (f *File) SaveSessions(ctx context.Context, records []models.SessionRecord) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("file.SaveSessions: %w", err)
		}
	}()
	byChat := make(map[string]fileSession, len(records))
	for _, r := range records {
		byChat[strconv.FormatInt(r.ChatID, 10)] = fileSession{
			APIKey:    r.APIKey,
			APISecret: r.APISecret,
			Config:    r.Config,
		}
	}
	b, err := sonic.MarshalIndent(byChat, "", "  ")
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return writeAtomic(f.sessionsPath, b, 0o600)
}

// storedState mirrors models.SystemState with every field optional so that
// keys missing from the file keep their defaults.
type storedState struct {
	EnabledStrategies map[string]bool `json:"enabled_strategies"`
	GroupConfig       map[string]bool `json:"group_config"`
	DisabledAssets    *[]string       `json:"disabled_assets"`
	SignalCooldown    *int            `json:"signal_cooldown"`
}

// LoadState merges the state file over the defaults. A missing file yields
// the defaults; a corrupt one is an error.
func (f *File) LoadState(ctx context.Context) (st models.SystemState, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("file.LoadState: %w", err)
		}
	}()
	f.mu.Lock()
	defer f.mu.Unlock()

	st = models.DefaultSystemState()
	raw, err := os.ReadFile(f.statePath)
	if os.IsNotExist(err) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	if err := MergeState(&st, raw); err != nil {
		return models.DefaultSystemState(), fmt.Errorf("decode %s: %w", f.statePath, err)
	}
	return st, nil
}

func (f *File) SaveState(ctx context.Context, st models.SystemState) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("file.SaveState: %w", err)
		}
	}()
	b, err := sonic.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return writeAtomic(f.statePath, b, 0o644)
}

// MergeState overlays a JSON document onto st key by key.
func MergeState(st *models.SystemState, raw []byte) error {
	var in storedState
	if err := sonic.Unmarshal(raw, &in); err != nil {
		return err
	}
	for k, v := range in.EnabledStrategies {
		st.EnabledStrategies[k] = v
	}
	for k, v := range in.GroupConfig {
		st.GroupConfig[k] = v
	}
	if in.DisabledAssets != nil {
		st.DisabledAssets = append([]string{}, (*in.DisabledAssets)...)
	}
	if in.SignalCooldown != nil && *in.SignalCooldown >= 0 {
		st.SignalCooldown = *in.SignalCooldown
	}
	return nil
}

func writeAtomic(path string, b []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
