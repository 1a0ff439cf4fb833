package sessions

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"signal_bot/internal/models"
	"signal_bot/pkg/logger"
)

// Store persists the full set of session records.
type Store interface {
	LoadSessions(ctx context.Context) ([]models.SessionRecord, error)
	SaveSessions(ctx context.Context, records []models.SessionRecord) error
}

// SecretCodec turns credentials into their at-rest form and back.
type SecretCodec interface {
	Seal(ctx context.Context, chatID int64, creds models.Credentials) (models.Credentials, error)
	Open(ctx context.Context, chatID int64, creds models.Credentials) (models.Credentials, error)
}

// PlainCodec keeps credentials as they are.
type PlainCodec struct{}

func (PlainCodec) Seal(_ context.Context, _ int64, c models.Credentials) (models.Credentials, error) {
	return c, nil
}

func (PlainCodec) Open(_ context.Context, _ int64, c models.Credentials) (models.Credentials, error) {
	return c, nil
}

// Manager owns every live session, keyed by chat id.
type Manager struct {
	store    Store
	codec    SecretCodec
	factory  ClientFactory
	limits   Limits
	defaults models.SessionConfig

	saveMu sync.Mutex

	mu       sync.RWMutex
	sessions map[int64]*Session
	// записи, ключи которых не расшифровались; пишем обратно как есть
	opaque map[int64]models.SessionRecord
	// пока последний Load упал, Save отказывает, чтобы не затереть стор
	// неполным набором
	loadErr error
}

func NewManager(store Store, codec SecretCodec, factory ClientFactory, limits Limits, defaults models.SessionConfig) *Manager {
	if codec == nil {
		codec = PlainCodec{}
	}
	if defaults.Mode == "" {
		defaults = models.DefaultSessionConfig()
	}
	return &Manager{
		store:    store,
		codec:    codec,
		factory:  factory,
		limits:   limits.withDefaults(),
		defaults: defaults,
		sessions: make(map[int64]*Session),
		opaque:   make(map[int64]models.SessionRecord),
	}
}

// Load replaces the live sessions with the stored ones. Records whose
// credentials cannot be opened stay inactive but are kept in every later
// save. After a failed Load, Save refuses until a Load succeeds.
func (m *Manager) Load(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("sessions.Load: %w", err)
		}
	}()

	records, err := m.store.LoadSessions(ctx)
	if err != nil {
		m.mu.Lock()
		m.loadErr = err
		m.mu.Unlock()
		return err
	}

	loaded := make(map[int64]*Session, len(records))
	opaque := make(map[int64]models.SessionRecord)
	for _, r := range records {
		creds, oerr := m.codec.Open(ctx, r.ChatID, r.Credentials())
		if oerr != nil {
			logger.Warn("session %d: cannot open credentials, kept inactive: %v", r.ChatID, oerr)
			opaque[r.ChatID] = r
			continue
		}
		cfg := r.Config
		if _, perr := models.ParseMode(string(cfg.Mode)); perr != nil {
			cfg.Mode = models.ModeWatcher
		}
		loaded[r.ChatID] = New(r.ChatID, creds, cfg, m.factory, m.limits)
	}

	m.mu.Lock()
	m.sessions = loaded
	m.opaque = opaque
	m.loadErr = nil
	m.mu.Unlock()

	logger.Info("loaded %d sessions, %d inactive", len(loaded), len(opaque))
	return nil
}

func (m *Manager) Get(chatID int64) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[chatID]
	if !ok {
		return nil, fmt.Errorf("%w: chat %d", models.ErrSessionNotFound, chatID)
	}
	return s, nil
}

func (m *Manager) Has(chatID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[chatID]
	return ok
}

// CreateOrUpdate installs new credentials, creating the session with the
// default config when the chat has none, and persists the set.
func (m *Manager) CreateOrUpdate(ctx context.Context, chatID int64, creds models.Credentials) (*Session, error) {
	if creds.Empty() {
		return nil, fmt.Errorf("%w: api key and secret are required", models.ErrConfigValidation)
	}

	m.mu.Lock()
	s, ok := m.sessions[chatID]
	if ok {
		s.SetCredentials(creds)
	} else {
		cfg := m.defaults
		if r, ok := m.opaque[chatID]; ok {
			// новые ключи оживляют неактивную запись со старым конфигом
			cfg = r.Config
			delete(m.opaque, chatID)
		}
		s = New(chatID, creds, cfg, m.factory, m.limits)
		m.sessions[chatID] = s
	}
	m.mu.Unlock()

	return s, m.Save(ctx)
}

// Remove drops the session and persists the set.
func (m *Manager) Remove(ctx context.Context, chatID int64) error {
	m.mu.Lock()
	_, live := m.sessions[chatID]
	_, inactive := m.opaque[chatID]
	if !live && !inactive {
		m.mu.Unlock()
		return fmt.Errorf("%w: chat %d", models.ErrSessionNotFound, chatID)
	}
	delete(m.sessions, chatID)
	delete(m.opaque, chatID)
	m.mu.Unlock()
	return m.Save(ctx)
}

// All returns the sessions ordered by chat id.
func (m *Manager) All() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].chatID < out[j].chatID })
	return out
}

func (m *Manager) Views() []models.SessionView {
	all := m.All()
	out := make([]models.SessionView, 0, len(all))
	for _, s := range all {
		out = append(out, s.View())
	}
	return out
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Save writes a snapshot of every session, inactive records included. Saves
// are serialized so the last snapshot taken is the last one written.
func (m *Manager) Save(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("sessions.Save: %w", err)
		}
	}()

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.RLock()
	loadErr := m.loadErr
	opaque := make([]models.SessionRecord, 0, len(m.opaque))
	for _, r := range m.opaque {
		opaque = append(opaque, r)
	}
	m.mu.RUnlock()
	if loadErr != nil {
		return fmt.Errorf("%w: store was not loaded, refusing to overwrite it: %v", models.ErrDataUnavailable, loadErr)
	}

	all := m.All()
	records := make([]models.SessionRecord, 0, len(all)+len(opaque))
	for _, s := range all {
		r := s.Record()
		sealed, serr := m.codec.Seal(ctx, r.ChatID, r.Credentials())
		if serr != nil {
			return serr
		}
		r.APIKey, r.APISecret = sealed.APIKey, sealed.APISecret
		records = append(records, r)
	}
	records = append(records, opaque...)
	sort.Slice(records, func(i, j int) bool { return records[i].ChatID < records[j].ChatID })
	return m.store.SaveSessions(ctx, records)
}
