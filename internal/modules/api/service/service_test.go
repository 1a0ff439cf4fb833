package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"signal_bot/internal/models"
	"signal_bot/internal/runner/filter"
	"signal_bot/internal/runner/sessions"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

type memStore struct {
	mu   sync.Mutex
	recs []models.SessionRecord
}

func (m *memStore) LoadSessions(context.Context) ([]models.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recs, nil
}

func (m *memStore) SaveSessions(_ context.Context, recs []models.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = recs
	return nil
}

type fakePositions []filter.Transition

func (f fakePositions) Snapshot() []filter.Transition { return f }

type fakeFilter []filter.AssetState

func (f fakeFilter) Snapshot() []filter.AssetState { return f }

type fakeState struct{}

func (fakeState) Get() models.SystemState { return models.DefaultSystemState() }

func TestAuth(t *testing.T) {
	a := NewAuth("secret", time.Hour)
	token, exp, err := a.Issue("42")
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) < 59*time.Minute {
		t.Fatalf("exp = %v", exp)
	}
	sub, err := a.Validate(token)
	if err != nil || sub != "42" {
		t.Fatalf("validate: %q %v", sub, err)
	}

	if _, err := NewAuth("other", time.Hour).Validate(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("foreign secret: %v", err)
	}

	late := NewAuth("secret", time.Hour)
	late.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := late.Validate(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expired: %v", err)
	}

	if _, _, err := NewAuth("", time.Hour).Issue("1"); !errors.Is(err, models.ErrConfigValidation) {
		t.Fatalf("empty secret issue: %v", err)
	}
}

type apiFixture struct {
	srv   *httptest.Server
	mgr   *sessions.Manager
	store *memStore
	token string
	hub   *Hub
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := &memStore{}
	mgr := sessions.NewManager(store, nil, nil, sessions.DefaultLimits(), models.DefaultSessionConfig())
	if _, err := mgr.CreateOrUpdate(context.Background(), 7, models.Credentials{APIKey: "ABCDEFGHIJKLMNOP", APISecret: "topsecretvalue"}); err != nil {
		t.Fatal(err)
	}
	auth := NewAuth("secret", time.Hour)
	token, _, err := auth.Issue("1")
	if err != nil {
		t.Fatal(err)
	}
	hub := NewHub(nil)
	s := NewServer(t.Context(), nil, Deps{
		Sessions:  mgr,
		Positions: fakePositions{{Asset: "ETHUSDT", Side: models.PositionLong, To: models.PositionLong}},
		Filter:    fakeFilter{{Asset: "ETHUSDT", LastPrice: 2000, LastSignal: models.SignalSpotBuy}},
		State:     fakeState{},
		Auth:      auth,
		Hub:       hub,
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &apiFixture{srv: srv, mgr: mgr, store: store, token: token, hub: hub}
}

func (f *apiFixture) do(t *testing.T, method, path, body string, auth bool) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, string(raw)
}

func TestEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		auth     bool
		status   int
		contains string
	}{
		{"no token", http.MethodGet, "/api/v1/sessions", "", false, http.StatusUnauthorized, "missing"},
		{"sessions redacted", http.MethodGet, "/api/v1/sessions", "", true, http.StatusOK, "ABCD********MNOP"},
		{"positions", http.MethodGet, "/api/v1/positions", "", true, http.StatusOK, `"ETHUSDT"`},
		{"filter", http.MethodGet, "/api/v1/filter", "", true, http.StatusOK, `"last_price":2000`},
		{"state", http.MethodGet, "/api/v1/state", "", true, http.StatusOK, `"signal_cooldown":3600`},
		{"set mode", http.MethodPut, "/api/v1/sessions/7/mode", `{"mode":"pilot"}`, true, http.StatusOK, `"mode":"PILOT"`},
		{"bad mode", http.MethodPut, "/api/v1/sessions/7/mode", `{"mode":"yolo"}`, true, http.StatusBadRequest, "unknown mode"},
		{"missing session", http.MethodPut, "/api/v1/sessions/8/mode", `{"mode":"pilot"}`, true, http.StatusNotFound, "error"},
		{"bad id", http.MethodPut, "/api/v1/sessions/x/mode", `{"mode":"pilot"}`, true, http.StatusBadRequest, "bad session id"},
		{"empty body", http.MethodPut, "/api/v1/sessions/7/mode", `{}`, true, http.StatusBadRequest, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := f.do(t, tt.method, tt.path, tt.body, tt.auth)
			if status != tt.status {
				t.Fatalf("status = %d, want %d, body %s", status, tt.status, body)
			}
			if !strings.Contains(body, tt.contains) {
				t.Fatalf("body %s does not contain %s", body, tt.contains)
			}
		})
	}

	if _, body := f.do(t, http.MethodGet, "/api/v1/sessions", "", true); strings.Contains(body, "topsecretvalue") {
		t.Fatal("secret leaked")
	}
	if f.store.recs[0].Config.Mode != models.ModePilot {
		t.Fatalf("mode not persisted: %+v", f.store.recs[0].Config)
	}
}

func TestFeedStreamsAlerts(t *testing.T) {
	f := newAPIFixture(t)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/v1/feed?token=" + f.token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello feedEvent
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if err := sonic.Unmarshal(raw, &hello); err != nil || hello.Type != "connected" {
		t.Fatalf("hello = %s (%v)", raw, err)
	}

	// the client is registered right after the hello is queued
	deadline := time.Now().Add(2 * time.Second)
	for f.hub.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	f.hub.Publish(models.Alert{Asset: "SOLUSDT", Action: models.ActionOpenLong, Text: "🚀"})

	_, raw, err = conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var ev feedEvent
	if err := sonic.Unmarshal(raw, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != "alert" || ev.Alert == nil || ev.Alert.Asset != "SOLUSDT" {
		t.Fatalf("event = %s", raw)
	}
}

func TestFeedRequiresToken(t *testing.T) {
	f := newAPIFixture(t)
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/v1/feed"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial without token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("resp = %v", resp)
	}
}
