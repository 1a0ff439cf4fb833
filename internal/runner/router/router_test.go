package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"signal_bot/internal/models"
	"signal_bot/internal/runner/sessions"
)

type sentMsg struct {
	chatID  int64
	text    string
	choices []models.Choice
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMsg
	fail map[int64]bool
}

func (f *fakeNotifier) Send(_ context.Context, chatID int64, text string, choices ...models.Choice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[chatID] {
		return errors.New("blocked by user")
	}
	f.sent = append(f.sent, sentMsg{chatID: chatID, text: text, choices: choices})
	return nil
}

func (f *fakeNotifier) to(chatID int64) []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMsg
	for _, m := range f.sent {
		if m.chatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

type fakeExchange struct {
	mu     sync.Mutex
	opened []models.OpenRequest
	spot   []string
}

func (f *fakeExchange) FuturesBalance(context.Context) (models.Balance, error) {
	return models.Balance{Free: 1000}, nil
}

func (f *fakeExchange) SpotBalance(context.Context, string) (models.Balance, error) {
	return models.Balance{Free: 1000}, nil
}

func (f *fakeExchange) Positions(context.Context) ([]models.Position, error) { return nil, nil }

func (f *fakeExchange) Price(context.Context, string) (float64, error) { return 100, nil }

func (f *fakeExchange) FuturesFilter(context.Context, string) (models.SymbolFilter, error) {
	return models.SymbolFilter{StepSize: 0.001}, nil
}

func (f *fakeExchange) SpotFilter(context.Context, string) (models.SymbolFilter, error) {
	return models.SymbolFilter{}, nil
}

func (f *fakeExchange) SetLeverage(context.Context, string, int) error { return nil }

func (f *fakeExchange) OpenPosition(_ context.Context, req models.OpenRequest) (models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, req)
	return models.Order{OrderID: "o"}, nil
}

func (f *fakeExchange) ClosePosition(context.Context, models.Position) (models.Order, error) {
	return models.Order{}, nil
}

func (f *fakeExchange) SpotMarketBuy(_ context.Context, symbol string, _ float64) (models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spot = append(f.spot, symbol)
	return models.Order{OrderID: "s"}, nil
}

type feed struct {
	mu     sync.Mutex
	alerts []models.Alert
}

func (f *feed) Publish(a models.Alert) {
	f.mu.Lock()
	f.alerts = append(f.alerts, a)
	f.mu.Unlock()
}

type fakeSessions map[int64]*sessions.Session

func (f fakeSessions) All() []*sessions.Session {
	out := make([]*sessions.Session, 0, len(f))
	for _, s := range f {
		out = append(out, s)
	}
	return out
}

func (f fakeSessions) Get(chatID int64) (*sessions.Session, error) {
	s, ok := f[chatID]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return s, nil
}

func (f fakeSessions) Has(chatID int64) bool {
	_, ok := f[chatID]
	return ok
}

func setup(t *testing.T, modes map[int64]string) (*Router, *fakeNotifier, map[int64]*fakeExchange) {
	t.Helper()
	exchanges := make(map[int64]*fakeExchange)
	src := make(fakeSessions)
	creds := models.Credentials{APIKey: "k", APISecret: "s"}

	for chatID, mode := range modes {
		ex := &fakeExchange{}
		exchanges[chatID] = ex
		factory := func(models.Credentials, string) (sessions.Exchange, error) { return ex, nil }
		s := sessions.New(chatID, creds, models.DefaultSessionConfig(), factory, sessions.Limits{})
		if err := s.SetMode(mode); err != nil {
			t.Fatal(err)
		}
		src[chatID] = s
	}

	n := &fakeNotifier{fail: map[int64]bool{}}
	return NewRouter(src, n, []int64{99}, time.Minute, 2), n, exchanges
}

func longAlert() models.Alert {
	return models.Alert{
		Asset:   "BTCUSDT",
		Action:  models.ActionOpenLong,
		Side:    models.PositionLong,
		Text:    "🚀 BTCUSDT LONG",
		Metrics: models.Metrics{ATR: 2},
	}
}

func TestDispatchByMode(t *testing.T) {
	r, n, ex := setup(t, map[int64]string{1: "WATCHER", 2: "COPILOT", 3: "PILOT"})
	f := &feed{}
	r.Subscribe(f)

	d := r.Dispatch(context.Background(), longAlert())

	want := Delivery{Executed: 1, Proposed: 1, Notified: 2}
	if d != want {
		t.Fatalf("delivery = %+v, want %+v", d, want)
	}
	if len(ex[3].opened) != 1 || ex[3].opened[0].StopLoss != 97 {
		t.Fatalf("pilot orders = %+v", ex[3].opened)
	}
	if len(ex[1].opened)+len(ex[2].opened) != 0 {
		t.Fatal("watcher or copilot executed")
	}
	if msgs := n.to(2); len(msgs) != 1 || len(msgs[0].choices) != 2 {
		t.Fatalf("copilot messages = %+v", msgs)
	}
	if msgs := n.to(1); len(msgs) != 1 || len(msgs[0].choices) != 0 {
		t.Fatalf("watcher messages = %+v", msgs)
	}
	if len(n.to(99)) != 1 {
		t.Fatal("env watcher chat was not notified")
	}
	if len(f.alerts) != 1 {
		t.Fatal("feed not published")
	}
	if r.Pending() != 1 {
		t.Fatalf("pending = %d", r.Pending())
	}
}

func TestDispatchIsolatesFailures(t *testing.T) {
	r, n, _ := setup(t, map[int64]string{1: "WATCHER", 2: "WATCHER"})
	n.fail[1] = true

	d := r.Dispatch(context.Background(), longAlert())
	if d.Failed != 1 || d.Notified != 2 {
		t.Fatalf("delivery = %+v", d)
	}
	if len(n.to(2)) != 1 {
		t.Fatal("second chat missed the alert")
	}
}

func TestConfirmExecutesProposedTriple(t *testing.T) {
	r, n, ex := setup(t, map[int64]string{2: "COPILOT"})
	alert := longAlert()
	alert.Action, alert.Side, alert.Asset = models.ActionOpenShort, models.PositionShort, "ETHUSDT"
	r.Dispatch(context.Background(), alert)

	confirm, token, ok := ParseCallback(n.to(2)[0].choices[0].Data)
	if !ok || !confirm {
		t.Fatalf("bad callback data %q", n.to(2)[0].choices[0].Data)
	}

	if _, _, err := r.Confirm(context.Background(), 3, token); !errors.Is(err, models.ErrConfigValidation) {
		t.Fatalf("foreign chat err = %v", err)
	}

	p, msg, err := r.Confirm(context.Background(), 2, token)
	if err != nil {
		t.Fatal(err)
	}
	if p.Asset != "ETHUSDT" || p.Action != models.ActionOpenShort || msg == "" {
		t.Fatalf("proposal = %+v msg=%q", p, msg)
	}
	if len(ex[2].opened) != 1 || ex[2].opened[0].Side != models.PositionShort || ex[2].opened[0].Symbol != "ETHUSDT" {
		t.Fatalf("orders = %+v", ex[2].opened)
	}

	if _, _, err := r.Confirm(context.Background(), 2, token); !errors.Is(err, ErrProposalExpired) {
		t.Fatalf("second confirm err = %v", err)
	}
}

func TestReject(t *testing.T) {
	r, n, ex := setup(t, map[int64]string{2: "COPILOT"})
	r.Dispatch(context.Background(), longAlert())

	confirm, token, _ := ParseCallback(n.to(2)[0].choices[1].Data)
	if confirm {
		t.Fatal("second button should reject")
	}
	if _, err := r.Reject(2, token); err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.Confirm(context.Background(), 2, token); !errors.Is(err, ErrProposalExpired) {
		t.Fatalf("err = %v", err)
	}
	if len(ex[2].opened) != 0 {
		t.Fatal("rejected proposal executed")
	}
}

func TestSpotDispatchPilot(t *testing.T) {
	r, _, ex := setup(t, map[int64]string{3: "PILOT"})
	d := r.Dispatch(context.Background(), models.Alert{Asset: "SOLUSDT", Action: models.ActionSpotBuy, Text: "spot"})
	if d.Executed != 1 || len(ex[3].spot) != 1 {
		t.Fatalf("delivery=%+v spot=%v", d, ex[3].spot)
	}
}

func TestParseCallback(t *testing.T) {
	if _, _, ok := ParseCallback("CFG|LEV|10"); ok {
		t.Fatal("CFG data parsed as proposal")
	}
}
