package health

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"signal_bot/internal/modules/health/service"
)

type fixedCount int

func (c fixedCount) Len() int { return int(c) }

func TestReadinessFollowsCycles(t *testing.T) {
	state := service.NewState()
	mux := NewMux(state, fixedCount(3))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before first cycle = %d", rec.Code)
	}

	state.CycleDone(time.Unix(1700000000, 0), 6)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz after cycle = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	body := rec.Body.String()
	for _, want := range []string{`"cycles":1`, `"sessions":3`, `"assets":6`, `"lastCycleUnix":1700000000`} {
		if !strings.Contains(body, want) {
			t.Fatalf("healthz %s misses %s", body, want)
		}
	}
}
