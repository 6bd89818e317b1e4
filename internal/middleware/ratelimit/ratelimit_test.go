package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour})
	t.Cleanup(rl.Stop)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestLimiter_Allow(t *testing.T) {
	rl, now := newTestLimiter(t, 2)

	if !rl.Allow("1.1.1.1") || !rl.Allow("1.1.1.1") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("1.1.1.1") {
		t.Error("third request within the window should be limited")
	}
	if !rl.Allow("2.2.2.2") {
		t.Error("other clients are tracked separately")
	}

	*now = now.Add(time.Minute)
	if !rl.Allow("1.1.1.1") {
		t.Error("a new window should reset the counter")
	}
	if got := rl.GetMetrics(); got.TotalHits != 1 || got.ClientCount != 2 {
		t.Errorf("metrics = %+v, want 1 hit and 2 clients", got)
	}
}

func TestLimiter_CleanupStaleEntries(t *testing.T) {
	rl, now := newTestLimiter(t, 5)
	rl.Allow("1.1.1.1")
	*now = now.Add(11 * time.Minute)
	rl.Allow("2.2.2.2")

	rl.cleanupStaleEntries()

	if got := rl.ActiveClients(); got != 1 {
		t.Errorf("ActiveClients = %d, want 1", got)
	}
}

func TestLimiter_MiddlewareOnlyLimitsListedMethods(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	h := rl.Middleware(func(*http.Request) string { return "ip" }, nil, http.MethodPost)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := []int{}
	for _, method := range []string{http.MethodPost, http.MethodGet, http.MethodGet, http.MethodPost} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(method, "/transactions", nil))
		codes = append(codes, w.Code)
	}

	want := []int{200, 200, 200, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: status = %d, want %d", i, codes[i], want[i])
		}
	}
}
