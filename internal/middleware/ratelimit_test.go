package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestFixedWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	fw := newFixedWindow(2, time.Minute, clock.now)

	for i := 0; i < 2; i++ {
		if ok, _ := fw.take("a"); !ok {
			t.Fatalf("request %d rejected", i+1)
		}
	}
	ok, wait := fw.take("a")
	if ok || wait != time.Minute {
		t.Fatalf("third request: ok=%v wait=%s", ok, wait)
	}
	if ok, _ := fw.take("b"); !ok {
		t.Fatal("other client limited")
	}

	clock.t = clock.t.Add(61 * time.Second)
	if ok, _ := fw.take("a"); !ok {
		t.Fatal("window did not reset")
	}
	if fw.size() != 1 {
		t.Fatalf("expired windows not swept: %d", fw.size())
	}
}

func TestClientKey(t *testing.T) {
	tests := map[string]string{
		"198.51.100.10:1234": "198.51.100.10",
		"[2001:db8::2]:443":  "2001:db8::2",
		"203.0.113.7":        "203.0.113.7",
	}
	for remote, want := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = remote
		if got := clientKey(r); got != want {
			t.Errorf("clientKey(%q) = %q, want %q", remote, got, want)
		}
	}
}

func TestRateLimitRejectsAfterLimit(t *testing.T) {
	handler := RateLimit(1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", nil)
	req.RemoteAddr = "198.51.100.10:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After missing")
	}
}
