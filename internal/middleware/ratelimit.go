package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// fixedWindow counts requests per key in windows of length per. Expired
// windows are swept at most once per window so idle clients do not pile up.
type fixedWindow struct {
	limit int
	per   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	windows   map[string]*window
	nextSweep time.Time
}

type window struct {
	count int
	ends  time.Time
}

func newFixedWindow(limit int, per time.Duration, now func() time.Time) *fixedWindow {
	return &fixedWindow{limit: limit, per: per, now: now, windows: make(map[string]*window), nextSweep: now().Add(per)}
}

// take records one request for key. When the window is exhausted it returns
// false and the wait until the window resets.
func (f *fixedWindow) take(key string) (bool, time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	if now.After(f.nextSweep) {
		for k, w := range f.windows {
			if now.After(w.ends) {
				delete(f.windows, k)
			}
		}
		f.nextSweep = now.Add(f.per)
	}
	w, ok := f.windows[key]
	if !ok || now.After(w.ends) {
		w = &window{ends: now.Add(f.per)}
		f.windows[key] = w
	}
	if w.count >= f.limit {
		return false, w.ends.Sub(now)
	}
	w.count++
	return true, 0
}

func (f *fixedWindow) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.windows)
}

// RateLimit allows limit requests per client IP in each window of length per.
// It expects chi's RealIP to have normalized RemoteAddr already.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	fw := newFixedWindow(limit, per, time.Now)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := fw.take(clientKey(r))
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate_limited","message":"too many requests"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
