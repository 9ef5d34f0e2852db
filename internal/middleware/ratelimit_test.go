package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeEvaler struct {
	counts map[string]int64
	err    error
	keys   []string
}

func (f *fakeEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.keys = append(f.keys, keys...)
	if f.err != nil {
		return redis.NewCmdResult(nil, f.err)
	}
	f.counts[keys[0]]++
	return redis.NewCmdResult(f.counts[keys[0]], nil)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	ev := &fakeEvaler{counts: map[string]int64{}}
	rl := NewRateLimiter(ev, 2, time.Hour, "ratelimit:friend-requests:", func(r *http.Request) string { return "user-1" }, true)
	h := rl.Middleware(okHandler())

	var codes []int
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
		codes = append(codes, rr.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes: %v", codes)
	}
	if ev.keys[0] != "ratelimit:friend-requests:user-1" {
		t.Fatalf("unexpected key %q", ev.keys[0])
	}
}

func TestRateLimiter_FallsBackToClientIP(t *testing.T) {
	ev := &fakeEvaler{counts: map[string]int64{}}
	rl := NewRateLimiter(ev, 5, time.Minute, "rl:", func(r *http.Request) string { return "" }, true)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rl.Middleware(okHandler()).ServeHTTP(httptest.NewRecorder(), req)

	if len(ev.keys) != 1 || ev.keys[0] != "rl:203.0.113.9" {
		t.Fatalf("unexpected keys: %v", ev.keys)
	}
}

func TestRateLimiter_RedisErrors(t *testing.T) {
	ev := &fakeEvaler{err: errors.New("connection refused")}

	open := NewRateLimiter(ev, 1, time.Minute, "rl:", func(r *http.Request) string { return "u" }, true)
	rr := httptest.NewRecorder()
	open.Middleware(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("fail-open: expected 200, got %d", rr.Code)
	}

	closed := NewRateLimiter(ev, 1, time.Minute, "rl:", func(r *http.Request) string { return "u" }, false)
	rr = httptest.NewRecorder()
	closed.Middleware(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("fail-closed: expected 503, got %d", rr.Code)
	}
}

func TestRateLimiter_DisabledWithoutRedisOrLimit(t *testing.T) {
	for _, rl := range []*RateLimiter{
		NewRateLimiter(nil, 1, time.Minute, "rl:", func(r *http.Request) string { return "u" }, false),
		NewRateLimiter(&fakeEvaler{err: errors.New("unused")}, 0, time.Minute, "rl:", func(r *http.Request) string { return "u" }, false),
	} {
		rr := httptest.NewRecorder()
		rl.Middleware(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected pass-through, got %d", rr.Code)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if got := GetClientIP(req); got != "192.0.2.1" {
		t.Fatalf("expected remote addr host, got %q", got)
	}
	req.Header.Set("X-Real-IP", " 198.51.100.7 ")
	if got := GetClientIP(req); got != "198.51.100.7" {
		t.Fatalf("expected X-Real-IP, got %q", got)
	}
}
