package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeCounter struct {
	counts map[string]int64
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[string]int64)}
}

func (f *fakeCounter) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.counts[key]++
	return f.counts[key], nil
}

func TestThrottleLimitsPerIP(t *testing.T) {
	store := newFakeCounter()
	policy := NewThrottlePolicy("checkout", time.Minute, 2, 0)
	handler := Throttle(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	fire := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
		req.RemoteAddr = "203.0.113.9:52100"
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		return resp.Code
	}

	if code := fire(); code != http.StatusCreated {
		t.Fatalf("first request should pass, got %d", code)
	}
	if code := fire(); code != http.StatusCreated {
		t.Fatalf("second request should pass, got %d", code)
	}
	if code := fire(); code != http.StatusTooManyRequests {
		t.Fatalf("third request should throttle, got %d", code)
	}
}

func TestThrottleLimitsPerIdentity(t *testing.T) {
	store := newFakeCounter()
	policy := NewThrottlePolicy("checkout", time.Minute, 0, 1)
	handler := Throttle(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	userID := uuid.New()
	fire := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
		req.RemoteAddr = ip
		req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: &userID}))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		return resp.Code
	}

	// Different source IPs, same shopper: the identity counter still trips.
	if code := fire("203.0.113.1:1000"); code != http.StatusCreated {
		t.Fatalf("first request should pass, got %d", code)
	}
	if code := fire("203.0.113.2:1000"); code != http.StatusTooManyRequests {
		t.Fatalf("second request should throttle, got %d", code)
	}
}

func TestThrottleDisabledPolicyPassesThrough(t *testing.T) {
	store := newFakeCounter()
	policy := NewThrottlePolicy("checkout", 0, 10, 10)
	handler := Throttle(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusCreated {
			t.Fatalf("disabled policy should never throttle, got %d", resp.Code)
		}
	}
	if len(store.counts) != 0 {
		t.Fatalf("disabled policy should not touch the store")
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:4000"
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.5")
	if ip := clientIP(req); ip != "198.51.100.7" {
		t.Fatalf("expected forwarded ip got %q", ip)
	}

	bare := httptest.NewRequest(http.MethodGet, "/", nil)
	bare.RemoteAddr = "192.0.2.4:5000"
	if ip := clientIP(bare); ip != "192.0.2.4" {
		t.Fatalf("expected remote addr host got %q", ip)
	}
}
