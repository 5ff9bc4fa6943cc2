package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_AllowsWithinBurst(t *testing.T) {
	l := NewLimiter(1, 3)
	for i := 0; i < 3; i++ {
		if !l.allow("10.0.0.1") {
			t.Fatalf("request %d within burst was denied", i+1)
		}
	}
	if l.allow("10.0.0.1") {
		t.Fatal("request beyond burst was allowed")
	}
}

func TestLimiter_Replenishes(t *testing.T) {
	l := NewLimiter(100, 1)
	if !l.allow("10.0.0.1") {
		t.Fatal("first request denied")
	}
	if l.allow("10.0.0.1") {
		t.Fatal("second immediate request allowed")
	}

	time.Sleep(20 * time.Millisecond)
	if !l.allow("10.0.0.1") {
		t.Fatal("request denied after replenish interval")
	}
}

func TestLimiter_IndependentPerIP(t *testing.T) {
	l := NewLimiter(1, 1)
	if !l.allow("10.0.0.1") {
		t.Fatal("first IP denied")
	}
	if !l.allow("10.0.0.2") {
		t.Fatal("second IP denied after first IP used its burst")
	}
}

func TestMiddleware_Returns429(t *testing.T) {
	l := NewLimiter(0.001, 1)
	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}
}
