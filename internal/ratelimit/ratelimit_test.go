package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestLimiterAllow(t *testing.T) {
	cfg := Config{
		RequestsPerMinute: 60,
		BurstSize:         5,
		CleanupInterval:   time.Minute,
	}
	limiter := New(cfg)
	defer limiter.Stop()

	key := "test-ip"

	// Should allow burst size requests immediately
	for i := 0; i < 5; i++ {
		if !limiter.Allow(key) {
			t.Errorf("Request %d should be allowed (within burst)", i)
		}
	}

	// Next request should be denied
	if limiter.Allow(key) {
		t.Error("Request after burst should be denied")
	}

	// Wait for token replenishment (1 second = 1 token at 60/min)
	time.Sleep(time.Second)

	// Should allow again
	if !limiter.Allow(key) {
		t.Error("Request after waiting should be allowed")
	}
}

func TestLimiterMultipleClients(t *testing.T) {
	cfg := Config{
		RequestsPerMinute: 60,
		BurstSize:         3,
		CleanupInterval:   time.Minute,
	}
	limiter := New(cfg)
	defer limiter.Stop()

	// Client A uses up their tokens
	for i := 0; i < 3; i++ {
		limiter.Allow("client-a")
	}

	// Client A is now rate limited
	if limiter.Allow("client-a") {
		t.Error("Client A should be rate limited")
	}

	// Client B should still have tokens
	if !limiter.Allow("client-b") {
		t.Error("Client B should not be rate limited")
	}
}

func TestLimiterTokenReplenishment(t *testing.T) {
	cfg := Config{
		RequestsPerMinute: 600, // 10 per second
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	}
	limiter := New(cfg)
	defer limiter.Stop()

	key := "test"

	// Use the one token
	if !limiter.Allow(key) {
		t.Error("First request should be allowed")
	}

	// Should be denied
	if limiter.Allow(key) {
		t.Error("Second immediate request should be denied")
	}

	// Wait 100ms (should get 1 token at 10/sec)
	time.Sleep(110 * time.Millisecond)

	// Should be allowed again
	if !limiter.Allow(key) {
		t.Error("Request after 100ms should be allowed")
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	limiter := New(Config{})
	defer limiter.Stop()

	if limiter.cfg.RequestsPerMinute != 120 {
		t.Errorf("Expected 120 requests/min default, got %d", limiter.cfg.RequestsPerMinute)
	}
	if limiter.cfg.BurstSize != 20 {
		t.Errorf("Expected burst size 20 default, got %d", limiter.cfg.BurstSize)
	}
	if limiter.cfg.CleanupInterval != time.Minute {
		t.Errorf("Expected 1 minute cleanup interval default, got %v", limiter.cfg.CleanupInterval)
	}
}

func TestMiddlewareBucketsByBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter := New(Config{RequestsPerMinute: 60, BurstSize: 1, CleanupInterval: time.Minute})
	defer limiter.Stop()

	r := gin.New()
	r.Use(limiter.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(token string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		r.ServeHTTP(w, req)
		return w.Code
	}

	// Two callers behind the same IP with different tokens get separate buckets.
	if code := do("frontend-aaaaaaaaaaaaaaaa"); code != http.StatusOK {
		t.Errorf("first caller got %d", code)
	}
	if code := do("frontend-aaaaaaaaaaaaaaaa"); code != http.StatusTooManyRequests {
		t.Errorf("exhausted caller got %d, want 429", code)
	}
	if code := do("frontend-bbbbbbbbbbbbbbbb"); code != http.StatusOK {
		t.Errorf("second caller got %d, want 200", code)
	}
}

func TestMiddlewareRejectionBody(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter := New(Config{RequestsPerMinute: 60, BurstSize: 1, CleanupInterval: time.Minute})
	defer limiter.Stop()

	r := gin.New()
	r.Use(limiter.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if i == 1 {
			if w.Code != http.StatusTooManyRequests {
				t.Fatalf("got %d, want 429", w.Code)
			}
			if body := w.Body.String(); !strings.Contains(body, "rate_limit_exceeded") {
				t.Errorf("body = %q", body)
			}
		}
	}
}
