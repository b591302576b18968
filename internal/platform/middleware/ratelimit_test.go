package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func serve(h echo.HandlerFunc, e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ip + ":1234"
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		e.HTTPErrorHandler(err, e.NewContext(req, rec))
	}
	return rec
}

func TestRateLimit_WithinBurst(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 10, Burst: 5})(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for i := 0; i < 5; i++ {
		rec := serve(h, e, "10.0.0.1")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit 10, got %q", i+1, rec.Header().Get("X-RateLimit-Limit"))
		}
	}
}

func TestRateLimit_ExceedsBurst(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 0.5, Burst: 2})(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	serve(h, e, "10.0.0.2")
	serve(h, e, "10.0.0.2")
	rec := serve(h, e, "10.0.0.2")

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Error("expected X-RateLimit-Remaining 0")
	}

	// Other clients have their own budget.
	if rec := serve(h, e, "10.0.0.3"); rec.Code != http.StatusOK {
		t.Errorf("expected 200 for a different client, got %d", rec.Code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{})(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	for i := 0; i < 20; i++ {
		if rec := serve(h, e, "10.0.0.4"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}

func TestLimiterStore_EvictsIdle(t *testing.T) {
	store := newLimiterStore(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, IdleTTL: time.Minute})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.get("a")
	now = now.Add(2 * time.Minute)
	store.get("b")

	if _, ok := store.clients["a"]; ok {
		t.Error("expected idle client to be evicted")
	}
	if len(store.clients) != 1 {
		t.Errorf("expected 1 client, got %d", len(store.clients))
	}
}
