package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tupacaintdeadcuh/ergtrack/internal/model"
	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func authedRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/submit/checkin", nil)
	ctx := ContextWithIdentity(req.Context(), &model.Identity{ID: userID})
	return req.WithContext(ctx)
}

func TestRateLimiter_SubmitMiddleware_AllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(2),
		GeneralBurst:    120,
		SubmitRate:      rate.Limit(10.0 / 60.0),
		SubmitBurst:     10,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.SubmitMiddleware()(okHandler())

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest("user-1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}

func TestRateLimiter_SubmitMiddleware_RejectsOverBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(2),
		GeneralBurst:    120,
		SubmitRate:      rate.Limit(10.0 / 60.0),
		SubmitBurst:     10,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.SubmitMiddleware()(okHandler())

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest("user-1"))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("user-1"))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got == "" {
		t.Error("expected Retry-After header")
	}
	if got := rec.Body.String(); got != "{\"error\":\"rate_limited\"}\n" {
		t.Errorf("unexpected body: %q", got)
	}
}

func TestRateLimiter_PerUserIsolation(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(2),
		GeneralBurst:    120,
		SubmitRate:      rate.Limit(10.0 / 60.0),
		SubmitBurst:     1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.SubmitMiddleware()(okHandler())

	// user-1がバーストを使い切る
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("user-1"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("user-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for user-1, got %d", rec.Code)
	}

	// user-2は影響を受けない
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("user-2"))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for user-2, got %d", rec.Code)
	}

	if got := rl.SubmitLimiterCount(); got != 2 {
		t.Errorf("expected 2 limiter entries, got %d", got)
	}
}

func TestRateLimiter_GeneralAndSubmitIndependent(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(2),
		GeneralBurst:    120,
		SubmitRate:      rate.Limit(10.0 / 60.0),
		SubmitBurst:     1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	submitHandler := rl.SubmitMiddleware()(okHandler())
	generalHandler := rl.GeneralMiddleware()(okHandler())

	// 提出のバーストを使い切ってもAPI全般は通る
	rec := httptest.NewRecorder()
	submitHandler.ServeHTTP(rec, authedRequest("user-1"))
	rec = httptest.NewRecorder()
	submitHandler.ServeHTTP(rec, authedRequest("user-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected submit 429, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	generalHandler.ServeHTTP(rec, authedRequest("user-1"))
	if rec.Code != http.StatusOK {
		t.Errorf("expected general 200, got %d", rec.Code)
	}
}

func TestRateLimiter_Unauthenticated(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/submissions", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestRateLimiter_StopIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}

func TestLimiterSet_EvictStale(t *testing.T) {
	ls := newLimiterSet(rate.Limit(1), 1)

	ls.getOrCreate("user-1")
	ls.getOrCreate("user-2")

	ls.mu.Lock()
	ls.entries["user-1"].lastAccess = time.Now().Add(-time.Hour)
	ls.mu.Unlock()

	ls.evictStale(10 * time.Minute)

	if got := ls.count(); got != 1 {
		t.Errorf("expected 1 entry after eviction, got %d", got)
	}
}
