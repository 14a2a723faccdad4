package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tupacaintdeadcuh/ergtrack/internal/auth"
	"github.com/tupacaintdeadcuh/ergtrack/internal/metrics"
	"github.com/tupacaintdeadcuh/ergtrack/internal/middleware"
	"github.com/tupacaintdeadcuh/ergtrack/internal/model"
	"github.com/tupacaintdeadcuh/ergtrack/internal/store"
)

// staticSessionFinder は固定のセッション集合を返すSessionFinder。
type staticSessionFinder struct {
	sessions map[string]*model.Session
}

func (f *staticSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return f.sessions[id], nil
}

type routerFixture struct {
	router   http.Handler
	store    *store.SubmissionStore
	notifier *mockNotifier
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	st := store.NewSubmissionStore(store.DefaultCapacity)
	notifier := &mockNotifier{}
	finder := &staticSessionFinder{
		sessions: map[string]*model.Session{
			"sess-1": {
				ID:        "sess-1",
				User:      model.Identity{ID: "42", Username: "ann", Discriminator: "0001"},
				ExpiresAt: time.Now().Add(time.Hour),
			},
		},
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	router := NewRouter(&RouterDeps{
		SessionFinder:  finder,
		SessionSecret:  testSessionSecret,
		RateLimiter:    rl,
		Logger:         slog.New(slog.NewJSONHandler(io.Discard, nil)),
		AuthService:    &mockAuthService{},
		AuthConfig:     testAuthConfig(),
		Store:          st,
		Notifier:       notifier,
		WebhookTimeout: 5 * time.Second,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),
		StaticDir:      staticTestDir(t),
	})

	return &routerFixture{router: router, store: st, notifier: notifier}
}

func sessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:  middleware.SessionCookieName,
		Value: auth.SignSessionID(testSessionSecret, "sess-1"),
	}
}

func TestRouter_SubmitRequiresAuth(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/submit/checkin", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"unauthenticated"}` {
		t.Errorf("unexpected body: %q", got)
	}
	if f.store.Len() != 0 {
		t.Error("expected no stored submission")
	}
}

func TestRouter_SubmitAuthenticated(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/submit/application", bytes.NewReader([]byte(`{"role":"rower"}`)))
	req.AddCookie(sessionCookie())
	rec := httptest.NewRecorder()

	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"ok":true}` {
		t.Errorf("unexpected body: %q", got)
	}

	if f.store.Len() != 1 {
		t.Fatalf("expected 1 stored submission, got %d", f.store.Len())
	}
	stored := f.store.ListRecent(1)[0]
	if stored.Kind != model.KindApplication || stored.User.ID != "42" {
		t.Errorf("unexpected submission: %+v", stored)
	}
	if f.notifier.callCount() != 1 {
		t.Errorf("expected 1 notify call, got %d", f.notifier.callCount())
	}
}

func TestRouter_AdminSubmissionsRequiresAuth(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/submissions", nil)
	rec := httptest.NewRecorder()

	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRouter_AdminSubmissionsAuthenticated(t *testing.T) {
	f := newRouterFixture(t)

	// 提出してから一覧を取得
	submit := httptest.NewRequest(http.MethodPost, "/api/submit/training", bytes.NewReader([]byte(`{"week":3}`)))
	submit.AddCookie(sessionCookie())
	f.router.ServeHTTP(httptest.NewRecorder(), submit)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/submissions", nil)
	req.AddCookie(sessionCookie())
	rec := httptest.NewRecorder()

	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Rows []model.Submission `json:"rows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if len(body.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(body.Rows))
	}
	if body.Rows[0].Kind != model.KindTraining {
		t.Errorf("expected training, got %s", body.Rows[0].Kind)
	}
}

func TestRouter_UserEndpoint(t *testing.T) {
	f := newRouterFixture(t)

	// 未認証
	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"loggedIn":false}` {
		t.Errorf("unexpected unauthenticated body: %q", got)
	}

	// 認証済み
	req = httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.AddCookie(sessionCookie())
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var body struct {
		LoggedIn bool           `json:"loggedIn"`
		User     model.Identity `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if !body.LoggedIn || body.User.Username != "ann" {
		t.Errorf("unexpected authenticated body: %+v", body)
	}
}

func TestRouter_ExpiredSessionTreatedAsAnonymous(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.AddCookie(&http.Cookie{
		Name:  middleware.SessionCookieName,
		Value: auth.SignSessionID(testSessionSecret, "sess-gone"),
	})
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if got := strings.TrimSpace(rec.Body.String()); got != `{"loggedIn":false}` {
		t.Errorf("expected anonymous response, got %q", got)
	}
}

func TestRouter_HealthEndpoint(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"status":"ok"}` {
		t.Errorf("unexpected body: %q", got)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouter_SPAFallback(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "<html>app</html>" {
		t.Errorf("expected index fallback, got %q", got)
	}
}

func TestRouter_SecurityHeaders(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff header, got %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("expected DENY header, got %q", got)
	}
}
