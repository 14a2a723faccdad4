package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tupacaintdeadcuh/ergtrack/internal/metrics"
	"github.com/tupacaintdeadcuh/ergtrack/internal/middleware"
	"github.com/tupacaintdeadcuh/ergtrack/internal/store"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	SessionSecret     string
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 提出
	Store          *store.SubmissionStore
	Notifier       NotifierInterface
	WebhookTimeout time.Duration

	// 観測性（nilの場合は該当機能を無効化する）
	Metrics        *metrics.Collector
	MetricsHandler http.Handler

	// 静的アセット
	StaticDir string
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS（設定時のみ） → Logging → Session
//
// Sessionミドルウェアは認証状態をコンテキストに載せるだけで拒否はしない。
// 認証必須ルートはRequireAuth + レート制限を重ねたグループに置く。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.CORSAllowedOrigin != "" {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	}

	var statusRecorder middleware.StatusRecorder
	if deps.Metrics != nil {
		statusRecorder = deps.Metrics
	}
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, statusRecorder))
	r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, deps.SessionSecret))

	var loginRecorder LoginRecorder
	var submissionRecorder SubmissionRecorder
	if deps.Metrics != nil {
		loginRecorder = deps.Metrics
		submissionRecorder = deps.Metrics
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, loginRecorder)
	submitHandler := NewSubmitHandler(deps.Store, deps.Notifier, submissionRecorder, deps.WebhookTimeout)
	adminHandler := NewAdminHandler(deps.Store)
	staticHandler := NewStaticHandler(deps.StaticDir)

	// --- 認証不要のルート ---

	r.Get("/auth/discord", authHandler.Login)
	r.Get("/auth/callback", authHandler.Callback)
	r.Post("/logout", authHandler.Logout)
	r.Get("/api/user", authHandler.Me)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRequireAuthMiddleware())
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 提出には専用のレート制限を重ねる
		r.With(deps.RateLimiter.SubmitMiddleware()).Post("/api/submit/{kind}", submitHandler.Submit)

		r.Get("/api/admin/submissions", adminHandler.ListSubmissions)
	})

	// --- SPAフォールバック ---
	r.NotFound(staticHandler.ServeHTTP)

	return r
}
