// Package app はアプリケーションの初期化と起動を担う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/tupacaintdeadcuh/ergtrack/internal/auth"
	"github.com/tupacaintdeadcuh/ergtrack/internal/config"
	"github.com/tupacaintdeadcuh/ergtrack/internal/database"
	"github.com/tupacaintdeadcuh/ergtrack/internal/handler"
	"github.com/tupacaintdeadcuh/ergtrack/internal/logger"
	"github.com/tupacaintdeadcuh/ergtrack/internal/metrics"
	"github.com/tupacaintdeadcuh/ergtrack/internal/middleware"
	"github.com/tupacaintdeadcuh/ergtrack/internal/repository"
	"github.com/tupacaintdeadcuh/ergtrack/internal/security"
	"github.com/tupacaintdeadcuh/ergtrack/internal/store"
	"github.com/tupacaintdeadcuh/ergtrack/internal/webhook"
)

// sessionCleanupInterval は期限切れセッションの削除間隔。
const sessionCleanupInterval = 10 * time.Minute

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "3000"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// セッションバックエンドを選択し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. セッションリポジトリの選択
	// DATABASE_URL未設定時はプロセスメモリに保持する（参照デプロイと同じ挙動）。
	var sessionRepo repository.SessionRepository

	if cfg.DatabaseURL == "" {
		memRepo := repository.NewMemorySessionRepo(sessionCleanupInterval)
		defer memRepo.Stop()
		sessionRepo = memRepo
		slog.Info("using in-memory session store")
	} else {
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}

		pgRepo := repository.NewPostgresSessionRepo(db)
		sessionRepo = pgRepo
		slog.Info("using postgres session store",
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		)
	}

	// 2. Webhook URLの静的検証（内部ネットワーク宛の設定ミスを起動時に弾く）
	if cfg.WebhookURL != "" {
		if err := security.ValidateWebhookURL(cfg.WebhookURL); err != nil {
			return fmt.Errorf("invalid webhook URL: %w", err)
		}
	}

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 通知クライアント
	outboundClient := security.NewOutboundClient(cfg.WebhookTimeout)
	notifier := webhook.NewNotifier(cfg.WebhookURL, outboundClient, slog.Default(), collector)

	// 5. 認証サービス
	oauthProvider := auth.NewDiscordOAuthProvider(auth.DiscordOAuthConfig{
		ClientID:     cfg.DiscordClientID,
		ClientSecret: cfg.DiscordClientSecret,
		RedirectURL:  cfg.DiscordCallbackURL,
	})
	authService := auth.NewService(oauthProvider, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	// 6. 提出ストア
	submissionStore := store.NewSubmissionStore(store.DefaultCapacity)

	// 7. レート制限（configはreq/min単位、rate.Limitはreq/sec単位）
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    cfg.RateLimitGeneral,
		SubmitRate:      rate.Limit(float64(cfg.RateLimitSubmit) / 60.0),
		SubmitBurst:     cfg.RateLimitSubmit,
		CleanupInterval: 5 * time.Minute,
	})
	defer rateLimiter.Stop()

	// 8. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		SessionFinder:     sessionRepo,
		SessionSecret:     cfg.SessionSecret,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionSecret: cfg.SessionSecret,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		Store:          submissionStore,
		Notifier:       notifier,
		WebhookTimeout: cfg.WebhookTimeout,

		Metrics:        collector,
		MetricsHandler: metrics.Handler(registry),

		StaticDir: cfg.StaticDir,
	})

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Postgresバックエンドの期限切れセッションは定期バッチで削除する
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	defer cancelCleanup()
	if cfg.DatabaseURL != "" {
		go runSessionCleanup(cleanupCtx, sessionRepo)
	}

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.Bool("webhook_enabled", notifier.Enabled()),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runSessionCleanup は期限切れセッションを定期的に削除する。
func runSessionCleanup(ctx context.Context, repo repository.SessionRepository) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.DeleteExpired(ctx)
			if err != nil {
				slog.Error("session cleanup failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				slog.Info("expired sessions deleted", slog.Int("count", n))
			}
		}
	}
}

// runMigrate はセッションDBのマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migration")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
