package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// OAuth (Discord)
	DiscordClientID     string
	DiscordClientSecret string
	DiscordCallbackURL  string

	// Session
	SessionSecret string
	SessionMaxAge int // 秒。デフォルトは7日

	// Webhook
	WebhookURL     string
	WebhookTimeout time.Duration

	// Database（空の場合はセッションをプロセスメモリに保持する）
	DatabaseURL string

	// Rate Limit
	RateLimitGeneral int // req/min/user
	RateLimitSubmit  int // req/min/user

	// Server
	ServerPort string
	BaseURL    string
	StaticDir  string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS（空の場合はCORSミドルウェアを無効化する）
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// OAuthクレデンシャル以外はすべてデフォルト値を持つ。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DiscordClientID = os.Getenv("DISCORD_CLIENT_ID")
	if cfg.DiscordClientID == "" {
		missing = append(missing, "DISCORD_CLIENT_ID")
	}

	cfg.DiscordClientSecret = os.Getenv("DISCORD_CLIENT_SECRET")
	if cfg.DiscordClientSecret == "" {
		missing = append(missing, "DISCORD_CLIENT_SECRET")
	}

	cfg.DiscordCallbackURL = os.Getenv("DISCORD_CALLBACK_URL")
	if cfg.DiscordCallbackURL == "" {
		missing = append(missing, "DISCORD_CALLBACK_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionSecret = getEnvString("SESSION_SECRET", "ergsecret")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 604800) // 7日
	cfg.WebhookURL = os.Getenv("WEBHOOK_URL")
	cfg.WebhookTimeout = getEnvDuration("WEBHOOK_TIMEOUT", 5*time.Second)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSubmit = getEnvInt("RATE_LIMIT_SUBMIT", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "3000")
	cfg.BaseURL = strings.TrimSuffix(os.Getenv("BASE_URL"), "/")
	cfg.StaticDir = getEnvString("STATIC_DIR", "public")
	// 明示的にhttp://なBASE_URLを設定した場合のみSecure属性を外す（ローカル開発用）
	cfg.CookieSecure = !strings.HasPrefix(cfg.BaseURL, "http://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
