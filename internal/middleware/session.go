// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tupacaintdeadcuh/ergtrack/internal/auth"
	"github.com/tupacaintdeadcuh/ergtrack/internal/model"
)

// SessionCookieName はセッションIDを格納するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストにユーザープロファイルを格納するためのキー。
var identityContextKey = contextKey("identity")

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効な場合にユーザープロファイルをリクエストコンテキストに注入する
// ミドルウェアを返す。未認証リクエストを拒否せずそのまま通過させる。
// 認証必須のルートにはRequireAuthを併用すること。
func NewSessionMiddleware(sessionFinder SessionFinder, secret string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Cookieから署名付きセッションIDを取得
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			// 2. 署名を検証してセッションIDを取り出す
			sessionID, ok := auth.VerifySessionCookie(secret, cookie.Value)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			// 3. セッションの有効性を検証
			session, err := sessionFinder.FindByID(r.Context(), sessionID)
			if err != nil {
				slog.Error("failed to find session",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if session == nil {
				next.ServeHTTP(w, r)
				return
			}

			// 4. ユーザープロファイルをコンテキストに注入
			user := session.User
			ctx := context.WithValue(r.Context(), identityContextKey, &user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewRequireAuthMiddleware は認証済みユーザーのみを通過させるミドルウェアを返す。
// SessionMiddlewareの後に配置すること。未認証リクエストには
// 401 Unauthorizedを返す。
func NewRequireAuthMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := IdentityFromContext(r.Context()); !ok {
				WriteError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFromContext はリクエストコンテキストからユーザープロファイルを取得する。
// セッションミドルウェアを通過した認証済みリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (*model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*model.Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}

// ContextWithIdentity はコンテキストにユーザープロファイルを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
