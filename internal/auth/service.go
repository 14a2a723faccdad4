// Package auth はOAuth認証フロー、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/tupacaintdeadcuh/ergtrack/internal/model"
	"github.com/tupacaintdeadcuh/ergtrack/internal/repository"
)

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// ExchangeCodeの戻り値はプロバイダーのプロファイルレスポンスを
// そのままIdentityに写し取ったもの。ローカルでの加工は行わない。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザープロファイルを取得する。
	ExchangeCode(ctx context.Context, code string) (*model.Identity, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(oauth OAuthProvider, sessionRepo repository.SessionRepository, config ServiceConfig) *Service {
	return &Service{
		oauth:       oauth,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// ユーザーレコードは持たず、取得したプロファイルをそのままセッションに格納する。
// 同一ユーザーが再ログインした場合も新しいセッションが発行される。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	// 1. 認可コードをトークンに交換し、プロファイルを取得
	identity, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. セッションを発行
	session, err := s.createSession(ctx, *identity)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", identity.ID),
		slog.String("username", identity.Username),
	)

	return session, nil
}

// Logout はセッションを破棄する。セッションIDが空、または存在しない場合も
// エラーにしない。ログアウトは冪等な操作である。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザープロファイルを取得する。
// セッションが存在しない、または期限切れの場合は(nil, nil)を返す。
// 未認証はエラーではなく通常の状態として扱う。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.Identity, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	user := session.User
	return &user, nil
}

// createSession はセッションを作成し永続化する。
// 有効期限は作成時点から固定で、アクセスによる延長は行わない。
func (s *Service) createSession(ctx context.Context, identity model.Identity) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		User:      identity,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
