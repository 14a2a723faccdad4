package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tupacaintdeadcuh/ergtrack/internal/model"
)

const (
	defaultDiscordAuthURL  = "https://discord.com/oauth2/authorize"
	defaultDiscordTokenURL = "https://discord.com/api/oauth2/token"
	defaultDiscordUserURL  = "https://discord.com/api/users/@me"
)

// DiscordOAuthConfig はDiscord OAuthプロバイダーの設定。
type DiscordOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
	UserURL  string
}

// DiscordOAuthProvider はDiscord OAuth 2.0による認証を提供する。
type DiscordOAuthProvider struct {
	config DiscordOAuthConfig
}

// NewDiscordOAuthProvider はDiscordOAuthProviderを生成する。
func NewDiscordOAuthProvider(config DiscordOAuthConfig) *DiscordOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultDiscordAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultDiscordTokenURL
	}
	if config.UserURL == "" {
		config.UserURL = defaultDiscordUserURL
	}
	return &DiscordOAuthProvider{config: config}
}

// GetLoginURL はDiscord OAuthの認証URLを生成する。
// スコープはidentifyのみ。メールアドレスやギルド情報は要求しない。
func (p *DiscordOAuthProvider) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {"identify"},
		"state":         {state},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// discordTokenResponse はDiscordのトークンエンドポイントのレスポンス。
type discordTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザープロファイルを取得する。
func (p *DiscordOAuthProvider) ExchangeCode(ctx context.Context, code string) (*model.Identity, error) {
	// 1. 認可コードをアクセストークンに交換
	tokenResp, err := p.exchangeToken(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	// 2. アクセストークンでユーザープロファイルを取得
	identity, err := p.fetchProfile(ctx, tokenResp.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user profile: %w", err)
	}

	return identity, nil
}

// exchangeToken は認可コードをアクセストークンに交換する。
func (p *DiscordOAuthProvider) exchangeToken(ctx context.Context, code string) (*discordTokenResponse, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp discordTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	return &tokenResp, nil
}

// fetchProfile はアクセストークンでDiscordのユーザープロファイルを取得する。
func (p *DiscordOAuthProvider) fetchProfile(ctx context.Context, accessToken string) (*model.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var identity model.Identity
	if err := json.Unmarshal(body, &identity); err != nil {
		return nil, fmt.Errorf("failed to parse profile response: %w", err)
	}

	if identity.ID == "" {
		return nil, fmt.Errorf("empty user ID in profile response")
	}

	return &identity, nil
}

// compile-time interface check
var _ OAuthProvider = (*DiscordOAuthProvider)(nil)
