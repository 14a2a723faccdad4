package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestDiscordOAuthProvider_GetLoginURL(t *testing.T) {
	provider := NewDiscordOAuthProvider(DiscordOAuthConfig{
		ClientID:     "client-123",
		ClientSecret: "secret",
		RedirectURL:  "https://example.com/api/auth/discord/callback",
	})

	loginURL := provider.GetLoginURL("state-abc")

	parsed, err := url.Parse(loginURL)
	if err != nil {
		t.Fatalf("failed to parse login URL: %v", err)
	}

	if got := parsed.Scheme + "://" + parsed.Host + parsed.Path; got != defaultDiscordAuthURL {
		t.Errorf("expected auth endpoint %s, got %s", defaultDiscordAuthURL, got)
	}

	query := parsed.Query()
	checks := map[string]string{
		"client_id":     "client-123",
		"redirect_uri":  "https://example.com/api/auth/discord/callback",
		"response_type": "code",
		"scope":         "identify",
		"state":         "state-abc",
	}
	for key, want := range checks {
		if got := query.Get(key); got != want {
			t.Errorf("query %s: expected %q, got %q", key, want, got)
		}
	}
}

func TestDiscordOAuthProvider_ExchangeCode(t *testing.T) {
	// 偽のトークンエンドポイント
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type: %s", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		if got := r.PostForm.Get("code"); got != "auth-code" {
			t.Errorf("expected code auth-code, got %s", got)
		}
		if got := r.PostForm.Get("grant_type"); got != "authorization_code" {
			t.Errorf("expected grant_type authorization_code, got %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"token-xyz","token_type":"Bearer","expires_in":604800,"scope":"identify"}`))
	}))
	defer tokenServer.Close()

	// 偽のプロファイルエンドポイント
	userServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token-xyz" {
			t.Errorf("unexpected authorization header: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"42","username":"ann","discriminator":"0001","avatar":"a1b2c3"}`))
	}))
	defer userServer.Close()

	provider := NewDiscordOAuthProvider(DiscordOAuthConfig{
		ClientID:     "client-123",
		ClientSecret: "secret",
		RedirectURL:  "https://example.com/callback",
		TokenURL:     tokenServer.URL,
		UserURL:      userServer.URL,
	})

	identity, err := provider.ExchangeCode(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode returned error: %v", err)
	}

	if identity.ID != "42" {
		t.Errorf("expected ID 42, got %s", identity.ID)
	}
	if identity.Username != "ann" {
		t.Errorf("expected username ann, got %s", identity.Username)
	}
	if identity.Discriminator != "0001" {
		t.Errorf("expected discriminator 0001, got %s", identity.Discriminator)
	}
	if identity.Avatar != "a1b2c3" {
		t.Errorf("expected avatar a1b2c3, got %s", identity.Avatar)
	}
}

func TestDiscordOAuthProvider_ExchangeCode_TokenError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer tokenServer.Close()

	provider := NewDiscordOAuthProvider(DiscordOAuthConfig{
		ClientID: "client-123",
		TokenURL: tokenServer.URL,
	})

	_, err := provider.ExchangeCode(context.Background(), "bad-code")
	if err == nil {
		t.Fatal("expected error for rejected code, got nil")
	}
	if !strings.Contains(err.Error(), "status 400") {
		t.Errorf("expected status in error message, got: %v", err)
	}
}

func TestDiscordOAuthProvider_ExchangeCode_EmptyAccessToken(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type":"Bearer"}`))
	}))
	defer tokenServer.Close()

	provider := NewDiscordOAuthProvider(DiscordOAuthConfig{TokenURL: tokenServer.URL})

	if _, err := provider.ExchangeCode(context.Background(), "code"); err == nil {
		t.Fatal("expected error for empty access token, got nil")
	}
}

func TestDiscordOAuthProvider_ExchangeCode_ProfileError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"token-xyz"}`))
	}))
	defer tokenServer.Close()

	userServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer userServer.Close()

	provider := NewDiscordOAuthProvider(DiscordOAuthConfig{
		TokenURL: tokenServer.URL,
		UserURL:  userServer.URL,
	})

	if _, err := provider.ExchangeCode(context.Background(), "code"); err == nil {
		t.Fatal("expected error for profile fetch failure, got nil")
	}
}

func TestNewDiscordOAuthProvider_DefaultURLs(t *testing.T) {
	provider := NewDiscordOAuthProvider(DiscordOAuthConfig{ClientID: "x"})

	if provider.config.AuthURL != defaultDiscordAuthURL {
		t.Errorf("expected default auth URL, got %s", provider.config.AuthURL)
	}
	if provider.config.TokenURL != defaultDiscordTokenURL {
		t.Errorf("expected default token URL, got %s", provider.config.TokenURL)
	}
	if provider.config.UserURL != defaultDiscordUserURL {
		t.Errorf("expected default user URL, got %s", provider.config.UserURL)
	}
}
