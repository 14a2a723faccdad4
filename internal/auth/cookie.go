package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignSessionID はセッションIDにHMAC-SHA256署名を付与したクッキー値を返す。
// 形式は "<sessionID>.<hex署名>"。署名はセッションIDの改ざん検知のみが目的で、
// セッションの実在確認はリポジトリ側で行う。
func SignSessionID(secret, sessionID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sessionID))
	return sessionID + "." + hex.EncodeToString(mac.Sum(nil))
}

// VerifySessionCookie は署名付きクッキー値を検証し、セッションIDを取り出す。
// 形式不正または署名不一致の場合は("", false)を返す。
func VerifySessionCookie(secret, value string) (string, bool) {
	sessionID, sig, ok := strings.Cut(value, ".")
	if !ok || sessionID == "" {
		return "", false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sessionID))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", false
	}

	return sessionID, true
}
