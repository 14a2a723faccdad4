// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Identity はDiscordから取得したユーザープロファイルを表す。
// ログインのたびに全フィールドを再取得し、ローカルでは一切変更しない。
type Identity struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar"`
}

// Session はユーザーのログインセッションを表す。
// 有効期限は発行時点から固定で、更新されない。
type Session struct {
	ID        string
	User      Identity
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SubmissionKind はフォーム提出の種別を表す。
type SubmissionKind string

const (
	KindApplication SubmissionKind = "application"
	KindCheckin     SubmissionKind = "checkin"
	KindTraining    SubmissionKind = "training"
	KindPromotion   SubmissionKind = "promotion"
)

// ParseSubmissionKind は文字列をSubmissionKindに変換する。
// 定義外の種別の場合はエラーを返す。
func ParseSubmissionKind(s string) (SubmissionKind, error) {
	switch SubmissionKind(s) {
	case KindApplication, KindCheckin, KindTraining, KindPromotion:
		return SubmissionKind(s), nil
	}
	return "", fmt.Errorf("unknown submission kind: %q", s)
}

// Submission は記録された1件のフォーム提出を表す。
// Dataはスキーマ検証を行わない不透明なJSONペイロード。作成後は変更されない。
type Submission struct {
	ID   string          `json:"id"`
	When int64           `json:"when"` // エポックからのミリ秒
	Kind SubmissionKind  `json:"type"`
	User Identity        `json:"user"`
	Data json.RawMessage `json:"data"`
}
