// Package repository はセッション永続化のインターフェースと実装を提供する。
// 提出データはあえて永続化しない（internal/storeのリングバッファのみ）ため、
// リポジトリが扱うのはセッションだけである。
package repository

import (
	"context"

	"github.com/tupacaintdeadcuh/ergtrack/internal/model"
)

// SessionRepository はセッションデータの永続化インターフェース。
// 参照デプロイではプロセスメモリ実装を使用し、DATABASE_URLが設定された
// 場合のみPostgreSQL実装に差し替わる。契約はどちらでも同一。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。見つからない、
	// または期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しないIDでもエラーにしない。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int, error)
}
