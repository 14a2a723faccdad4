package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/tupacaintdeadcuh/ergtrack/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
// Identityはログイン時点のスナップショットをJSONBカラムにそのまま保存する。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	identity, err := json.Marshal(session.User)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, identity, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		session.ID, identity, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	session := &model.Session{}
	var identity []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT id, identity, expires_at, created_at
		 FROM sessions
		 WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&session.ID, &identity, &session.ExpiresAt, &session.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	if err := json.Unmarshal(identity, &session.User); err != nil {
		return nil, fmt.Errorf("failed to decode identity: %w", err)
	}

	return session, nil
}

// DeleteByID は指定IDのセッションを削除する。冪等。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted sessions: %w", err)
	}
	return int(affected), nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
