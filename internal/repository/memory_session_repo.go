package repository

import (
	"context"
	"sync"
	"time"

	"github.com/tupacaintdeadcuh/ergtrack/internal/model"
)

// MemorySessionRepo はプロセスメモリ上のセッションリポジトリ。
// 参照デプロイのデフォルト実装。プロセス再起動で全セッションが失われる。
type MemorySessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemorySessionRepo はMemorySessionRepoを生成する。
// cleanupIntervalが正の場合、期限切れセッションを定期削除する
// バックグラウンドゴルーチンを開始する（Stopで停止）。
func NewMemorySessionRepo(cleanupInterval time.Duration) *MemorySessionRepo {
	r := &MemorySessionRepo{
		sessions: make(map[string]model.Session),
		stopCh:   make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go r.cleanupLoop(cleanupInterval)
	}

	return r
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (r *MemorySessionRepo) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
}

// Create はセッションを作成する。
func (r *MemorySessionRepo) Create(ctx context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = *session
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返し、
// エントリを遅延削除する。
func (r *MemorySessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	r.mu.RLock()
	session, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	if time.Now().After(session.ExpiresAt) {
		r.mu.Lock()
		delete(r.sessions, id)
		r.mu.Unlock()
		return nil, nil
	}

	return &session, nil
}

// DeleteByID は指定IDのセッションを削除する。冪等。
func (r *MemorySessionRepo) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
func (r *MemorySessionRepo) DeleteExpired(ctx context.Context) (int, error) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for id, session := range r.sessions {
		if now.After(session.ExpiresAt) {
			delete(r.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// Len は現在保持しているセッション数を返す。テストおよびメトリクス用。
func (r *MemorySessionRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// cleanupLoop はバックグラウンドで期限切れセッションを定期的に削除する。
func (r *MemorySessionRepo) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = r.DeleteExpired(context.Background())
		case <-r.stopCh:
			return
		}
	}
}

// compile-time interface check
var _ SessionRepository = (*MemorySessionRepo)(nil)
