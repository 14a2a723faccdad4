// Package store は直近の提出を保持するインメモリリングバッファを提供する。
// 監査用の最小限のリングであり、検索・更新・削除は提供しない。
// プロセス再起動で内容が失われるのは設計どおりの動作。
package store

import (
	"sync"

	"github.com/tupacaintdeadcuh/ergtrack/internal/model"
)

// DefaultCapacity はSubmissionStoreのデフォルト容量。
const DefaultCapacity = 200

// SubmissionStore は直近の提出を新しい順に保持する固定容量のリングバッファ。
// 全リクエストハンドラーから共有されるため、mutexでアクセスを直列化する。
type SubmissionStore struct {
	mu   sync.Mutex
	buf  []model.Submission
	head int // 次に書き込む位置
	size int
}

// NewSubmissionStore は指定容量のSubmissionStoreを生成する。
// capacityが0以下の場合はDefaultCapacityを使用する。
func NewSubmissionStore(capacity int) *SubmissionStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &SubmissionStore{
		buf: make([]model.Submission, capacity),
	}
}

// Append は提出を先頭に挿入する。容量を超える場合は最古の要素が上書きされる。
// O(1)。重複排除や種別・ユーザーによる索引は行わない。
func (s *SubmissionStore) Append(sub model.Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf[s.head] = sub
	s.head = (s.head + 1) % len(s.buf)
	if s.size < len(s.buf) {
		s.size++
	}
}

// ListRecent は新しい順に最大limit件の提出を返す。
// 返り値は呼び出し時点のスナップショットのコピーであり、
// 以後のAppendの影響を受けない。
func (s *SubmissionStore) ListRecent(limit int) []model.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := limit
	if n < 0 {
		n = 0
	}
	if n > s.size {
		n = s.size
	}

	out := make([]model.Submission, 0, n)
	for i := 0; i < n; i++ {
		idx := (s.head - 1 - i + len(s.buf)) % len(s.buf)
		out = append(out, s.buf[idx])
	}
	return out
}

// Len は現在保持している提出数を返す。
func (s *SubmissionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}
