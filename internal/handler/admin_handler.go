package handler

import (
	"net/http"

	"github.com/tupacaintdeadcuh/ergtrack/internal/model"
	"github.com/tupacaintdeadcuh/ergtrack/internal/store"
)

// AdminHandler は提出履歴閲覧のHTTPハンドラー。
type AdminHandler struct {
	store *store.SubmissionStore
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(store *store.SubmissionStore) *AdminHandler {
	return &AdminHandler{store: store}
}

// ListSubmissions は直近の提出を新しい順に最大200件返す。
// GET /api/admin/submissions
// ログイン済みであれば誰でも閲覧できる。ロールによる制限は行わない。
func (h *AdminHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	rows := h.store.ListRecent(store.DefaultCapacity)
	if rows == nil {
		rows = []model.Submission{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}
