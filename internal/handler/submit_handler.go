package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tupacaintdeadcuh/ergtrack/internal/middleware"
	"github.com/tupacaintdeadcuh/ergtrack/internal/model"
	"github.com/tupacaintdeadcuh/ergtrack/internal/store"
)

// maxSubmissionBodyBytes は提出ボディの上限サイズ（1MB）。
const maxSubmissionBodyBytes = 1 << 20

// submissionTitles は提出種別ごとの通知タイトル。
var submissionTitles = map[model.SubmissionKind]string{
	model.KindApplication: "ERG Application",
	model.KindCheckin:     "ERG Weekly Check-In",
	model.KindTraining:    "ERG Training Update",
	model.KindPromotion:   "ERG Promotion Request",
}

// NotifierInterface は提出ハンドラーが必要とする通知インターフェース。
type NotifierInterface interface {
	Notify(ctx context.Context, title string, kind model.SubmissionKind, user *model.Identity, payload json.RawMessage)
}

// SubmissionRecorder は提出件数をメトリクスとして記録するインターフェース。
// metrics.Collectorの部分集合。
type SubmissionRecorder interface {
	RecordSubmission(kind string)
}

// SubmitHandler はフォーム提出のHTTPハンドラー。
type SubmitHandler struct {
	store          *store.SubmissionStore
	notifier       NotifierInterface
	metrics        SubmissionRecorder
	webhookTimeout time.Duration
}

// NewSubmitHandler はSubmitHandlerを生成する。metricsはnilでもよい。
func NewSubmitHandler(store *store.SubmissionStore, notifier NotifierInterface, metrics SubmissionRecorder, webhookTimeout time.Duration) *SubmitHandler {
	return &SubmitHandler{
		store:          store,
		notifier:       notifier,
		metrics:        metrics,
		webhookTimeout: webhookTimeout,
	}
}

// Submit はフォーム提出を受け付ける。
// POST /api/submit/{kind}
// ペイロードはスキーマ検証なしの不透明なJSONオブジェクトとして扱う。
// Webhook通知の成否に関わらず{"ok":true}を返す。
func (h *SubmitHandler) Submit(w http.ResponseWriter, r *http.Request) {
	kind, err := model.ParseSubmissionKind(chi.URLParam(r, "kind"))
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "unknown_kind")
		return
	}

	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	payload, err := readPayload(r)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "payload_too_large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	submission := model.Submission{
		ID:   uuid.New().String(),
		When: time.Now().UnixMilli(),
		Kind: kind,
		User: *identity,
		Data: payload,
	}

	h.store.Append(submission)

	if h.metrics != nil {
		h.metrics.RecordSubmission(string(kind))
	}

	slog.Info("submission recorded",
		slog.String("submission_id", submission.ID),
		slog.String("kind", string(kind)),
		slog.String("user_id", identity.ID),
	)

	// 通知は同期的に待つが、タイムアウトで遅延を制限する。
	// 失敗してもレスポンスには影響しない。
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.webhookTimeout)
	defer cancel()
	h.notifier.Notify(ctx, submissionTitles[kind], kind, identity, payload)

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// readPayload はリクエストボディを不透明なJSONペイロードとして読み取る。
// ボディが空の場合は空オブジェクトを返す。JSONとして不正な場合はエラー。
func readPayload(r *http.Request) (json.RawMessage, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxSubmissionBodyBytes))
	if err != nil {
		return nil, err
	}

	if len(body) == 0 {
		return json.RawMessage("{}"), nil
	}

	if !json.Valid(body) {
		return nil, errors.New("request body is not valid JSON")
	}

	return json.RawMessage(body), nil
}
