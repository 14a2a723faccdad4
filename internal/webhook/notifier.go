// Package webhook はDiscord Webhookへのベストエフォート通知を提供する。
// 通知は記録の本体ではなく副次チャネルであり、配送は常に最大1回試行、
// 失敗はログとメトリクスにのみ記録して呼び出し元へは伝播しない。
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tupacaintdeadcuh/ergtrack/internal/model"
)

const (
	// embedColor は通知embedの色。
	embedColor = 0x38bdf8
	// maxDataChars はDataフィールドに載せるシリアライズ済みJSONの最大文字数。
	// Discordのembedフィールド長制限に収めるため、超過分は黙って切り捨てる。
	maxDataChars = 1800
)

// MetricsRecorder はwebhook配送の結果を記録するインターフェース。
type MetricsRecorder interface {
	RecordWebhookSuccess()
	RecordWebhookFailure(reason string)
	RecordWebhookLatency(d time.Duration)
}

// Notifier はDiscord Webhookへ提出内容を通知するクライアント。
// URLが未設定の場合、Notifyはネットワークアクセスを伴わない完全なno-opになる。
type Notifier struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    MetricsRecorder
}

// NewNotifier はNotifierを生成する。
// urlが空文字の場合は通知無効として扱う。
func NewNotifier(url string, httpClient *http.Client, logger *slog.Logger, metrics MetricsRecorder) *Notifier {
	return &Notifier{
		url:        url,
		httpClient: httpClient,
		logger:     logger,
		metrics:    metrics,
	}
}

// Enabled は通知先が設定されているかを返す。
func (n *Notifier) Enabled() bool {
	return n.url != ""
}

// webhookMessage はDiscord WebhookのリクエストボディJSON。
type webhookMessage struct {
	Content string  `json:"content"`
	Embeds  []embed `json:"embeds"`
}

type embed struct {
	Title     string       `json:"title"`
	Color     int          `json:"color"`
	Fields    []embedField `json:"fields"`
	Timestamp string       `json:"timestamp"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Notify は提出内容を1回だけベストエフォートでPOSTする。
// 通知先未設定の場合は何もしない。ネットワークエラーや非2xx応答は
// ログに記録して握りつぶし、エラーを返さない。リトライも行わない。
func (n *Notifier) Notify(ctx context.Context, title string, kind model.SubmissionKind, user *model.Identity, payload json.RawMessage) {
	if !n.Enabled() {
		return
	}

	msg := webhookMessage{
		Content: fmt.Sprintf("ERG %s submission", kind),
		Embeds: []embed{{
			Title: title,
			Color: embedColor,
			Fields: []embedField{
				{Name: "Type", Value: string(kind), Inline: true},
				{Name: "User", Value: formatUser(user), Inline: true},
				{Name: "Data", Value: formatData(payload)},
			},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		n.logger.Error("failed to encode webhook message",
			slog.String("error", err.Error()),
			slog.String("kind", string(kind)),
		)
		n.metrics.RecordWebhookFailure("encode")
		return
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("failed to create webhook request",
			slog.String("error", err.Error()),
		)
		n.metrics.RecordWebhookFailure("request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error("webhook delivery failed",
			slog.String("error", err.Error()),
			slog.String("kind", string(kind)),
		)
		n.metrics.RecordWebhookFailure("network")
		return
	}
	defer resp.Body.Close()

	// レスポンスボディは読み捨てる（コネクション再利用のため）
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	n.metrics.RecordWebhookLatency(time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Error("webhook returned non-2xx status",
			slog.Int("http_status", resp.StatusCode),
			slog.String("kind", string(kind)),
		)
		n.metrics.RecordWebhookFailure("status")
		return
	}

	n.metrics.RecordWebhookSuccess()
}

// formatUser はUserフィールドの表示文字列を組み立てる。
// Identityが無い場合はプレースホルダを返す。
func formatUser(user *model.Identity) string {
	if user == nil {
		return "-"
	}
	return fmt.Sprintf("%s#%s (%s)", user.Username, user.Discriminator, user.ID)
}

// formatData はペイロードを整形済みJSONのコードブロックにする。
// シリアライズ済み文字列が1800文字を超える分は黙って切り捨てる。
func formatData(payload json.RawMessage) string {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		buf.Reset()
		buf.Write(payload)
	}

	data := buf.String()
	if len(data) > maxDataChars {
		data = data[:maxDataChars]
	}

	return "```json\n" + data + "\n```"
}
