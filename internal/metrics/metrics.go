// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	submissions    *prometheus.CounterVec
	webhookSuccess prometheus.Counter
	webhookFail    *prometheus.CounterVec
	webhookLatency prometheus.Histogram
	logins         prometheus.Counter
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ergtrack_submissions_total",
			Help: "記録されたフォーム提出の種別ごとの合計数",
		}, []string{"kind"}),
		webhookSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ergtrack_webhook_success_total",
			Help: "Webhook配送成功の合計数",
		}),
		webhookFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ergtrack_webhook_fail_total",
			Help: "Webhook配送失敗の理由別合計数",
		}, []string{"reason"}),
		webhookLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ergtrack_webhook_latency_seconds",
			Help:    "Webhook配送のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ergtrack_logins_total",
			Help: "OAuthログイン完了の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ergtrack_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.submissions,
		c.webhookSuccess,
		c.webhookFail,
		c.webhookLatency,
		c.logins,
		c.httpStatus,
	)

	return c
}

// RecordSubmission はフォーム提出を種別付きで記録する。
func (c *Collector) RecordSubmission(kind string) {
	c.submissions.WithLabelValues(kind).Inc()
}

// RecordWebhookSuccess はWebhook配送成功を記録する。
func (c *Collector) RecordWebhookSuccess() {
	c.webhookSuccess.Inc()
}

// RecordWebhookFailure はWebhook配送失敗を理由付きで記録する。
func (c *Collector) RecordWebhookFailure(reason string) {
	c.webhookFail.WithLabelValues(reason).Inc()
}

// RecordWebhookLatency はWebhook配送のレイテンシを記録する。
func (c *Collector) RecordWebhookLatency(d time.Duration) {
	c.webhookLatency.Observe(d.Seconds())
}

// RecordLogin はOAuthログイン完了を記録する。
func (c *Collector) RecordLogin() {
	c.logins.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
