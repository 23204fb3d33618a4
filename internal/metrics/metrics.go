// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ポータルクライアントとプロフィール組み立てから利用する。
type MetricsCollector interface {
	RecordFetchSuccess(function string)
	RecordFetchFailure(function string, reason string)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordProfileAssembled(role string)
	RecordUnsupportedRole(role string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchSuccess      *prometheus.CounterVec
	fetchFail         *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
	fetchLatency      prometheus.Histogram
	profilesAssembled *prometheus.CounterVec
	unsupportedRole   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolprofile_fetch_success_total",
			Help: "ポータル関数呼び出し成功の合計数",
		}, []string{"function"}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolprofile_fetch_fail_total",
			Help: "ポータル関数呼び出し失敗の合計数",
		}, []string{"function", "reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolprofile_http_status_total",
			Help: "ポータルのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "schoolprofile_fetch_latency_seconds",
			Help:    "ポータル関数呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		profilesAssembled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolprofile_profiles_assembled_total",
			Help: "ロール別の組み立て済みプロフィール数",
		}, []string{"role"}),
		unsupportedRole: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolprofile_unsupported_role_total",
			Help: "ロール固有データを抽出できなかったロール別の件数",
		}, []string{"role"}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.httpStatus,
		c.fetchLatency,
		c.profilesAssembled,
		c.unsupportedRole,
	)

	return c
}

// RecordFetchSuccess はポータル呼び出し成功を記録する。
func (c *Collector) RecordFetchSuccess(function string) {
	c.fetchSuccess.WithLabelValues(function).Inc()
}

// RecordFetchFailure はポータル呼び出し失敗を記録する。
func (c *Collector) RecordFetchFailure(function string, reason string) {
	c.fetchFail.WithLabelValues(function, reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency はポータル呼び出しのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordProfileAssembled はプロフィールの組み立て完了を記録する。
func (c *Collector) RecordProfileAssembled(role string) {
	c.profilesAssembled.WithLabelValues(role).Inc()
}

// RecordUnsupportedRole はロール固有データの抽出に未対応のロールを記録する。
func (c *Collector) RecordUnsupportedRole(role string) {
	c.unsupportedRole.WithLabelValues(role).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
