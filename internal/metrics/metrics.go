// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 権限判定、共有サービス、HTTPミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordDecision(capability string, allowed bool)
	RecordShareChange(op string)
	RecordHTTPStatus(statusCode int)
	RecordSessionsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authzDecisions *prometheus.CounterVec
	shareChanges   *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	sessionsPurged prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authzDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todolist_authz_decisions_total",
			Help: "権限判定の結果別の合計数",
		}, []string{"capability", "result"}),
		shareChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todolist_shares_changed_total",
			Help: "リスト共有の変更操作別の合計数",
		}, []string{"op"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todolist_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todolist_sessions_purged_total",
			Help: "クリーンアップジョブで削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.authzDecisions,
		c.shareChanges,
		c.httpStatus,
		c.sessionsPurged,
	)

	return c
}

// RecordDecision は権限判定の結果を記録する。
func (c *Collector) RecordDecision(capability string, allowed bool) {
	result := "deny"
	if allowed {
		result = "allow"
	}
	c.authzDecisions.WithLabelValues(capability, result).Inc()
}

// RecordShareChange は共有の変更を記録する。
func (c *Collector) RecordShareChange(op string) {
	c.shareChanges.WithLabelValues(op).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSessionsPurged は削除されたセッション数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
