// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth Gateの判定結果ラベル。
const (
	GateAllowed      = "allowed"
	GateMissing      = "missing"
	GateBadFormat    = "bad_format"
	GateInvalid      = "invalid"
	GateServerError  = "server_error"
	LoginSuccess     = "success"
	LoginFailure     = "failure"
	RoleUnclassified = "unclassified"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービスやミドルウェアから利用する。
type MetricsCollector interface {
	RecordLogin(role string, outcome string)
	RecordGateDecision(outcome string)
	RecordResolutionFailure(reason string)
	RecordAccountCreated(role string)
	RecordHTTPStatus(statusCode int)
	RecordResolveLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins          *prometheus.CounterVec
	gateDecisions   *prometheus.CounterVec
	resolutionFail  *prometheus.CounterVec
	accountsCreated *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	resolveLatency  prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusauth_logins_total",
			Help: "OAuthログインの結果別・ロール別の合計数",
		}, []string{"role", "outcome"}),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusauth_gate_decisions_total",
			Help: "Auth Gateの判定結果別の合計数",
		}, []string{"outcome"}),
		resolutionFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusauth_resolution_failures_total",
			Help: "アイデンティティ解決失敗の合計数",
		}, []string{"reason"}),
		accountsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusauth_accounts_created_total",
			Help: "初回ログインで作成されたアカウントの合計数",
		}, []string{"role"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusauth_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		resolveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "campusauth_resolve_latency_seconds",
			Help:    "アイデンティティ解決のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.logins,
		c.gateDecisions,
		c.resolutionFail,
		c.accountsCreated,
		c.httpStatus,
		c.resolveLatency,
	)

	return c
}

// RecordLogin はOAuthログインの結果を記録する。
// roleが空の場合はunclassifiedとして記録する。
func (c *Collector) RecordLogin(role string, outcome string) {
	if role == "" {
		role = RoleUnclassified
	}
	c.logins.WithLabelValues(role, outcome).Inc()
}

// RecordGateDecision はAuth Gateの判定を記録する。
func (c *Collector) RecordGateDecision(outcome string) {
	c.gateDecisions.WithLabelValues(outcome).Inc()
}

// RecordResolutionFailure はアイデンティティ解決失敗を記録する。
func (c *Collector) RecordResolutionFailure(reason string) {
	c.resolutionFail.WithLabelValues(reason).Inc()
}

// RecordAccountCreated はアカウント作成を記録する。
func (c *Collector) RecordAccountCreated(role string) {
	c.accountsCreated.WithLabelValues(role).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordResolveLatency はアイデンティティ解決のレイテンシを記録する。
func (c *Collector) RecordResolveLatency(duration time.Duration) {
	c.resolveLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
