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
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordProductCreated()
	RecordProductUpdated()
	RecordProductDeleted()
	RecordGateRejection(code string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
	productsCreated prometheus.Counter
	productsUpdated prometheus.Counter
	productsDeleted prometheus.Counter
	gateRejections  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prodman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "prodman_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		productsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prodman_products_created_total",
			Help: "作成された商品の合計数",
		}),
		productsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prodman_products_updated_total",
			Help: "更新された商品の合計数",
		}),
		productsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prodman_products_deleted_total",
			Help: "削除された商品の合計数",
		}),
		gateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prodman_gate_rejections_total",
			Help: "検証・認可ゲートによる拒否数（エラーコード別）",
		}, []string{"code"}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.productsCreated,
		c.productsUpdated,
		c.productsDeleted,
		c.gateRejections,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordProductCreated は商品作成を記録する。
func (c *Collector) RecordProductCreated() {
	c.productsCreated.Inc()
}

// RecordProductUpdated は商品更新を記録する。
func (c *Collector) RecordProductUpdated() {
	c.productsUpdated.Inc()
}

// RecordProductDeleted は商品削除を記録する。
func (c *Collector) RecordProductDeleted() {
	c.productsDeleted.Inc()
}

// RecordGateRejection はゲートによる拒否をエラーコード別に記録する。
func (c *Collector) RecordGateRejection(code string) {
	c.gateRejections.WithLabelValues(code).Inc()
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

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
