package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "ticktick_mcp_gateway"

// Metrics はゲートウェイのPrometheusメトリクス。
// サーバーごとに専用のレジストリを持つ。
type Metrics struct {
	registry          *prometheus.Registry
	tokenRequests     *prometheus.CounterVec
	protectedRequests *prometheus.CounterVec
	activeStreams     prometheus.Gauge
	forwardDuration   *prometheus.HistogramVec
}

// NewMetrics は新しいメトリクスを生成してレジストリに登録する。
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tokenRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "token_requests_total",
			Help:      "Token endpoint requests by result (issued or error code).",
		}, []string{"result"}),
		protectedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "protected_requests_total",
			Help:      "Protected MCP requests by route and outcome.",
		}, []string{"route", "outcome"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_streams",
			Help:      "Number of SSE streams currently relayed.",
		}),
		forwardDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "forward_duration_seconds",
			Help:      "Duration of forwarded requests by route.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60, 300, 1800},
		}, []string{"route"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.tokenRequests,
		m.protectedRequests,
		m.activeStreams,
		m.forwardDuration,
	)
	return m
}

// Handler は /metrics 用のhttp.Handlerを返す。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
