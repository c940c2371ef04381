// Package metrics 提供 Prometheus helper，包含定价服务的 counter/histogram 模板
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标集合，使用独立 Registry
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// gRPC 请求计数
	GRPCRequestsTotal *prometheus.CounterVec
	// gRPC 请求耗时
	GRPCRequestDuration *prometheus.HistogramVec

	// 业务指标
	PricingComputationsTotal *prometheus.CounterVec
	PricingErrorsTotal       *prometheus.CounterVec
	PricingDuration          *prometheus.HistogramVec
	BatchSize                prometheus.Histogram
}

// New 创建并注册指标实例，serviceName 中的 '-' 与 '.' 替换为 '_'
func New(serviceName string) *Metrics {
	serviceName = strings.NewReplacer("-", "_", ".", "_").Replace(serviceName)
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		GRPCRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "grpc_requests_total",
			Help:      "Total gRPC requests",
		}, []string{"method", "code"}),
		GRPCRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		PricingComputationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "pricing_computations_total",
			Help:      "Successful option pricing computations",
		}, []string{"greek", "option_type"}),
		PricingErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "pricing_errors_total",
			Help:      "Failed option pricing computations",
		}, []string{"code"}),
		PricingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "pricing_duration_seconds",
			Help:      "Option pricing computation duration in seconds",
			Buckets:   []float64{1e-7, 1e-6, 1e-5, 1e-4, 1e-3, 1e-2},
		}, []string{"greek"}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "pricing_batch_size",
			Help:      "Contracts per batch pricing request",
			Buckets:   []float64{1, 10, 50, 100, 500, 1000},
		}),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GRPCRequestsTotal,
		m.GRPCRequestDuration,
		m.PricingComputationsTotal,
		m.PricingErrorsTotal,
		m.PricingDuration,
		m.BatchSize,
	)
	return m
}

// Handler 返回 Prometheus 抓取端点
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGRPCRequest 记录 gRPC 请求
func (m *Metrics) RecordGRPCRequest(method, code string, duration time.Duration) {
	m.GRPCRequestsTotal.WithLabelValues(method, code).Inc()
	m.GRPCRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordComputation 记录一次成功的定价计算
func (m *Metrics) RecordComputation(greek, optionType string, duration time.Duration) {
	m.PricingComputationsTotal.WithLabelValues(greek, optionType).Inc()
	m.PricingDuration.WithLabelValues(greek).Observe(duration.Seconds())
}

// RecordError 记录一次失败的定价计算
func (m *Metrics) RecordError(code string) {
	m.PricingErrorsTotal.WithLabelValues(code).Inc()
}

// RecordBatch 记录批量定价规模
func (m *Metrics) RecordBatch(size int) {
	m.BatchSize.Observe(float64(size))
}
