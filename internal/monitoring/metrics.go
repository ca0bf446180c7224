package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	registry *prometheus.Registry
	started  time.Time

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 检索指标
	RetrievalsTotal    *prometheus.CounterVec
	RetrievalDuration  *prometheus.HistogramVec
	CacheLookups       *prometheus.CounterVec
	TransportCalls     *prometheus.CounterVec
	TransportDuration  *prometheus.HistogramVec
	CircuitBreakerOpen prometheus.Gauge

	// 访问码指标
	AccessCodesCreated prometheus.Counter
	AccessCodesSwept   prometheus.Counter
	AccessValidations  *prometheus.CounterVec

	// 错误与限流
	PanicsTotal     prometheus.Counter
	RateLimitBlocks *prometheus.CounterVec

	SystemUptime prometheus.GaugeFunc
}

// NewMetrics 创建监控指标，所有指标注册到独立的 Registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		started:  time.Now(),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailcode_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailcode_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailcode_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "endpoint"},
		),

		RetrievalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailcode_retrievals_total",
				Help: "Total number of mail retrievals by flavor and outcome",
			},
			[]string{"flavor", "outcome"},
		),

		RetrievalDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailcode_retrieval_duration_seconds",
				Help:    "End-to-end retrieval duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"flavor"},
		),

		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailcode_cache_lookups_total",
				Help: "Result cache lookups by flavor and result",
			},
			[]string{"flavor", "result"},
		),

		TransportCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailcode_transport_calls_total",
				Help: "Mail transport calls by operation and status",
			},
			[]string{"op", "status"},
		),

		TransportDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailcode_transport_call_duration_seconds",
				Help:    "Mail transport call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),

		CircuitBreakerOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailcode_gmail_circuit_open",
				Help: "1 when the Gmail circuit breaker is open",
			},
		),

		AccessCodesCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailcode_access_codes_created_total",
				Help: "Total number of access codes created",
			},
		),

		AccessCodesSwept: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailcode_access_codes_swept_total",
				Help: "Total number of expired access codes removed",
			},
		),

		AccessValidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailcode_access_validations_total",
				Help: "Access code validations by result",
			},
			[]string{"result"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailcode_panics_total",
				Help: "Total number of panics",
			},
		),

		RateLimitBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailcode_rate_limit_blocks_total",
				Help: "Total number of rate limited requests",
			},
			[]string{"endpoint"},
		),
	}

	m.SystemUptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "mailcode_system_uptime_seconds",
			Help: "System uptime in seconds",
		},
		func() float64 { return time.Since(m.started).Seconds() },
	)

	return m
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// ObserveRetrieval 记录一次检索的结果与耗时
func (m *Metrics) ObserveRetrieval(flavor, outcome string, duration time.Duration) {
	m.RetrievalsTotal.WithLabelValues(flavor, outcome).Inc()
	m.RetrievalDuration.WithLabelValues(flavor).Observe(duration.Seconds())
}

// ObserveCacheLookup 记录缓存命中情况
func (m *Metrics) ObserveCacheLookup(flavor string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(flavor, result).Inc()
}

// ObserveTransportCall 记录上游邮件调用
func (m *Metrics) ObserveTransportCall(op string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.TransportCalls.WithLabelValues(op, status).Inc()
	m.TransportDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// SetCircuitOpen 更新熔断器状态
func (m *Metrics) SetCircuitOpen(open bool) {
	if open {
		m.CircuitBreakerOpen.Set(1)
		return
	}
	m.CircuitBreakerOpen.Set(0)
}

// RecordAccessCodeCreated 记录访问码创建
func (m *Metrics) RecordAccessCodeCreated() {
	m.AccessCodesCreated.Inc()
}

// RecordAccessCodesSwept 记录清理的过期访问码数量
func (m *Metrics) RecordAccessCodesSwept(n int) {
	m.AccessCodesSwept.Add(float64(n))
}

// RecordAccessValidation 记录访问码校验结果
func (m *Metrics) RecordAccessValidation(ok bool) {
	result := "rejected"
	if ok {
		result = "accepted"
	}
	m.AccessValidations.WithLabelValues(result).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流阻止
func (m *Metrics) RecordRateLimitBlock(endpoint string) {
	m.RateLimitBlocks.WithLabelValues(endpoint).Inc()
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
