// Package metrics 提供 Prometheus 指标收集
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标收集器
type Metrics struct {
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge
	cacheHitsTotal       *prometheus.CounterVec
	cacheMissesTotal     *prometheus.CounterVec
	mqttMessagesTotal    *prometheus.CounterVec
	smsSentTotal         *prometheus.CounterVec
	rechargesTotal       *prometheus.CounterVec
	rechargeAmountTotal  *prometheus.CounterVec
	consumptionsTotal    *prometheus.CounterVec
	consumptionRejected  *prometheus.CounterVec
	rechargesExpired     prometheus.Counter
}

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
	mu             sync.RWMutex
)

// Init 初始化指标收集器，reg 为 nil 时注册到默认注册表
func Init(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "member_ledger"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	m := &Metrics{
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		cacheHitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"cache"},
		),
		cacheMissesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"cache"},
		),
		mqttMessagesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mqtt_messages_total",
				Help:      "Total number of MQTT ledger events published",
			},
			[]string{"topic", "status"},
		),
		smsSentTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sms_sent_total",
				Help:      "Total number of member SMS notifications",
			},
			[]string{"template", "status"},
		),
		rechargesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_recharges_total",
				Help:      "Total number of recharges created",
			},
			[]string{"type"},
		),
		rechargeAmountTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_recharge_amount_total",
				Help:      "Total recharge amount paid in",
			},
			[]string{"type"},
		),
		consumptionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_consumptions_total",
				Help:      "Total number of consumptions recorded",
			},
			[]string{"payment_method"},
		),
		consumptionRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_consumptions_rejected_total",
				Help:      "Total number of consumptions rejected by ledger guards",
			},
			[]string{"reason"},
		),
		rechargesExpired: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_recharges_expired_total",
				Help:      "Total number of recharges marked expired by the scheduler",
			},
		),
	}

	mu.Lock()
	defaultMetrics = m
	mu.Unlock()
	return m
}

// GetMetrics 获取默认指标收集器
func GetMetrics() *Metrics {
	mu.RLock()
	m := defaultMetrics
	mu.RUnlock()
	if m != nil {
		return m
	}
	defaultOnce.Do(func() {
		Init("", nil)
	})
	mu.RLock()
	defer mu.RUnlock()
	return defaultMetrics
}

// Middleware 返回 Gin 中间件
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 跳过 metrics 端点本身
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		m.httpRequestsInFlight.Inc()

		c.Next()

		m.httpRequestsInFlight.Dec()
		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}

		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

// Handler 返回 Prometheus HTTP 处理器
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordCacheHit 记录缓存命中
func (m *Metrics) RecordCacheHit(cache string) {
	m.cacheHitsTotal.WithLabelValues(cache).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (m *Metrics) RecordCacheMiss(cache string) {
	m.cacheMissesTotal.WithLabelValues(cache).Inc()
}

// RecordMQTTMessage 记录 MQTT 事件发布
func (m *Metrics) RecordMQTTMessage(topic, status string) {
	m.mqttMessagesTotal.WithLabelValues(topic, status).Inc()
}

// RecordSMS 记录短信发送
func (m *Metrics) RecordSMS(template, status string) {
	m.smsSentTotal.WithLabelValues(template, status).Inc()
}

// RecordRecharge 记录充值，amount 为实收金额
func (m *Metrics) RecordRecharge(rechargeType string, amount float64) {
	m.rechargesTotal.WithLabelValues(rechargeType).Inc()
	m.rechargeAmountTotal.WithLabelValues(rechargeType).Add(amount)
}

// RecordConsumption 记录消费
func (m *Metrics) RecordConsumption(paymentMethod string) {
	m.consumptionsTotal.WithLabelValues(paymentMethod).Inc()
}

// RecordConsumptionRejected 记录被拒绝的消费
func (m *Metrics) RecordConsumptionRejected(reason string) {
	m.consumptionRejected.WithLabelValues(reason).Inc()
}

// AddRechargesExpired 记录定时任务标记的过期充值数
func (m *Metrics) AddRechargesExpired(n int64) {
	m.rechargesExpired.Add(float64(n))
}
