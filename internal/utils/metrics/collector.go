// internal/utils/metrics/collector.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "solana_market_nexus"

// Collector управляет набором метрик сервиса. Каждый коллектор владеет
// собственным реестром, поэтому в тестах их можно создавать сколько угодно.
type Collector struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	trades        *prometheus.CounterVec
	rpcLatency    *prometheus.HistogramVec
	rpcErrors     *prometheus.CounterVec
	marketFetches *prometheus.CounterVec
	alertTriggers *prometheus.CounterVec
	wsClients     prometheus.Gauge
}

// NewCollector создает коллектор и регистрирует метрики.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"method", "route"},
		),
		trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_total",
				Help:      "Total number of executed trades",
			},
			[]string{"action", "token", "status"},
		),
		rpcLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_latency_seconds",
				Help:      "RPC request latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
			},
			[]string{"method", "endpoint"},
		),
		rpcErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_errors_total",
				Help:      "Failed RPC requests per endpoint",
			},
			[]string{"method", "endpoint"},
		),
		marketFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "market_fetches_total",
				Help:      "Market quote lookups by outcome",
			},
			[]string{"outcome"},
		),
		alertTriggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alert_triggers_total",
				Help:      "Triggered user alerts",
			},
			[]string{"type", "pair"},
		),
		wsClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_clients",
				Help:      "Number of connected websocket clients",
			},
		),
	}

	c.registry.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.trades,
		c.rpcLatency,
		c.rpcErrors,
		c.marketFetches,
		c.alertTriggers,
		c.wsClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Handler отдает метрики в формате Prometheus.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Reset сбрасывает все метрики (полезно для тестирования)
func (c *Collector) Reset() {
	c.httpRequests.Reset()
	c.httpDuration.Reset()
	c.trades.Reset()
	c.rpcLatency.Reset()
	c.rpcErrors.Reset()
	c.marketFetches.Reset()
	c.alertTriggers.Reset()
	c.wsClients.Set(0)
}

// RecordHTTPRequest записывает метрики HTTP-запроса.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordTrade записывает исполненную сделку.
func (c *Collector) RecordTrade(action, token, status string) {
	c.trades.WithLabelValues(action, token, status).Inc()
}

// RecordRPCLatency записывает метрики RPC-запроса
func (c *Collector) RecordRPCLatency(method, endpoint string, duration time.Duration) {
	c.rpcLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRPCError учитывает неудачный RPC-запрос к узлу.
func (c *Collector) RecordRPCError(method, endpoint string) {
	c.rpcErrors.WithLabelValues(method, endpoint).Inc()
}

// RecordMarketFetch учитывает обращение за котировкой.
func (c *Collector) RecordMarketFetch(outcome string) {
	c.marketFetches.WithLabelValues(outcome).Inc()
}

// RecordAlertTrigger учитывает сработавший алерт.
func (c *Collector) RecordAlertTrigger(alertType, pair string) {
	c.alertTriggers.WithLabelValues(alertType, pair).Inc()
}

// SetWebsocketClients обновляет число подключенных клиентов.
func (c *Collector) SetWebsocketClients(n int) {
	c.wsClients.Set(float64(n))
}
