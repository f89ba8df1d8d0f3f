// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "almoheat"

// Metrics owns a private registry so tests can create as many as they need.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	invoicesTotal       *prometheus.CounterVec
	invoiceValueTotal   *prometheus.CounterVec
	invoiceReversals    *prometheus.CounterVec
	stockRejections     prometheus.Counter
	lowStockProducts    prometheus.Gauge
	draftOutcomes       *prometheus.CounterVec
}

// New creates and registers all collectors, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)
	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	m.invoicesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_created_total",
			Help:      "Invoices committed, by type.",
		},
		[]string{"type"},
	)
	m.invoiceValueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_value_total",
			Help:      "Sum of committed invoice grand totals, by type.",
		},
		[]string{"type"},
	)
	m.invoiceReversals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_reversals_total",
			Help:      "Invoices whose stock and balance effects were reversed, by reason.",
		},
		[]string{"reason"},
	)
	m.stockRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_rejections_total",
			Help:      "Invoice lines rejected for insufficient stock.",
		},
	)
	m.lowStockProducts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "low_stock_products",
			Help:      "Products at or below their low stock threshold at the last check.",
		},
	)
	m.draftOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_outcomes_total",
			Help:      "Draft lifecycle endings (submitted, failed, cancelled).",
		},
		[]string{"outcome"},
	)

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.invoicesTotal,
		m.invoiceValueTotal,
		m.invoiceReversals,
		m.stockRejections,
		m.lowStockProducts,
		m.draftOutcomes,
	)
	return m
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ObserveHTTP records one finished request. route is the matched pattern,
// not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) InvoiceCreated(invoiceType string, total decimal.Decimal) {
	if m == nil {
		return
	}
	m.invoicesTotal.WithLabelValues(invoiceType).Inc()
	m.invoiceValueTotal.WithLabelValues(invoiceType).Add(total.InexactFloat64())
}

func (m *Metrics) InvoiceReversed(reason string) {
	if m == nil {
		return
	}
	m.invoiceReversals.WithLabelValues(reason).Inc()
}

func (m *Metrics) StockRejected() {
	if m == nil {
		return
	}
	m.stockRejections.Inc()
}

func (m *Metrics) SetLowStock(n int) {
	if m == nil {
		return
	}
	m.lowStockProducts.Set(float64(n))
}

func (m *Metrics) DraftOutcome(outcome string) {
	if m == nil {
		return
	}
	m.draftOutcomes.WithLabelValues(outcome).Inc()
}
