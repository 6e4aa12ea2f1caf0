package utils

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector wraps a dedicated prometheus registry with the
// scan/reconciliation metrics the dashboard exposes on /metrics.
type MetricsCollector struct {
	registry *prometheus.Registry
	mu       sync.RWMutex

	ScansTotal        *prometheus.CounterVec
	ScanDuration      *prometheus.HistogramVec
	FindingsObserved  *prometheus.CounterVec
	ReconcileOutcomes *prometheus.CounterVec
	OpenFindings      *prometheus.GaugeVec
	Notifications     *prometheus.CounterVec
	AIRequests        *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

func NewMetricsCollector(enableRuntimeMetrics bool) *MetricsCollector {
	reg := prometheus.NewRegistry()

	if enableRuntimeMetrics {
		_ = reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		_ = reg.Register(collectors.NewGoCollector())
	}

	m := &MetricsCollector{
		registry: reg,
		ScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iacguard_scans_total",
			Help: "Scans executed, labeled by terminal status.",
		}, []string{"status"}),
		ScanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "iacguard_scan_duration_seconds",
			Help:    "Wall-clock duration of scanner runs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"framework"}),
		FindingsObserved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iacguard_findings_observed_total",
			Help: "Normalized findings emitted per run, labeled by severity.",
		}, []string{"severity"}),
		ReconcileOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iacguard_reconcile_findings_total",
			Help: "Reconciliation partition sizes (new, still_open, fixed, reopened).",
		}, []string{"partition"}),
		OpenFindings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "iacguard_open_findings",
			Help: "Currently open findings per project.",
		}, []string{"project"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iacguard_notifications_total",
			Help: "Notification decisions, labeled by type and outcome.",
		}, []string{"type", "status"}),
		AIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iacguard_ai_requests_total",
			Help: "AI remediation requests, labeled by provider and outcome.",
		}, []string{"provider", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "iacguard_http_request_duration_seconds",
			Help:    "REST API handler latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
	}

	for _, c := range []prometheus.Collector{
		m.ScansTotal, m.ScanDuration, m.FindingsObserved, m.ReconcileOutcomes,
		m.OpenFindings, m.Notifications, m.AIRequests, m.HTTPDuration,
	} {
		_ = reg.Register(c)
	}

	return m
}

func (m *MetricsCollector) ObserveScan(status, framework string, duration time.Duration) {
	m.ScansTotal.WithLabelValues(status).Inc()
	if duration > 0 {
		m.ScanDuration.WithLabelValues(framework).Observe(duration.Seconds())
	}
}

func (m *MetricsCollector) ObserveReconciliation(newCount, stillOpen, fixed, reopened int) {
	m.ReconcileOutcomes.WithLabelValues("new").Add(float64(newCount))
	m.ReconcileOutcomes.WithLabelValues("still_open").Add(float64(stillOpen))
	m.ReconcileOutcomes.WithLabelValues("fixed").Add(float64(fixed))
	m.ReconcileOutcomes.WithLabelValues("reopened").Add(float64(reopened))
}

func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *MetricsCollector) GetRegistry() *prometheus.Registry {
	return m.registry
}

func DefaultMetricsCollector() *MetricsCollector {
	return NewMetricsCollector(true)
}
