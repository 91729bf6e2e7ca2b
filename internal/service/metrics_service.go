package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/civicsignal/waltham-events/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the ingestion pipeline.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	eventsIngested *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	sourceErrors   *prometheus.CounterVec
	sourceDuration *prometheus.HistogramVec
	cycleDuration  prometheus.Histogram
	cyclesTotal    prometheus.Counter
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	eventsIngested := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_events_total",
		Help: "Upsert outcomes per source",
	}, []string{"source", "outcome"})

	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_rejections_total",
		Help: "Normalizer rejections per source and reason",
	}, []string{"source", "reason"})

	sourceErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_source_errors_total",
		Help: "Source fetches that ended in an error",
	}, []string{"source"})

	sourceDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_source_duration_seconds",
		Help:    "Wall time of one source within a cycle",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"source"})

	cycleDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_cycle_duration_seconds",
		Help:    "Wall time of a full ingestion cycle",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	cyclesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_cycles_total",
		Help: "Completed ingestion cycles",
	})

	registry.MustRegister(requestDuration, requestTotal, eventsIngested,
		rejections, sourceErrors, sourceDuration, cycleDuration, cyclesTotal)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		eventsIngested:  eventsIngested,
		rejections:      rejections,
		sourceErrors:    sourceErrors,
		sourceDuration:  sourceDuration,
		cycleDuration:   cycleDuration,
		cyclesTotal:     cyclesTotal,
	}
}

// Handler serves the scrape endpoint for this registry.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// ObserveRequest records one HTTP request.
func (m *MetricsService) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	labels := []string{method, path, strconv.Itoa(status)}
	m.requestDuration.WithLabelValues(labels...).Observe(elapsed.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// ObserveSource records one source's counters from a finished cycle.
func (m *MetricsService) ObserveSource(report *models.SourceReport) {
	src := string(report.Source)
	m.eventsIngested.WithLabelValues(src, string(models.OutcomeCreated)).Add(float64(report.Created))
	m.eventsIngested.WithLabelValues(src, string(models.OutcomeUpdated)).Add(float64(report.Updated))
	m.eventsIngested.WithLabelValues(src, string(models.OutcomeUnchanged)).Add(float64(report.Unchanged))
	for reason, n := range report.Rejections {
		m.rejections.WithLabelValues(src, reason).Add(float64(n))
	}
	if report.Error != "" {
		m.sourceErrors.WithLabelValues(src).Inc()
	}
	m.sourceDuration.WithLabelValues(src).Observe(report.Duration.Seconds())
}

// ObserveCycle records a completed cycle.
func (m *MetricsService) ObserveCycle(summary *models.RunSummary) {
	m.cycleDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	m.cyclesTotal.Inc()
}
