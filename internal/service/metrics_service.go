package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the intake and
// review pipelines.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	submissions     prometheus.Counter
	duplicates      prometheus.Counter
	attachments     *prometheus.CounterVec
	exports         *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec
}

// NewMetricsService registers the collectors. The subscribers callback, when
// not nil, feeds the live stream gauge.
func NewMetricsService(subscribers func() int) *MetricsService {
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

	submissions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "case_submissions_total",
		Help: "Total number of accepted case submissions",
	})

	duplicates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "case_duplicate_submissions_total",
		Help: "Total number of refused duplicate submissions",
	})

	attachments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "case_attachments_total",
		Help: "Attachment pipeline outcomes",
	}, []string{"outcome"})

	exports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "case_exports_total",
		Help: "Rendered case exports by format",
	}, []string{"format"})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, submissions, duplicates, attachments, exports, dbQueryDuration, goroutines)

	if subscribers != nil {
		streamSubscribers := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "dashboard_stream_subscribers",
			Help: "Active dashboard stream subscribers",
		}, func() float64 {
			return float64(subscribers())
		})
		registry.MustRegister(streamSubscribers)
	}

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		submissions:     submissions,
		duplicates:      duplicates,
		attachments:     attachments,
		exports:         exports,
		dbQueryDuration: dbQueryDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordSubmission counts one accepted case submission.
func (m *MetricsService) RecordSubmission() {
	if m == nil {
		return
	}
	m.submissions.Inc()
}

// RecordDuplicate counts one refused duplicate submission.
func (m *MetricsService) RecordDuplicate() {
	if m == nil {
		return
	}
	m.duplicates.Inc()
}

// RecordAttachments counts pipeline outcomes for a submission.
func (m *MetricsService) RecordAttachments(uploaded, excluded, failed int) {
	if m == nil {
		return
	}
	m.attachments.WithLabelValues("uploaded").Add(float64(uploaded))
	m.attachments.WithLabelValues("excluded").Add(float64(excluded))
	m.attachments.WithLabelValues("failed").Add(float64(failed))
}

// RecordExport counts one rendered export.
func (m *MetricsService) RecordExport(format string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(format).Inc()
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}
