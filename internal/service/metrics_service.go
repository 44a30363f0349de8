package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/docspace-session-api/internal/models"
	appErrors "github.com/noah-isme/docspace-session-api/pkg/errors"
)

const (
	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// MetricsService encapsulates Prometheus instrumentation for the session layer.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	dbQueryDuration  *prometheus.HistogramVec
	logins           *prometheus.CounterVec
	reissues         *prometheus.CounterVec
	rotations        prometheus.Counter
	cleanupDeleted   *prometheus.CounterVec
	cleanupFailures  prometheus.Counter
	cleanupLastRunTS prometheus.Gauge
}

// NewMetricsService registers core Prometheus collectors.
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

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_logins_total",
		Help: "Login attempts by outcome",
	}, []string{"outcome"})

	reissues := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_reissues_total",
		Help: "Reissue attempts by outcome",
	}, []string{"outcome"})

	rotations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "session_refresh_rotations_total",
		Help: "Refresh tokens replaced during reissue",
	})

	cleanupDeleted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_cleanup_deleted_total",
		Help: "Rows removed by the cleanup sweep",
	}, []string{"kind"})

	cleanupFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "session_cleanup_failures_total",
		Help: "Principals the cleanup sweep failed to purge",
	})

	cleanupLastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "session_cleanup_last_run_timestamp_seconds",
		Help: "Start time of the last cleanup sweep",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, dbQueryDuration, logins, reissues, rotations, cleanupDeleted, cleanupFailures, cleanupLastRun, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		dbQueryDuration:  dbQueryDuration,
		logins:           logins,
		reissues:         reissues,
		rotations:        rotations,
		cleanupDeleted:   cleanupDeleted,
		cleanupFailures:  cleanupFailures,
		cleanupLastRunTS: cleanupLastRun,
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

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordLogin counts a login attempt.
func (m *MetricsService) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// RecordReissue counts a reissue attempt and whether it rotated the refresh token.
func (m *MetricsService) RecordReissue(outcome string, rotated bool) {
	if m == nil {
		return
	}
	m.reissues.WithLabelValues(outcome).Inc()
	if rotated {
		m.rotations.Inc()
	}
}

// RecordCleanup exports the totals of one cleanup sweep.
func (m *MetricsService) RecordCleanup(report *models.CleanupReport) {
	if m == nil || report == nil {
		return
	}
	m.cleanupDeleted.WithLabelValues("principal").Add(float64(report.PrincipalsPurged))
	m.cleanupDeleted.WithLabelValues("access_token").Add(float64(report.AccessTokensDeleted))
	m.cleanupDeleted.WithLabelValues("refresh_token").Add(float64(report.RefreshTokensDeleted))
	m.cleanupFailures.Add(float64(report.PrincipalFailures))
	m.cleanupLastRunTS.Set(float64(report.StartedAt.Unix()))
}

// outcomeFor classifies an error: client-caused rejections versus server faults.
func outcomeFor(err error) string {
	if err == nil {
		return outcomeSuccess
	}
	if appErr := appErrors.FromError(err); appErr.Status < http.StatusInternalServerError {
		return outcomeRejected
	}
	return outcomeError
}
