package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/student-portal-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the portal.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	attendanceMarks  *prometheus.CounterVec
	attendanceSubmit *prometheus.CounterVec
	uploads          *prometheus.CounterVec
	uploadBytes      prometheus.Counter
	cleanups         *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors on a private registry.
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

	attendanceMarks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_marks_total",
		Help: "Attendance statuses written, by status",
	}, []string{"status"})

	attendanceSubmit := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_submissions_total",
		Help: "Attendance sheet submissions, by mode and result",
	}, []string{"mode", "result"})

	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "document_uploads_total",
		Help: "Uploaded documents, by kind",
	}, []string{"kind"})

	uploadBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "document_upload_bytes_total",
		Help: "Bytes written to the file store by uploads",
	})

	cleanups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "file_cleanup_total",
		Help: "Background file removals, by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, attendanceMarks, attendanceSubmit, uploads, uploadBytes, cleanups, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		attendanceMarks:  attendanceMarks,
		attendanceSubmit: attendanceSubmit,
		uploads:          uploads,
		uploadBytes:      uploadBytes,
		cleanups:         cleanups,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// RecordAttendanceMark counts one written status.
func (m *MetricsService) RecordAttendanceMark(status models.AttendanceStatus) {
	if m == nil {
		return
	}
	m.attendanceMarks.WithLabelValues(string(status)).Inc()
}

// RecordAttendanceSubmission counts a sheet submission outcome.
func (m *MetricsService) RecordAttendanceSubmission(mode models.BulkOperationMode, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.attendanceSubmit.WithLabelValues(string(mode), result).Inc()
}

// RecordUpload counts a stored document.
func (m *MetricsService) RecordUpload(kind models.DocumentKind, size int64) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(string(kind)).Inc()
	if size > 0 {
		m.uploadBytes.Add(float64(size))
	}
}

// RecordCleanup counts a finished background file removal.
func (m *MetricsService) RecordCleanup(err error) {
	if m == nil {
		return
	}
	outcome := "removed"
	if err != nil {
		outcome = "failed"
	}
	m.cleanups.WithLabelValues(outcome).Inc()
}
