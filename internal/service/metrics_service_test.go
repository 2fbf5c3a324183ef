package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-portal-api/internal/models"
)

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/attendance/mark", http.StatusOK, 15*time.Millisecond)
	m.RecordAttendanceMark(models.AttendanceStatusPresent)
	m.RecordAttendanceMark(models.AttendanceStatusPresent)
	m.RecordAttendanceSubmission(models.BulkModeAtomic, true)
	m.RecordUpload(models.DocumentKindMaterial, 2048)
	m.RecordCleanup(nil)
	m.RecordCleanup(errors.New("disk"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.attendanceMarks.WithLabelValues("present")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attendanceSubmit.WithLabelValues("atomic", "ok")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(m.uploadBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cleanups.WithLabelValues("failed")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
	assert.Contains(t, rec.Body.String(), "document_uploads_total")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.RecordAttendanceMark(models.AttendanceStatusAbsent)
	m.RecordCleanup(nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
