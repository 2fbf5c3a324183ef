package handler

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-portal-api/internal/dto"
	"github.com/noah-isme/student-portal-api/internal/middleware"
	"github.com/noah-isme/student-portal-api/internal/models"
	appErrors "github.com/noah-isme/student-portal-api/pkg/errors"
	"github.com/noah-isme/student-portal-api/pkg/response"
)

const attendanceFieldPrefix = "attendance_"

type attendanceService interface {
	ResolveDate(raw string) (models.Date, error)
	Mark(ctx context.Context, req dto.MarkAttendanceRequest, claims *models.JWTClaims) (*models.AttendanceRecord, error)
	TodaySheet(ctx context.Context, claims *models.JWTClaims) (*dto.AttendanceSheet, error)
	Sheet(ctx context.Context, date models.Date, claims *models.JWTClaims) (*dto.AttendanceSheet, error)
	SubmitToday(ctx context.Context, sub dto.AttendanceSubmission, claims *models.JWTClaims) (*dto.AttendanceSubmitResult, error)
	SubmitSheet(ctx context.Context, date models.Date, sub dto.AttendanceSubmission, claims *models.JWTClaims) (*dto.AttendanceSubmitResult, error)
	History(ctx context.Context, claims *models.JWTClaims) (*dto.AttendanceHistory, error)
	HistoryFor(ctx context.Context, studentID string, claims *models.JWTClaims) (*dto.AttendanceHistory, error)
	ExportHistory(ctx context.Context, format string, claims *models.JWTClaims) (*dto.ExportFile, error)
}

// AttendanceHandler exposes the attendance sheet and history endpoints.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(svc attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// TodaySheet godoc
// @Summary Today's attendance sheet
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /attendance/mark [get]
func (h *AttendanceHandler) TodaySheet(c *gin.Context) {
	sheet, err := h.service.TodaySheet(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// SubmitToday godoc
// @Summary Submit today's attendance
// @Description Accepts JSON {"mode","entries"} or form fields attendance_<studentID>=present|absent
// @Tags Attendance
// @Accept json
// @Accept x-www-form-urlencoded
// @Produce json
// @Security BearerAuth
// @Param payload body dto.AttendanceSubmission true "Sheet submission"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/mark [post]
func (h *AttendanceHandler) SubmitToday(c *gin.Context) {
	sub, err := bindSubmission(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.SubmitToday(c.Request.Context(), sub, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.AuditResourceKey, result.Date.String())
	response.JSON(c, http.StatusOK, result, nil, response.Message("Attendance saved!"))
}

// Sheet godoc
// @Summary Attendance sheet for a date
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param date query string false "YYYY-MM-DD, defaults to today"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance/edit [get]
func (h *AttendanceHandler) Sheet(c *gin.Context) {
	date, err := h.service.ResolveDate(c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	sheet, err := h.service.Sheet(c.Request.Context(), date, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// SubmitSheet godoc
// @Summary Edit attendance for a date
// @Tags Attendance
// @Accept json
// @Accept x-www-form-urlencoded
// @Produce json
// @Security BearerAuth
// @Param date query string false "YYYY-MM-DD, defaults to today"
// @Param payload body dto.AttendanceSubmission true "Sheet submission"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance/edit [post]
func (h *AttendanceHandler) SubmitSheet(c *gin.Context) {
	raw := c.Query("date")
	if raw == "" {
		raw = c.PostForm("date")
	}
	date, err := h.service.ResolveDate(raw)
	if err != nil {
		response.Error(c, err)
		return
	}
	sub, err := bindSubmission(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.SubmitSheet(c.Request.Context(), date, sub, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.AuditResourceKey, result.Date.String())
	response.JSON(c, http.StatusOK, result, nil, response.Message("Attendance updated!"))
}

// Mark godoc
// @Summary Mark one student
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.MarkAttendanceRequest true "Single mark"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/records [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req dto.MarkAttendanceRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}
	record, err := h.service.Mark(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.AuditResourceKey, record.StudentID)
	response.JSON(c, http.StatusOK, record, nil, response.Message("Attendance saved!"))
}

// History godoc
// @Summary Attendance history
// @Description Students see their own history, staff see everyone's
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /attendance/history [get]
func (h *AttendanceHandler) History(c *gin.Context) {
	history, err := h.service.History(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// HistoryFor godoc
// @Summary Attendance history of one student
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /attendance/history/{studentId} [get]
func (h *AttendanceHandler) HistoryFor(c *gin.Context) {
	history, err := h.service.HistoryFor(c.Request.Context(), c.Param("studentId"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// Export godoc
// @Summary Export attendance history
// @Tags Attendance
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /attendance/history/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	file, err := h.service.ExportHistory(c.Request.Context(), c.DefaultQuery("format", "csv"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Body)
}

// bindSubmission reads a JSON submission or the attendance_<studentID> form fields.
func bindSubmission(c *gin.Context) (dto.AttendanceSubmission, error) {
	var sub dto.AttendanceSubmission
	if c.ContentType() == gin.MIMEJSON {
		if err := c.ShouldBindJSON(&sub); err != nil {
			return sub, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance submission")
		}
		return sub, nil
	}

	if err := c.Request.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return sub, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance form")
	}
	sub.Mode = c.Request.PostForm.Get("mode")
	keys := make([]string, 0, len(c.Request.PostForm))
	for key := range c.Request.PostForm {
		if strings.HasPrefix(key, attendanceFieldPrefix) && len(key) > len(attendanceFieldPrefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		sub.Entries = append(sub.Entries, dto.AttendanceEntry{
			StudentID: strings.TrimPrefix(key, attendanceFieldPrefix),
			Status:    strings.TrimSpace(c.Request.PostForm.Get(key)),
		})
	}
	return sub, nil
}
