package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/student-portal-api/internal/dto"
	"github.com/noah-isme/student-portal-api/internal/models"
	"github.com/noah-isme/student-portal-api/internal/policy"
	"github.com/noah-isme/student-portal-api/internal/repository"
	appErrors "github.com/noah-isme/student-portal-api/pkg/errors"
	"github.com/noah-isme/student-portal-api/pkg/export"
)

type attendanceRepository interface {
	Mark(ctx context.Context, record *models.AttendanceRecord) error
	MarkMany(ctx context.Context, records []models.AttendanceRecord, atomic bool) ([]models.AttendanceConflict, error)
	Sheet(ctx context.Context, date models.Date) ([]models.AttendanceSheetRow, error)
	IsStudent(ctx context.Context, id string) (bool, error)
	HistoryForStudent(ctx context.Context, studentID string) ([]models.AttendanceHistoryRow, error)
	HistoryAll(ctx context.Context) ([]models.AttendanceHistoryRow, error)
	StudentSummary(ctx context.Context, studentID string) (*models.AttendanceSummary, error)
	CountMarkedOn(ctx context.Context, date models.Date) (int, error)
}

type attendanceMetrics interface {
	RecordAttendanceMark(status models.AttendanceStatus)
	RecordAttendanceSubmission(mode models.BulkOperationMode, ok bool)
}

// AttendanceService is the attendance engine: one status per (student, date), written by staff
// and read back as sheets and histories.
type AttendanceService struct {
	repo      attendanceRepository
	validator *validator.Validate
	logger    *zap.Logger
	metrics   attendanceMetrics
	location  *time.Location
	now       func() time.Time
}

// NewAttendanceService constructs the attendance service. "Today" is resolved in loc.
func NewAttendanceService(repo attendanceRepository, validate *validator.Validate, logger *zap.Logger, metrics attendanceMetrics, loc *time.Location) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	registerPortalValidators(validate)
	return &AttendanceService{repo: repo, validator: validate, logger: logger, metrics: metrics, location: loc, now: time.Now}
}

// Today returns the current calendar date in the attendance time zone.
func (s *AttendanceService) Today() models.Date {
	return models.NewDate(s.now().In(s.location))
}

// ResolveDate parses a YYYY-MM-DD value; an empty value means today.
func (s *AttendanceService) ResolveDate(raw string) (models.Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.Today(), nil
	}
	date, err := models.ParseDate(raw)
	if err != nil {
		return models.Date{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must use the YYYY-MM-DD format")
	}
	return date, nil
}

// Mark writes a single student's status. Marking again overwrites the status and the marker.
func (s *AttendanceService) Mark(ctx context.Context, req dto.MarkAttendanceRequest, claims *models.JWTClaims) (*models.AttendanceRecord, error) {
	if err := authorize(claims, policy.ActionMarkAttendance); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	date, err := s.ResolveDate(req.Date)
	if err != nil {
		return nil, err
	}

	markedBy := claims.UserID
	record := &models.AttendanceRecord{
		StudentID: strings.TrimSpace(req.StudentID),
		Date:      date,
		Status:    models.AttendanceStatus(req.Status),
		MarkedBy:  &markedBy,
	}
	if err := s.repo.Mark(ctx, record); err != nil {
		return nil, s.writeError(err)
	}
	if s.metrics != nil {
		s.metrics.RecordAttendanceMark(record.Status)
	}
	s.logger.Info("attendance marked",
		zap.String("student_id", record.StudentID),
		zap.String("date", date.String()),
		zap.String("status", string(record.Status)),
		zap.String("marked_by", markedBy))
	return record, nil
}

// TodaySheet lists every student with today's status.
func (s *AttendanceService) TodaySheet(ctx context.Context, claims *models.JWTClaims) (*dto.AttendanceSheet, error) {
	if err := authorize(claims, policy.ActionMarkAttendance); err != nil {
		return nil, err
	}
	return s.sheet(ctx, s.Today())
}

// Sheet lists every student with their status on date.
func (s *AttendanceService) Sheet(ctx context.Context, date models.Date, claims *models.JWTClaims) (*dto.AttendanceSheet, error) {
	if err := authorize(claims, policy.ActionEditAttendance); err != nil {
		return nil, err
	}
	return s.sheet(ctx, date)
}

func (s *AttendanceService) sheet(ctx context.Context, date models.Date) (*dto.AttendanceSheet, error) {
	rows, err := s.repo.Sheet(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance sheet")
	}
	sheet := &dto.AttendanceSheet{Date: date, Rows: rows, Total: len(rows)}
	for _, row := range rows {
		if row.Status != nil {
			sheet.Marked++
		}
	}
	return sheet, nil
}

// SubmitToday applies a sheet submission for today.
func (s *AttendanceService) SubmitToday(ctx context.Context, sub dto.AttendanceSubmission, claims *models.JWTClaims) (*dto.AttendanceSubmitResult, error) {
	if err := authorize(claims, policy.ActionMarkAttendance); err != nil {
		return nil, err
	}
	return s.submit(ctx, s.Today(), sub, claims)
}

// SubmitSheet applies a sheet submission for an arbitrary date.
func (s *AttendanceService) SubmitSheet(ctx context.Context, date models.Date, sub dto.AttendanceSubmission, claims *models.JWTClaims) (*dto.AttendanceSubmitResult, error) {
	if err := authorize(claims, policy.ActionEditAttendance); err != nil {
		return nil, err
	}
	return s.submit(ctx, date, sub, claims)
}

// submit skips entries without a status. In atomic mode every other entry is written or none is;
// in partialOnError mode failing entries are reported as conflicts.
func (s *AttendanceService) submit(ctx context.Context, date models.Date, sub dto.AttendanceSubmission, claims *models.JWTClaims) (*dto.AttendanceSubmitResult, error) {
	entries := make([]dto.AttendanceEntry, len(sub.Entries))
	for i, entry := range sub.Entries {
		entry.StudentID = strings.TrimSpace(entry.StudentID)
		entry.Status = strings.TrimSpace(entry.Status)
		entries[i] = entry
	}
	sub.Entries = entries
	if err := s.validator.Struct(sub); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance submission")
	}
	mode := models.BulkOperationMode(sub.Mode)
	if mode == "" {
		mode = models.BulkModeAtomic
	}

	markedBy := claims.UserID
	result := &dto.AttendanceSubmitResult{Date: date, Mode: mode}
	records := make([]models.AttendanceRecord, 0, len(sub.Entries))
	for _, entry := range sub.Entries {
		if entry.Status == "" {
			result.Skipped++
			continue
		}
		records = append(records, models.AttendanceRecord{
			StudentID: entry.StudentID,
			Date:      date,
			Status:    models.AttendanceStatus(entry.Status),
			MarkedBy:  &markedBy,
		})
	}

	conflicts, err := s.repo.MarkMany(ctx, records, mode == models.BulkModeAtomic)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordAttendanceSubmission(mode, false)
		}
		return nil, s.writeError(err)
	}
	result.Conflicts = conflicts
	result.Saved = len(records) - len(conflicts)

	if s.metrics != nil {
		s.metrics.RecordAttendanceSubmission(mode, true)
		failed := make(map[string]struct{}, len(conflicts))
		for _, c := range conflicts {
			failed[c.StudentID] = struct{}{}
		}
		for _, rec := range records {
			if _, ok := failed[rec.StudentID]; !ok {
				s.metrics.RecordAttendanceMark(rec.Status)
			}
		}
	}
	s.logger.Info("attendance submitted",
		zap.String("date", date.String()),
		zap.String("mode", string(mode)),
		zap.Int("saved", result.Saved),
		zap.Int("skipped", result.Skipped),
		zap.Int("conflicts", len(conflicts)),
		zap.String("marked_by", markedBy))
	return result, nil
}

// History returns the history visible to the caller: their own for students, everyone's for staff.
func (s *AttendanceService) History(ctx context.Context, claims *models.JWTClaims) (*dto.AttendanceHistory, error) {
	if claims != nil && claims.Role == models.RoleStudent {
		return s.HistoryFor(ctx, claims.UserID, claims)
	}
	return s.HistoryAll(ctx, claims)
}

// HistoryFor returns one student's marked days, newest first. Students may only ask for themselves.
func (s *AttendanceService) HistoryFor(ctx context.Context, studentID string, claims *models.JWTClaims) (*dto.AttendanceHistory, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	scope := dto.HistoryScopeStudent
	if claims != nil && claims.Role == models.RoleStudent {
		if err := authorize(claims, policy.ActionViewOwnAttendanceHistory); err != nil {
			return nil, err
		}
		if studentID != claims.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "students can only view their own attendance")
		}
		scope = dto.HistoryScopeOwn
	} else {
		if err := authorize(claims, policy.ActionViewAllAttendanceHistory); err != nil {
			return nil, err
		}
		ok, err := s.repo.IsStudent(ctx, studentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
		}
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrStudentNotFound, "student not found")
		}
	}

	rows, err := s.repo.HistoryForStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}
	return &dto.AttendanceHistory{Scope: scope, StudentID: studentID, Rows: rows}, nil
}

// HistoryAll returns every marked day, newest first then by student name.
func (s *AttendanceService) HistoryAll(ctx context.Context, claims *models.JWTClaims) (*dto.AttendanceHistory, error) {
	if err := authorize(claims, policy.ActionViewAllAttendanceHistory); err != nil {
		return nil, err
	}
	rows, err := s.repo.HistoryAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}
	return &dto.AttendanceHistory{Scope: dto.HistoryScopeAll, Rows: rows}, nil
}

// ExportHistory renders the caller's visible history as CSV or PDF.
func (s *AttendanceService) ExportHistory(ctx context.Context, format string, claims *models.JWTClaims) (*dto.ExportFile, error) {
	renderer, err := export.ForFormat(export.Format(strings.ToLower(strings.TrimSpace(format))))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}
	history, err := s.History(ctx, claims)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Title:   "Attendance history",
		Headers: []string{"Date", "Student", "Status", "Marked by"},
		Rows:    make([]map[string]string, 0, len(history.Rows)),
	}
	if history.Scope == dto.HistoryScopeOwn {
		dataset.Title = "Attendance history for " + claims.Name
	}
	for _, row := range history.Rows {
		markedBy := ""
		if row.MarkedByName != nil {
			markedBy = *row.MarkedByName
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Date":      row.Date.String(),
			"Student":   row.StudentName,
			"Status":    string(row.Status),
			"Marked by": markedBy,
		})
	}

	body, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render attendance export")
	}
	return &dto.ExportFile{
		Filename:    fmt.Sprintf("attendance_%s_%s.%s", history.Scope, s.Today().String(), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

// Summary counts a student's marked days.
func (s *AttendanceService) Summary(ctx context.Context, studentID string) (*models.AttendanceSummary, error) {
	summary, err := s.repo.StudentSummary(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}
	return summary, nil
}

// MarkedToday counts students with a status today.
func (s *AttendanceService) MarkedToday(ctx context.Context) (int, error) {
	n, err := s.repo.CountMarkedOn(ctx, s.Today())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attendance")
	}
	return n, nil
}

func (s *AttendanceService) writeError(err error) error {
	if errors.Is(err, repository.ErrStudentNotFound) {
		return appErrors.Clone(appErrors.ErrStudentNotFound, "student not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
}
