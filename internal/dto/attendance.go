package dto

import "github.com/noah-isme/student-portal-api/internal/models"

// MarkAttendanceRequest marks one student. An empty date means today.
type MarkAttendanceRequest struct {
	StudentID string `json:"student_id" validate:"required,max=36"`
	Date      string `json:"date"`
	Status    string `json:"status" validate:"required,attendance_status"`
}

// AttendanceEntry is one row of a sheet submission. An empty status leaves the student untouched.
type AttendanceEntry struct {
	StudentID string `json:"student_id" validate:"required,max=36"`
	Status    string `json:"status" validate:"omitempty,attendance_status"`
}

// AttendanceSubmission posts a whole sheet. Mode defaults to atomic.
type AttendanceSubmission struct {
	Mode    string            `json:"mode" validate:"omitempty,bulk_mode"`
	Entries []AttendanceEntry `json:"entries" validate:"dive"`
}

// AttendanceSheet lists every student for one date.
type AttendanceSheet struct {
	Date   models.Date                 `json:"date"`
	Rows   []models.AttendanceSheetRow `json:"rows"`
	Marked int                         `json:"marked"`
	Total  int                         `json:"total"`
}

// AttendanceSubmitResult reports what a submission changed.
type AttendanceSubmitResult struct {
	Date      models.Date                 `json:"date"`
	Mode      models.BulkOperationMode    `json:"mode"`
	Saved     int                         `json:"saved"`
	Skipped   int                         `json:"skipped"`
	Conflicts []models.AttendanceConflict `json:"conflicts,omitempty"`
}

// AttendanceHistory is the history visible to the caller.
type AttendanceHistory struct {
	Scope     string                        `json:"scope"`
	StudentID string                        `json:"student_id,omitempty"`
	Rows      []models.AttendanceHistoryRow `json:"rows"`
}

// History scopes.
const (
	HistoryScopeOwn     = "own"
	HistoryScopeStudent = "student"
	HistoryScopeAll     = "all"
)

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}
