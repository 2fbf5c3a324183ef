package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	return s == AttendanceStatusPresent || s == AttendanceStatusAbsent
}

// BulkOperationMode controls how sheet submissions behave on errors.
type BulkOperationMode string

const (
	BulkModeAtomic         BulkOperationMode = "atomic"
	BulkModePartialOnError BulkOperationMode = "partialOnError"
)

// Valid reports whether m is a known mode.
func (m BulkOperationMode) Valid() bool {
	return m == BulkModeAtomic || m == BulkModePartialOnError
}

// AttendanceRecord is the single status row for a (student, date) pair.
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Date      Date             `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	MarkedBy  *string          `db:"marked_by" json:"marked_by,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceSheetRow is one student on a date; Status and MarkedBy are nil when unmarked.
type AttendanceSheetRow struct {
	StudentID         string            `db:"student_id" json:"student_id"`
	StudentName       string            `db:"student_name" json:"student_name"`
	StudentIdentifier *string           `db:"student_identifier" json:"student_identifier,omitempty"`
	Status            *AttendanceStatus `db:"status" json:"status"`
	MarkedBy          *string           `db:"marked_by" json:"marked_by"`
}

// AttendanceHistoryRow is one marked day joined with student and marker names.
type AttendanceHistoryRow struct {
	Date         Date             `db:"date" json:"date"`
	StudentID    string           `db:"student_id" json:"student_id"`
	StudentName  string           `db:"student_name" json:"student_name"`
	Status       AttendanceStatus `db:"status" json:"status"`
	MarkedBy     *string          `db:"marked_by" json:"marked_by,omitempty"`
	MarkedByName *string          `db:"marked_by_name" json:"marked_by_name,omitempty"`
}

// AttendanceConflict describes an entry that was not applied.
type AttendanceConflict struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// AttendanceSummary counts marked days for a student.
type AttendanceSummary struct {
	Present int     `json:"present"`
	Absent  int     `json:"absent"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}
