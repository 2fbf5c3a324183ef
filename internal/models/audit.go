package models

import "time"

// Audit actions recorded by the portal.
const (
	AuditActionRegister         = "REGISTER"
	AuditActionLogin            = "LOGIN"
	AuditActionLogout           = "LOGOUT"
	AuditActionAttendanceSubmit = "ATTENDANCE_SUBMIT"
	AuditActionAttendanceMark   = "ATTENDANCE_MARK"
	AuditActionDocumentUpload   = "DOCUMENT_UPLOAD"
	AuditActionDocumentDelete   = "DOCUMENT_DELETE"
	AuditActionSubjectCreate    = "SUBJECT_CREATE"
	AuditActionCounselorMessage = "COUNSELOR_MESSAGE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  *string   `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
