package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/student-portal-api/internal/models"
	"github.com/noah-isme/student-portal-api/pkg/database"
)

// ErrStudentNotFound is returned when an attendance write targets an id that is not a student.
var ErrStudentNotFound = errors.New("student not found")

const historySelect = `SELECT a.date, a.student_id, s.name AS student_name, a.status, a.marked_by, m.name AS marked_by_name
FROM attendance a
JOIN users s ON s.id = a.student_id
LEFT JOIN users m ON m.id = a.marked_by`

// AttendanceRepository persists one status per (student, date).
type AttendanceRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db, now: time.Now}
}

// Mark writes the status for (student, date), creating the row on first mark and overwriting
// status, marker and updated_at afterwards.
func (r *AttendanceRepository) Mark(ctx context.Context, record *models.AttendanceRecord) error {
	return r.upsert(ctx, r.db, record, true)
}

// MarkMany applies several records. With atomic set, all records are written in one transaction
// and the first failure rolls everything back. Otherwise each record is applied on its own and
// records for unknown students are reported as conflicts.
func (r *AttendanceRepository) MarkMany(ctx context.Context, records []models.AttendanceRecord, atomic bool) ([]models.AttendanceConflict, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if !atomic {
		conflicts := make([]models.AttendanceConflict, 0)
		for i := range records {
			rec := &records[i]
			if err := r.upsert(ctx, r.db, rec, true); err != nil {
				if errors.Is(err, ErrStudentNotFound) || database.IsForeignKeyViolation(err) {
					conflicts = append(conflicts, models.AttendanceConflict{StudentID: rec.StudentID, Reason: ErrStudentNotFound.Error()})
					continue
				}
				return conflicts, err
			}
		}
		return conflicts, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin attendance batch: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()
	for i := range records {
		if err := r.upsert(ctx, tx, &records[i], false); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit attendance batch: %w", err)
	}
	commit = true
	return nil, nil
}

// upsert updates the existing row or inserts a new one. A concurrent insert surfaces as a unique
// violation; outside a transaction the update is retried once so the last writer wins.
func (r *AttendanceRepository) upsert(ctx context.Context, q sqlx.ExtContext, rec *models.AttendanceRecord, retry bool) error {
	now := r.now().UTC()
	rec.UpdatedAt = now

	updated, err := r.update(ctx, q, rec)
	if err != nil {
		return err
	}
	if updated {
		return nil
	}

	var role models.UserRole
	err = sqlx.GetContext(ctx, q, &role, q.Rebind(`SELECT role FROM users WHERE id = ?`), rec.StudentID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && role != models.RoleStudent) {
		return fmt.Errorf("mark attendance for %s: %w", rec.StudentID, ErrStudentNotFound)
	}
	if err != nil {
		return fmt.Errorf("lookup student %s: %w", rec.StudentID, err)
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = now
	_, err = q.ExecContext(ctx, q.Rebind(`INSERT INTO attendance (id, student_id, date, status, marked_by, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.StudentID, rec.Date, rec.Status, rec.MarkedBy, rec.CreatedAt, rec.UpdatedAt)
	if err == nil {
		return nil
	}
	if retry && database.IsUniqueViolation(err) {
		if updated, uerr := r.update(ctx, q, rec); uerr != nil || updated {
			return uerr
		}
	}
	return fmt.Errorf("insert attendance for %s: %w", rec.StudentID, err)
}

func (r *AttendanceRepository) update(ctx context.Context, q sqlx.ExtContext, rec *models.AttendanceRecord) (bool, error) {
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE attendance SET status = ?, marked_by = ?, updated_at = ? WHERE student_id = ? AND date = ?`),
		rec.Status, rec.MarkedBy, rec.UpdatedAt, rec.StudentID, rec.Date)
	if err != nil {
		return false, fmt.Errorf("update attendance for %s: %w", rec.StudentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update attendance rows affected: %w", err)
	}
	return n > 0, nil
}

// Sheet lists every student with their status on date, ordered by name then id.
func (r *AttendanceRepository) Sheet(ctx context.Context, date models.Date) ([]models.AttendanceSheetRow, error) {
	query := r.db.Rebind(`SELECT u.id AS student_id, u.name AS student_name, u.student_identifier, a.status, a.marked_by
FROM users u
LEFT JOIN attendance a ON a.student_id = u.id AND a.date = ?
WHERE u.role = ?
ORDER BY u.name ASC, u.id ASC`)
	rows := make([]models.AttendanceSheetRow, 0)
	if err := r.db.SelectContext(ctx, &rows, query, date, models.RoleStudent); err != nil {
		return nil, fmt.Errorf("attendance sheet: %w", err)
	}
	return rows, nil
}

// IsStudent reports whether id belongs to a student account.
func (r *AttendanceRepository) IsStudent(ctx context.Context, id string) (bool, error) {
	var role models.UserRole
	err := r.db.GetContext(ctx, &role, r.db.Rebind(`SELECT role FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup student %s: %w", id, err)
	}
	return role == models.RoleStudent, nil
}

// HistoryForStudent returns a student's marked days, newest first.
func (r *AttendanceRepository) HistoryForStudent(ctx context.Context, studentID string) ([]models.AttendanceHistoryRow, error) {
	query := r.db.Rebind(historySelect + `
WHERE a.student_id = ?
ORDER BY a.date DESC`)
	rows := make([]models.AttendanceHistoryRow, 0)
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("student attendance history: %w", err)
	}
	return rows, nil
}

// HistoryAll returns every marked day, newest first then by student name.
func (r *AttendanceRepository) HistoryAll(ctx context.Context) ([]models.AttendanceHistoryRow, error) {
	query := historySelect + `
ORDER BY a.date DESC, s.name ASC, a.student_id ASC`
	rows := make([]models.AttendanceHistoryRow, 0)
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("attendance history: %w", err)
	}
	return rows, nil
}

// StudentSummary aggregates counts for a student.
func (r *AttendanceRepository) StudentSummary(ctx context.Context, studentID string) (*models.AttendanceSummary, error) {
	query := r.db.Rebind(`SELECT status, COUNT(*) AS cnt FROM attendance WHERE student_id = ? GROUP BY status`)
	rows := []struct {
		Status models.AttendanceStatus `db:"status"`
		Count  int                     `db:"cnt"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("student attendance summary: %w", err)
	}
	summary := &models.AttendanceSummary{}
	for _, row := range rows {
		switch row.Status {
		case models.AttendanceStatusPresent:
			summary.Present += row.Count
		case models.AttendanceStatusAbsent:
			summary.Absent += row.Count
		}
		summary.Total += row.Count
	}
	if summary.Total > 0 {
		summary.Percent = float64(summary.Present) / float64(summary.Total) * 100
	}
	return summary, nil
}

// CountMarkedOn returns how many students have a status on date.
func (r *AttendanceRepository) CountMarkedOn(ctx context.Context, date models.Date) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM attendance WHERE date = ?`), date); err != nil {
		return 0, fmt.Errorf("count attendance marks: %w", err)
	}
	return total, nil
}
