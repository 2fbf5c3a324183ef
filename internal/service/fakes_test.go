package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/student-portal-api/internal/models"
	"github.com/noah-isme/student-portal-api/internal/repository"
)

// memoryPortal keeps users, attendance and audit rows in memory and mirrors the SQL repositories.
type memoryPortal struct {
	mu         sync.Mutex
	users      map[string]*models.User
	attendance map[string]*models.AttendanceRecord
	audits     []*models.AuditLog
	createErr  error
	failMark   error
	clock      time.Time
}

func newMemoryPortal() *memoryPortal {
	return &memoryPortal{
		users:      make(map[string]*models.User),
		attendance: make(map[string]*models.AttendanceRecord),
		clock:      time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (p *memoryPortal) addUser(id, name string, role models.UserRole) *models.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	u := &models.User{ID: id, Name: name, Email: strings.ToLower(id) + "@school.test", Role: role}
	p.users[id] = u
	return u
}

func (p *memoryPortal) FindByEmail(_ context.Context, email string) (*models.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (p *memoryPortal) FindByID(_ context.Context, id string) (*models.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (p *memoryPortal) Create(_ context.Context, user *models.User) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return p.createErr
	}
	for _, u := range p.users {
		if u.Email == user.Email {
			return fmt.Errorf("create user: duplicate email")
		}
	}
	cp := *user
	p.users[user.ID] = &cp
	return nil
}

func (p *memoryPortal) CountByRole(_ context.Context) ([]models.RoleCount, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	counts := map[models.UserRole]int{}
	for _, u := range p.users {
		counts[u.Role]++
	}
	out := make([]models.RoleCount, 0, len(counts))
	for _, r := range models.Roles {
		if counts[r] > 0 {
			out = append(out, models.RoleCount{Role: r, Count: counts[r]})
		}
	}
	return out, nil
}

func (p *memoryPortal) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.audits = append(p.audits, log)
	return nil
}

func attendanceKey(studentID string, date models.Date) string {
	return studentID + "|" + date.String()
}

func (p *memoryPortal) IsStudent(_ context.Context, id string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isStudent(id), nil
}

func (p *memoryPortal) isStudent(id string) bool {
	u, ok := p.users[id]
	return ok && u.Role == models.RoleStudent
}

func (p *memoryPortal) upsertLocked(rec *models.AttendanceRecord) {
	p.clock = p.clock.Add(time.Second)
	rec.UpdatedAt = p.clock
	key := attendanceKey(rec.StudentID, rec.Date)
	if existing, ok := p.attendance[key]; ok {
		existing.Status = rec.Status
		existing.MarkedBy = rec.MarkedBy
		existing.UpdatedAt = rec.UpdatedAt
		*rec = *existing
		return
	}
	rec.ID = fmt.Sprintf("att-%d", len(p.attendance)+1)
	rec.CreatedAt = p.clock
	cp := *rec
	p.attendance[key] = &cp
}

func (p *memoryPortal) Mark(_ context.Context, rec *models.AttendanceRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failMark != nil {
		return p.failMark
	}
	if !p.isStudent(rec.StudentID) {
		return fmt.Errorf("mark attendance for %s: %w", rec.StudentID, repository.ErrStudentNotFound)
	}
	p.upsertLocked(rec)
	return nil
}

func (p *memoryPortal) MarkMany(_ context.Context, records []models.AttendanceRecord, atomic bool) ([]models.AttendanceConflict, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failMark != nil {
		return nil, p.failMark
	}
	if atomic {
		for _, rec := range records {
			if !p.isStudent(rec.StudentID) {
				return nil, fmt.Errorf("mark attendance for %s: %w", rec.StudentID, repository.ErrStudentNotFound)
			}
		}
		for i := range records {
			p.upsertLocked(&records[i])
		}
		return nil, nil
	}
	conflicts := make([]models.AttendanceConflict, 0)
	for i := range records {
		if !p.isStudent(records[i].StudentID) {
			conflicts = append(conflicts, models.AttendanceConflict{StudentID: records[i].StudentID, Reason: repository.ErrStudentNotFound.Error()})
			continue
		}
		p.upsertLocked(&records[i])
	}
	return conflicts, nil
}

func (p *memoryPortal) students() []*models.User {
	out := make([]*models.User, 0)
	for _, u := range p.users {
		if u.Role == models.RoleStudent {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (p *memoryPortal) Sheet(_ context.Context, date models.Date) ([]models.AttendanceSheetRow, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rows := make([]models.AttendanceSheetRow, 0)
	for _, s := range p.students() {
		row := models.AttendanceSheetRow{StudentID: s.ID, StudentName: s.Name, StudentIdentifier: s.StudentIdentifier}
		if rec, ok := p.attendance[attendanceKey(s.ID, date)]; ok {
			status := rec.Status
			row.Status = &status
			row.MarkedBy = rec.MarkedBy
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (p *memoryPortal) history(filter func(*models.AttendanceRecord) bool) []models.AttendanceHistoryRow {
	rows := make([]models.AttendanceHistoryRow, 0)
	for _, rec := range p.attendance {
		if !filter(rec) {
			continue
		}
		row := models.AttendanceHistoryRow{
			Date:        rec.Date,
			StudentID:   rec.StudentID,
			StudentName: p.users[rec.StudentID].Name,
			Status:      rec.Status,
			MarkedBy:    rec.MarkedBy,
		}
		if rec.MarkedBy != nil {
			if m, ok := p.users[*rec.MarkedBy]; ok {
				name := m.Name
				row.MarkedByName = &name
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date.Time) {
			return rows[i].Date.After(rows[j].Date.Time)
		}
		if rows[i].StudentName != rows[j].StudentName {
			return rows[i].StudentName < rows[j].StudentName
		}
		return rows[i].StudentID < rows[j].StudentID
	})
	return rows
}

func (p *memoryPortal) HistoryForStudent(_ context.Context, studentID string) ([]models.AttendanceHistoryRow, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.history(func(r *models.AttendanceRecord) bool { return r.StudentID == studentID }), nil
}

func (p *memoryPortal) HistoryAll(_ context.Context) ([]models.AttendanceHistoryRow, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.history(func(*models.AttendanceRecord) bool { return true }), nil
}

func (p *memoryPortal) StudentSummary(_ context.Context, studentID string) (*models.AttendanceSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	summary := &models.AttendanceSummary{}
	for _, rec := range p.attendance {
		if rec.StudentID != studentID {
			continue
		}
		if rec.Status == models.AttendanceStatusPresent {
			summary.Present++
		} else {
			summary.Absent++
		}
		summary.Total++
	}
	if summary.Total > 0 {
		summary.Percent = float64(summary.Present) / float64(summary.Total) * 100
	}
	return summary, nil
}

func (p *memoryPortal) CountMarkedOn(_ context.Context, date models.Date) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, rec := range p.attendance {
		if rec.Date.Equal(date.Time) {
			n++
		}
	}
	return n, nil
}

func (p *memoryPortal) record(studentID string, date models.Date) *models.AttendanceRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.attendance[attendanceKey(studentID, date)]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

func (p *memoryPortal) attendanceCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.attendance)
}

func claimsFor(id string, role models.UserRole) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: role, Name: id}
}

type recordingMetrics struct {
	marks       map[models.AttendanceStatus]int
	submissions map[string]int
	uploads     map[models.DocumentKind]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		marks:       map[models.AttendanceStatus]int{},
		submissions: map[string]int{},
		uploads:     map[models.DocumentKind]int{},
	}
}

func (m *recordingMetrics) RecordAttendanceMark(status models.AttendanceStatus) {
	m.marks[status]++
}

func (m *recordingMetrics) RecordAttendanceSubmission(mode models.BulkOperationMode, ok bool) {
	m.submissions[fmt.Sprintf("%s:%t", mode, ok)]++
}

func (m *recordingMetrics) RecordUpload(kind models.DocumentKind, _ int64) {
	m.uploads[kind]++
}
