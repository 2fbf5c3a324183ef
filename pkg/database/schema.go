package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// dialect holds the column types that differ between backends.
type dialect struct {
	timestamp string
	suffix    string
}

var dialects = map[string]dialect{
	"postgres": {timestamp: "TIMESTAMPTZ", suffix: ""},
	"mysql":    {timestamp: "DATETIME(6)", suffix: " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"},
}

// documentTables share one layout.
var documentTables = []string{"materials", "assignments"}

// SchemaStatements returns the bootstrap DDL for the named driver.
func SchemaStatements(driver string) ([]string, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	ts := d.timestamp

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(36) PRIMARY KEY,
    name VARCHAR(150) NOT NULL,
    email VARCHAR(255) NOT NULL UNIQUE,
    password_hash VARCHAR(255) NOT NULL,
    student_identifier VARCHAR(64) NULL UNIQUE,
    role VARCHAR(16) NOT NULL CHECK (role IN ('admin', 'teacher', 'student')),
    created_at ` + ts + ` NOT NULL
)` + d.suffix,
		`CREATE TABLE IF NOT EXISTS subjects (
    id VARCHAR(36) PRIMARY KEY,
    name VARCHAR(100) NOT NULL UNIQUE,
    created_at ` + ts + ` NOT NULL
)` + d.suffix,
		`CREATE TABLE IF NOT EXISTS attendance (
    id VARCHAR(36) PRIMARY KEY,
    student_id VARCHAR(36) NOT NULL,
    date DATE NOT NULL,
    status VARCHAR(16) NOT NULL CHECK (status IN ('present', 'absent')),
    marked_by VARCHAR(36) NULL,
    created_at ` + ts + ` NOT NULL,
    updated_at ` + ts + ` NOT NULL,
    CONSTRAINT uq_attendance_student_date UNIQUE (student_id, date),
    CONSTRAINT fk_attendance_student FOREIGN KEY (student_id) REFERENCES users(id) ON DELETE CASCADE,
    CONSTRAINT fk_attendance_marker FOREIGN KEY (marked_by) REFERENCES users(id) ON DELETE SET NULL
)` + d.suffix,
	}

	for _, table := range documentTables {
		stmts = append(stmts, `CREATE TABLE IF NOT EXISTS `+table+` (
    id VARCHAR(36) PRIMARY KEY,
    subject_id VARCHAR(36) NULL,
    standard INT NULL,
    title VARCHAR(200) NOT NULL,
    description TEXT NULL,
    filename VARCHAR(255) NOT NULL,
    original_name VARCHAR(255) NOT NULL,
    mime_type VARCHAR(127) NOT NULL,
    size_bytes BIGINT NOT NULL,
    uploaded_by VARCHAR(36) NULL,
    uploaded_at `+ts+` NOT NULL,
    CONSTRAINT fk_`+table+`_subject FOREIGN KEY (subject_id) REFERENCES subjects(id) ON DELETE SET NULL,
    CONSTRAINT fk_`+table+`_uploader FOREIGN KEY (uploaded_by) REFERENCES users(id) ON DELETE SET NULL
)`+d.suffix)
	}

	stmts = append(stmts, `CREATE TABLE IF NOT EXISTS counselor_messages (
    id VARCHAR(36) PRIMARY KEY,
    sender_id VARCHAR(36) NULL,
    name VARCHAR(150) NOT NULL,
    message TEXT NOT NULL,
    created_at `+ts+` NOT NULL,
    CONSTRAINT fk_counselor_messages_sender FOREIGN KEY (sender_id) REFERENCES users(id) ON DELETE SET NULL
)`+d.suffix)

	stmts = append(stmts, `CREATE TABLE IF NOT EXISTS audit_logs (
    id VARCHAR(36) PRIMARY KEY,
    user_id VARCHAR(36) NULL,
    action VARCHAR(64) NOT NULL,
    resource VARCHAR(64) NOT NULL,
    resource_id VARCHAR(64) NULL,
    new_values TEXT NULL,
    ip_address VARCHAR(64) NOT NULL,
    user_agent VARCHAR(255) NOT NULL,
    created_at `+ts+` NOT NULL
)`+d.suffix)

	return stmts, nil
}

// EnsureSchema creates missing tables. Existing tables are left as they are.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	stmts, err := SchemaStatements(db.DriverName())
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema %s: %w", tableName(stmt), err)
		}
	}
	return nil
}

func tableName(stmt string) string {
	rest := strings.TrimPrefix(stmt, "CREATE TABLE IF NOT EXISTS ")
	if idx := strings.IndexAny(rest, " ("); idx > 0 {
		return rest[:idx]
	}
	return rest
}
