package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/student-portal-api/internal/models"
)

// DocumentRepository stores one document collection (materials or assignments).
type DocumentRepository struct {
	db    *sqlx.DB
	kind  models.DocumentKind
	table string
}

// NewDocumentRepository binds the repository to the table backing kind.
func NewDocumentRepository(db *sqlx.DB, kind models.DocumentKind) *DocumentRepository {
	return &DocumentRepository{db: db, kind: kind, table: kind.Collection()}
}

func (r *DocumentRepository) selectClause() string {
	return `SELECT d.id, d.subject_id, s.name AS subject_name, d.standard, d.title, d.description, d.filename,
d.original_name, d.mime_type, d.size_bytes, d.uploaded_by, u.name AS uploader_name, d.uploaded_at
FROM ` + r.table + ` d
LEFT JOIN subjects s ON s.id = d.subject_id
LEFT JOIN users u ON u.id = d.uploaded_by`
}

// List returns documents newest first, optionally narrowed by subject and standard.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.SubjectID != "" {
		where = append(where, "d.subject_id = ?")
		args = append(args, filter.SubjectID)
	}
	if filter.Standard != nil {
		where = append(where, "d.standard = ?")
		args = append(args, *filter.Standard)
	}
	query := r.selectClause() + "\nWHERE " + strings.Join(where, " AND ") + "\nORDER BY d.uploaded_at DESC, d.id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	docs := make([]models.Document, 0)
	if err := r.db.SelectContext(ctx, &docs, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", r.table, err)
	}
	for i := range docs {
		docs[i].Kind = r.kind
	}
	return docs, nil
}

// GetByID returns a document or sql.ErrNoRows.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, r.db.Rebind(r.selectClause()+"\nWHERE d.id = ?"), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get %s: %w", r.table, err)
	}
	doc.Kind = r.kind
	return &doc, nil
}

// Create inserts the document row.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	doc.Kind = r.kind
	query := `INSERT INTO ` + r.table + ` (id, subject_id, standard, title, description, filename, original_name, mime_type, size_bytes, uploaded_by, uploaded_at)
VALUES (:id, :subject_id, :standard, :title, :description, :filename, :original_name, :mime_type, :size_bytes, :uploaded_by, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create %s: %w", r.table, err)
	}
	return nil
}

// Delete removes the row. A missing row yields sql.ErrNoRows.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM `+r.table+` WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", r.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s rows affected: %w", r.table, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Count returns the number of stored documents.
func (r *DocumentRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM `+r.table); err != nil {
		return 0, fmt.Errorf("count %s: %w", r.table, err)
	}
	return total, nil
}
