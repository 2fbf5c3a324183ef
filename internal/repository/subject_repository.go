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
)

// SubjectRepository manages subject persistence.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs the repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns every subject ordered by name.
func (r *SubjectRepository) List(ctx context.Context) ([]models.Subject, error) {
	subjects := make([]models.Subject, 0)
	if err := r.db.SelectContext(ctx, &subjects, `SELECT id, name, created_at FROM subjects ORDER BY name ASC`); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// FindByID returns a subject or sql.ErrNoRows.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, r.db.Rebind(`SELECT id, name, created_at FROM subjects WHERE id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find subject: %w", err)
	}
	return &subject, nil
}

// Create inserts a subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.NamedExecContext(ctx, `INSERT INTO subjects (id, name, created_at) VALUES (:id, :name, :created_at)`, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}
