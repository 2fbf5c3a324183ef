package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/student-portal-api/internal/models"
)

// CounselorRepository stores messages left for the counselor.
type CounselorRepository struct {
	db *sqlx.DB
}

// NewCounselorRepository creates the repository.
func NewCounselorRepository(db *sqlx.DB) *CounselorRepository {
	return &CounselorRepository{db: db}
}

// List returns one page of messages, newest first, with the total count.
func (r *CounselorRepository) List(ctx context.Context, filter models.CounselorMessageFilter) ([]models.CounselorMessage, int, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, sender_id, name, message, created_at
FROM counselor_messages
ORDER BY created_at DESC, id DESC
LIMIT %d OFFSET %d`, size, offset)
	messages := make([]models.CounselorMessage, 0)
	if err := r.db.SelectContext(ctx, &messages, query); err != nil {
		return nil, 0, fmt.Errorf("list counselor messages: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM counselor_messages`); err != nil {
		return nil, 0, fmt.Errorf("count counselor messages: %w", err)
	}
	return messages, total, nil
}

// Create inserts a message.
func (r *CounselorRepository) Create(ctx context.Context, message *models.CounselorMessage) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO counselor_messages (id, sender_id, name, message, created_at)
VALUES (:id, :sender_id, :name, :message, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, message); err != nil {
		return fmt.Errorf("create counselor message: %w", err)
	}
	return nil
}
