package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-portal-api/internal/models"
	appErrors "github.com/noah-isme/student-portal-api/pkg/errors"
)

type fakeSubjectRepo struct {
	subjects  []models.Subject
	createErr error
}

func (f *fakeSubjectRepo) List(context.Context) ([]models.Subject, error) {
	return f.subjects, nil
}

func (f *fakeSubjectRepo) FindByID(_ context.Context, id string) (*models.Subject, error) {
	for i := range f.subjects {
		if f.subjects[i].ID == id {
			return &f.subjects[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSubjectRepo) Create(_ context.Context, subject *models.Subject) error {
	if f.createErr != nil {
		return f.createErr
	}
	subject.ID = fmt.Sprintf("subj-%d", len(f.subjects)+1)
	f.subjects = append(f.subjects, *subject)
	return nil
}

func TestSubjectCreateRequiresStaff(t *testing.T) {
	repo := &fakeSubjectRepo{}
	svc := NewSubjectService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, models.CreateSubjectRequest{Name: "Physics"}, claimsFor("s-1", models.RoleStudent))
	assertAppError(t, err, appErrors.ErrForbidden)

	subject, err := svc.Create(ctx, models.CreateSubjectRequest{Name: "  Physics "}, teacherClaims)
	require.NoError(t, err)
	assert.Equal(t, "Physics", subject.Name)

	list, err := svc.List(ctx, claimsFor("s-1", models.RoleStudent))
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.List(ctx, nil)
	assertAppError(t, err, appErrors.ErrUnauthorized)
}

func TestSubjectCreateValidationAndConflict(t *testing.T) {
	repo := &fakeSubjectRepo{}
	svc := NewSubjectService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, models.CreateSubjectRequest{Name: "   "}, adminClaims)
	assertAppError(t, err, appErrors.ErrValidation)

	repo.createErr = fmt.Errorf("create subject: %w", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	_, err = svc.Create(ctx, models.CreateSubjectRequest{Name: "Physics"}, adminClaims)
	assertAppError(t, err, appErrors.ErrConflict)
}

func TestSubjectGetNotFound(t *testing.T) {
	svc := NewSubjectService(&fakeSubjectRepo{}, nil, nil)
	_, err := svc.Get(context.Background(), "missing")
	assertAppError(t, err, appErrors.ErrNotFound)
}
