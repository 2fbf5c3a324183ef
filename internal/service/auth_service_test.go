package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/student-portal-api/internal/models"
	"github.com/noah-isme/student-portal-api/internal/repository"
	appErrors "github.com/noah-isme/student-portal-api/pkg/errors"
)

func newAuthFixture(t *testing.T) (*AuthService, *memoryPortal, *repository.MemorySessionRepository) {
	t.Helper()
	portal := newMemoryPortal()
	sessions := repository.NewMemorySessionRepository()
	svc := NewAuthService(portal, sessions, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "student-portal",
		DashboardBase:     "/api/v1/dashboard",
	})
	return svc, portal, sessions
}

func seedUser(t *testing.T, portal *memoryPortal, id, email, password string, role models.UserRole) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := portal.addUser(id, id, role)
	u.Email = email
	u.PasswordHash = string(hash)
}

func TestAuthRegisterStudent(t *testing.T) {
	svc, portal, _ := newAuthFixture(t)

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		Name:              "  Ani  ",
		Email:             "ANI@School.Test",
		Password:          "secret1",
		Role:              models.RoleStudent,
		StudentIdentifier: "NIS-001",
		IP:                "10.0.0.1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ani", info.Name)
	assert.Equal(t, "ani@school.test", info.Email)
	require.NotNil(t, info.StudentIdentifier)
	assert.Equal(t, "NIS-001", *info.StudentIdentifier)

	stored, err := portal.FindByID(context.Background(), info.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")))

	require.Len(t, portal.audits, 1)
	assert.Equal(t, models.AuditActionRegister, portal.audits[0].Action)
	assert.Equal(t, "10.0.0.1", portal.audits[0].IPAddress)
}

func TestAuthRegisterStudentIdentifierRule(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, models.RegisterRequest{Name: "Ani", Email: "ani@school.test", Password: "secret1", Role: models.RoleStudent})
	assertAppError(t, err, appErrors.ErrValidation)

	_, err = svc.Register(ctx, models.RegisterRequest{Name: "Tomi", Email: "tomi@school.test", Password: "secret1", Role: models.RoleTeacher, StudentIdentifier: "NIS-9"})
	assertAppError(t, err, appErrors.ErrValidation)

	_, err = svc.Register(ctx, models.RegisterRequest{Name: "Tomi", Email: "tomi@school.test", Password: "123", Role: models.RoleTeacher})
	assertAppError(t, err, appErrors.ErrValidation)

	_, err = svc.Register(ctx, models.RegisterRequest{Name: "Tomi", Email: "tomi@school.test", Password: "secret1", Role: "principal"})
	assertAppError(t, err, appErrors.ErrValidation)
}

func TestAuthRegisterDuplicateIsConflict(t *testing.T) {
	svc, portal, _ := newAuthFixture(t)
	portal.createErr = fmt.Errorf("create user: %w", &pq.Error{Code: "23505", Constraint: "users_email_key"})

	_, err := svc.Register(context.Background(), models.RegisterRequest{Name: "Tomi", Email: "tomi@school.test", Password: "secret1", Role: models.RoleTeacher})
	assertAppError(t, err, appErrors.ErrConflict)
	assert.Contains(t, err.Error(), "email already registered")

	portal.createErr = fmt.Errorf("create user: %w", &pq.Error{Code: "23505", Constraint: "users_student_identifier_key"})
	_, err = svc.Register(context.Background(), models.RegisterRequest{Name: "Ani", Email: "ani@school.test", Password: "secret1", Role: models.RoleStudent, StudentIdentifier: "NIS-1"})
	assertAppError(t, err, appErrors.ErrConflict)
	assert.Contains(t, err.Error(), "student identifier already registered")
}

func TestAuthLoginIssuesSessionBoundToken(t *testing.T) {
	svc, portal, _ := newAuthFixture(t)
	seedUser(t, portal, "teacher-1", "tomi@school.test", "secret1", models.RoleTeacher)
	ctx := context.Background()

	resp, err := svc.Login(ctx, models.LoginRequest{Email: "Tomi@School.test", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, "/api/v1/dashboard/teacher", resp.Dashboard)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := svc.Authenticate(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
	assert.NotEmpty(t, claims.SessionID())

	me, err := svc.Me(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, "tomi@school.test", me.Email)
}

func TestAuthDashboardPathFollowsBase(t *testing.T) {
	bare := NewAuthService(newMemoryPortal(), repository.NewMemorySessionRepository(), nil, nil, AuthConfig{AccessTokenSecret: "s"})
	assert.Equal(t, "/dashboard/student", bare.DashboardPath(models.RoleStudent))

	prefixed := NewAuthService(newMemoryPortal(), repository.NewMemorySessionRepository(), nil, nil, AuthConfig{AccessTokenSecret: "s", DashboardBase: "/portal/dashboard/"})
	assert.Equal(t, "/portal/dashboard/admin", prefixed.DashboardPath(models.RoleAdmin))
}

func TestAuthLoginRejectsBadCredentials(t *testing.T) {
	svc, portal, _ := newAuthFixture(t)
	seedUser(t, portal, "teacher-1", "tomi@school.test", "secret1", models.RoleTeacher)
	ctx := context.Background()

	_, err := svc.Login(ctx, models.LoginRequest{Email: "tomi@school.test", Password: "wrong"})
	assertAppError(t, err, appErrors.ErrInvalidCredentials)
	_, err = svc.Login(ctx, models.LoginRequest{Email: "nobody@school.test", Password: "secret1"})
	assertAppError(t, err, appErrors.ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "invalid credentials")
}

func TestAuthLogoutClosesSession(t *testing.T) {
	svc, portal, _ := newAuthFixture(t)
	seedUser(t, portal, "admin-1", "ada@school.test", "secret1", models.RoleAdmin)
	ctx := context.Background()

	resp, err := svc.Login(ctx, models.LoginRequest{Email: "ada@school.test", Password: "secret1"})
	require.NoError(t, err)
	claims, err := svc.Authenticate(ctx, resp.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, claims, models.RequestMeta{IP: "10.0.0.2"}))

	_, err = svc.Authenticate(ctx, resp.AccessToken)
	assertAppError(t, err, appErrors.ErrSessionMiss)

	actions := make([]string, 0, len(portal.audits))
	for _, a := range portal.audits {
		actions = append(actions, a.Action)
	}
	assert.Equal(t, []string{models.AuditActionLogin, models.AuditActionLogout}, actions)
}

func TestAuthRejectsForeignTokens(t *testing.T) {
	svc, portal, _ := newAuthFixture(t)
	seedUser(t, portal, "admin-1", "ada@school.test", "secret1", models.RoleAdmin)
	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ada@school.test", Password: "secret1"})
	require.NoError(t, err)

	other := NewAuthService(portal, repository.NewMemorySessionRepository(), nil, nil, AuthConfig{AccessTokenSecret: "other", AccessTokenExpiry: time.Hour})
	_, err = other.Authenticate(context.Background(), resp.AccessToken)
	assertAppError(t, err, appErrors.ErrUnauthorized)

	_, err = svc.Authenticate(context.Background(), "not-a-token")
	assertAppError(t, err, appErrors.ErrUnauthorized)
}

func TestAuthExpiredToken(t *testing.T) {
	svc, portal, _ := newAuthFixture(t)
	seedUser(t, portal, "admin-1", "ada@school.test", "secret1", models.RoleAdmin)
	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ada@school.test", Password: "secret1"})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.ValidateToken(resp.AccessToken)
	assertAppError(t, err, appErrors.ErrUnauthorized)
}
