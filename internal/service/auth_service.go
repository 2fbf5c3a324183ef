package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/student-portal-api/internal/models"
	"github.com/noah-isme/student-portal-api/internal/repository"
	"github.com/noah-isme/student-portal-api/pkg/database"
	appErrors "github.com/noah-isme/student-portal-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type sessionStore interface {
	Create(ctx context.Context, session models.Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
	// DashboardBase is the public path of the dashboard group, e.g. /api/v1/dashboard.
	DashboardBase string
}

// AuthService provides registration, login and session checks.
type AuthService struct {
	repo      authUserRepository
	sessions  sessionStore
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, sessions sessionStore, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 24 * time.Hour
	}
	if config.DashboardBase == "" {
		config.DashboardBase = "/dashboard"
	}
	config.DashboardBase = strings.TrimRight(config.DashboardBase, "/")
	registerPortalValidators(validate)
	return &AuthService{repo: repo, sessions: sessions, validator: validate, logger: logger, config: config, now: time.Now}
}

// Register creates an account. Students must carry a student identifier, other roles must not.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.UserInfo, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.StudentIdentifier = strings.TrimSpace(req.StudentIdentifier)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	user := &models.User{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     req.Email,
		Role:      req.Role,
		CreatedAt: s.now().UTC(),
	}
	switch {
	case req.Role == models.RoleStudent && req.StudentIdentifier == "":
		return nil, appErrors.Clone(appErrors.ErrValidation, "student identifier is required for students")
	case req.Role != models.RoleStudent && req.StudentIdentifier != "":
		return nil, appErrors.Clone(appErrors.ErrValidation, "student identifier is only allowed for students")
	case req.Role == models.RoleStudent:
		identifier := req.StudentIdentifier
		user.StudentIdentifier = &identifier
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	user.PasswordHash = string(hash)

	if err := s.repo.Create(ctx, user); err != nil {
		if database.IsUniqueViolation(err) {
			msg := "email already registered"
			if strings.Contains(database.ConstraintName(err), "student_identifier") || strings.Contains(err.Error(), "student_identifier") {
				msg = "student identifier already registered"
			}
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, msg)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.audit(ctx, &user.ID, models.AuditActionRegister, fmt.Sprintf(`{"role":%q}`, user.Role), models.RequestMeta{IP: req.IP, UserAgent: req.UserAgent})
	info := user.Info()
	return &info, nil
}

// Login verifies credentials, opens a session and issues an access token bound to it.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid credentials")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid credentials")
	}

	issuedAt := s.now().UTC()
	session := models.Session{ID: uuid.NewString(), UserID: user.ID, Role: user.Role, IssuedAt: issuedAt}
	if err := s.sessions.Create(ctx, session, s.config.AccessTokenExpiry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open session")
	}

	token, expiresAt, err := s.generateAccessToken(user, session.ID, issuedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	s.audit(ctx, &user.ID, models.AuditActionLogin, `{"status":"success"}`, models.RequestMeta{IP: req.IP, UserAgent: req.UserAgent})

	return &models.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		ExpiresAt:   expiresAt,
		Dashboard:   s.DashboardPath(user.Role),
		User:        user.Info(),
	}, nil
}

// Logout clears the caller's session. The token stops authenticating immediately.
func (s *AuthService) Logout(ctx context.Context, claims *models.JWTClaims, meta models.RequestMeta) error {
	if claims == nil || claims.SessionID() == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "login required")
	}
	if err := s.sessions.Delete(ctx, claims.SessionID()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close session")
	}
	s.audit(ctx, &claims.UserID, models.AuditActionLogout, `{"status":"logout"}`, meta)
	return nil
}

// Me returns the caller's profile.
func (s *AuthService) Me(ctx context.Context, claims *models.JWTClaims) (*models.UserInfo, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "login required")
	}
	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	info := user.Info()
	return &info, nil
}

// Authenticate validates a bearer token and checks that its session is still open.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.SessionID() == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token is not bound to a session")
	}
	session, err := s.sessions.Get(ctx, claims.SessionID())
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, appErrors.Clone(appErrors.ErrSessionMiss, "session expired, please log in again")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.UserID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session does not match token")
	}
	return claims, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithTimeFunc(s.now)}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || !claims.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// DashboardPath is the dashboard a role lands on after login.
func (s *AuthService) DashboardPath(role models.UserRole) string {
	return s.config.DashboardBase + "/" + string(role)
}

func (s *AuthService) generateAccessToken(user *models.User, sessionID string, issuedAt time.Time) (string, time.Time, error) {
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		UserID: user.ID,
		Role:   user.Role,
		Name:   user.Name,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *AuthService) audit(ctx context.Context, userID *string, action, values string, meta models.RequestMeta) {
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   "auth",
		ResourceID: userID,
		NewValues:  &values,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
