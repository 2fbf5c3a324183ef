package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Name              string   `json:"name" form:"name" validate:"required,max=150"`
	Email             string   `json:"email" form:"email" validate:"required,email,max=255"`
	Password          string   `json:"password" form:"password" validate:"required,min=6,max=72"`
	Role              UserRole `json:"role" form:"role" validate:"required,user_role"`
	StudentIdentifier string   `json:"student_identifier" form:"student_identifier" validate:"max=64"`
	IP                string   `json:"-" form:"-"`
	UserAgent         string   `json:"-" form:"-"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" form:"email" validate:"required,email"`
	Password  string `json:"password" form:"password" validate:"required"`
	IP        string `json:"-" form:"-"`
	UserAgent string `json:"-" form:"-"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
	Dashboard   string    `json:"dashboard"`
	User        UserInfo  `json:"user"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	Role              UserRole `json:"role"`
	StudentIdentifier *string  `json:"student_identifier,omitempty"`
}

// JWTClaims represents the access token payload. RegisteredClaims.ID carries the session id.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	jwt.RegisteredClaims
}

// SessionID returns the server-side session bound to the token.
func (c *JWTClaims) SessionID() string {
	if c == nil {
		return ""
	}
	return c.ID
}

// Session is the server-side record proving a token has not been logged out.
type Session struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	Role     UserRole  `json:"role"`
	IssuedAt time.Time `json:"issued_at"`
}

// RequestMeta carries client details recorded in the audit trail.
type RequestMeta struct {
	IP        string
	UserAgent string
}
