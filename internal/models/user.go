package models

import "time"

// UserRole represents the available roles for the portal.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleTeacher UserRole = "teacher"
	RoleStudent UserRole = "student"
)

// Roles lists every known role in display order.
var Roles = []UserRole{RoleAdmin, RoleTeacher, RoleStudent}

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	default:
		return false
	}
}

// IsStaff reports whether the role may manage content and attendance.
func (r UserRole) IsStaff() bool {
	return r == RoleAdmin || r == RoleTeacher
}

// User represents an application user stored in the users table.
type User struct {
	ID                string    `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	Email             string    `db:"email" json:"email"`
	PasswordHash      string    `db:"password_hash" json:"-"`
	StudentIdentifier *string   `db:"student_identifier" json:"student_identifier,omitempty"`
	Role              UserRole  `db:"role" json:"role"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// Info strips credentials for responses.
func (u *User) Info() UserInfo {
	return UserInfo{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, StudentIdentifier: u.StudentIdentifier}
}

// RoleCount is one row of a users-per-role aggregate.
type RoleCount struct {
	Role  UserRole `db:"role" json:"role"`
	Count int      `db:"cnt" json:"count"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
