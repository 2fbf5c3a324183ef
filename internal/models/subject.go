package models

import "time"

// Subject groups documents by course.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CreateSubjectRequest is the payload for adding a subject.
type CreateSubjectRequest struct {
	Name string `json:"name" form:"name" validate:"required,max=100"`
}
