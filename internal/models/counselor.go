package models

import "time"

// CounselorMessage is a note left for the school counselor.
type CounselorMessage struct {
	ID        string    `db:"id" json:"id"`
	SenderID  *string   `db:"sender_id" json:"sender_id,omitempty"`
	Name      string    `db:"name" json:"name"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CounselorMessageFilter pages through the counselor inbox, newest first.
type CounselorMessageFilter struct {
	Page     int
	PageSize int
}

// SendCounselorMessageRequest is the payload of the counselor form. Name defaults to the
// sender's account name.
type SendCounselorMessageRequest struct {
	Name    string `json:"name" form:"name" validate:"max=150"`
	Message string `json:"message" form:"message" validate:"required,max=2000"`
}
