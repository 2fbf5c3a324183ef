package dto

import (
	"io"
	"time"

	"github.com/noah-isme/student-portal-api/internal/models"
)

// CreateDocumentRequest is the metadata part of an upload form.
type CreateDocumentRequest struct {
	Title       string `form:"title" json:"title" validate:"required,max=200"`
	Description string `form:"description" json:"description" validate:"max=2000"`
	SubjectID   string `form:"subject_id" json:"subject_id" validate:"max=36"`
	Standard    *int   `form:"standard" json:"standard" validate:"omitempty,min=1,max=12"`
}

// DocumentListQuery narrows listings.
type DocumentListQuery struct {
	SubjectID string `form:"subject_id" validate:"max=36"`
	Standard  *int   `form:"standard" validate:"omitempty,min=1,max=12"`
}

// DocumentUpload carries the uploaded file.
type DocumentUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.Reader
}

// DocumentResponse adds signed links to a document.
type DocumentResponse struct {
	models.Document
	ViewURL      string    `json:"view_url"`
	DownloadURL  string    `json:"download_url"`
	URLExpiresAt time.Time `json:"url_expires_at"`
}

// DocumentDownload is an opened stored file ready to stream.
type DocumentDownload struct {
	Document *models.Document
	Content  io.ReadSeekCloser
	Inline   bool
}
