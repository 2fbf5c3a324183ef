package models

import "time"

// DocumentKind distinguishes the two document collections.
type DocumentKind string

const (
	DocumentKindMaterial   DocumentKind = "material"
	DocumentKindAssignment DocumentKind = "assignment"
)

// Valid reports whether k is a known kind.
func (k DocumentKind) Valid() bool {
	return k == DocumentKindMaterial || k == DocumentKindAssignment
}

// Collection is the table name and storage sub-directory for the kind.
func (k DocumentKind) Collection() string {
	switch k {
	case DocumentKindAssignment:
		return "assignments"
	default:
		return "materials"
	}
}

// Document is an uploaded study material or assignment.
type Document struct {
	ID           string       `db:"id" json:"id"`
	Kind         DocumentKind `db:"-" json:"kind"`
	SubjectID    *string      `db:"subject_id" json:"subject_id,omitempty"`
	SubjectName  *string      `db:"subject_name" json:"subject_name,omitempty"`
	Standard     *int         `db:"standard" json:"standard,omitempty"`
	Title        string       `db:"title" json:"title"`
	Description  *string      `db:"description" json:"description,omitempty"`
	Filename     string       `db:"filename" json:"-"`
	OriginalName string       `db:"original_name" json:"original_name"`
	MimeType     string       `db:"mime_type" json:"mime_type"`
	SizeBytes    int64        `db:"size_bytes" json:"size_bytes"`
	UploadedBy   *string      `db:"uploaded_by" json:"uploaded_by,omitempty"`
	UploaderName *string      `db:"uploader_name" json:"uploader_name,omitempty"`
	UploadedAt   time.Time    `db:"uploaded_at" json:"uploaded_at"`
}

// DocumentFilter narrows document listings.
type DocumentFilter struct {
	SubjectID string
	Standard  *int
	Limit     int
}
