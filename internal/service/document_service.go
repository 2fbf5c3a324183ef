package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/student-portal-api/internal/dto"
	"github.com/noah-isme/student-portal-api/internal/models"
	"github.com/noah-isme/student-portal-api/internal/policy"
	"github.com/noah-isme/student-portal-api/pkg/database"
	appErrors "github.com/noah-isme/student-portal-api/pkg/errors"
	"github.com/noah-isme/student-portal-api/pkg/jobs"
	"github.com/noah-isme/student-portal-api/pkg/storage"
)

// JobTypeFileCleanup removes a stored file after its row is gone.
const JobTypeFileCleanup = "file_cleanup"

type documentRepository interface {
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error)
	GetByID(ctx context.Context, id string) (*models.Document, error)
	Create(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type subjectFinder interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type fileStore interface {
	SaveStream(name string, r io.Reader) (int64, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
}

type downloadSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (resourceID, relPath string, expiresAt time.Time, err error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type uploadMetrics interface {
	RecordUpload(kind models.DocumentKind, size int64)
}

// DocumentConfig bounds uploads and sets the prefix used in signed links.
type DocumentConfig struct {
	MaxFileSizeBytes  int64
	AllowedExtensions []string
	URLPrefix         string
}

// DocumentService manages one kind of uploaded document.
type DocumentService struct {
	kind      models.DocumentKind
	repo      documentRepository
	subjects  subjectFinder
	files     fileStore
	signer    downloadSigner
	cleanup   jobEnqueuer
	validator *validator.Validate
	logger    *zap.Logger
	metrics   uploadMetrics
	config    DocumentConfig
	allowed   map[string]struct{}
	now       func() time.Time
}

// NewDocumentService wires a document service for kind.
func NewDocumentService(kind models.DocumentKind, repo documentRepository, subjects subjectFinder, files fileStore, signer downloadSigner, cleanup jobEnqueuer, validate *validator.Validate, logger *zap.Logger, metrics uploadMetrics, cfg DocumentConfig) *DocumentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 10 << 20
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = []string{"pdf", "docx", "pptx", "xlsx", "csv"}
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))] = struct{}{}
	}
	return &DocumentService{
		kind:      kind,
		repo:      repo,
		subjects:  subjects,
		files:     files,
		signer:    signer,
		cleanup:   cleanup,
		validator: validate,
		logger:    logger.With(zap.String("kind", string(kind))),
		metrics:   metrics,
		config:    cfg,
		allowed:   allowed,
		now:       time.Now,
	}
}

// Kind returns the document kind served.
func (s *DocumentService) Kind() models.DocumentKind {
	return s.kind
}

// List returns documents newest first, each with fresh signed links.
func (s *DocumentService) List(ctx context.Context, query dto.DocumentListQuery, claims *models.JWTClaims) ([]dto.DocumentResponse, error) {
	if err := authorize(claims, policy.ViewAction(s.kind)); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter")
	}
	docs, err := s.repo.List(ctx, models.DocumentFilter{SubjectID: strings.TrimSpace(query.SubjectID), Standard: query.Standard})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	out := make([]dto.DocumentResponse, 0, len(docs))
	for i := range docs {
		resp, err := s.withLinks(&docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *resp)
	}
	return out, nil
}

// Recent returns the newest documents without links, for dashboards.
func (s *DocumentService) Recent(ctx context.Context, limit int) ([]models.Document, error) {
	docs, err := s.repo.List(ctx, models.DocumentFilter{Limit: limit})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, nil
}

// Count returns the number of stored documents.
func (s *DocumentService) Count(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count documents")
	}
	return n, nil
}

// Upload stores the file and records it. The file is removed again when the row cannot be written.
func (s *DocumentService) Upload(ctx context.Context, req dto.CreateDocumentRequest, upload dto.DocumentUpload, claims *models.JWTClaims) (*dto.DocumentResponse, error) {
	if err := authorize(claims, policy.MutateAction(s.kind)); err != nil {
		return nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.SubjectID = strings.TrimSpace(req.SubjectID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}
	if upload.Content == nil || strings.TrimSpace(upload.Filename) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a file is required")
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(upload.Filename), "."))
	if _, ok := s.allowed[ext]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %q is not allowed", ext))
	}
	if upload.Size > s.config.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum upload size")
	}

	var subjectID *string
	if req.SubjectID != "" {
		if _, err := s.subjects.FindByID(ctx, req.SubjectID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "unknown subject")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
		}
		subjectID = &req.SubjectID
	}

	now := s.now().UTC()
	stored := path.Join(s.kind.Collection(), StoredFilename(now, upload.Filename))
	written, err := s.files.SaveStream(stored, io.LimitReader(upload.Content, s.config.MaxFileSizeBytes+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}
	if written > s.config.MaxFileSizeBytes {
		s.removeFile(stored)
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum upload size")
	}

	uploader := claims.UserID
	doc := &models.Document{
		ID:           uuid.NewString(),
		Kind:         s.kind,
		SubjectID:    subjectID,
		Standard:     req.Standard,
		Title:        req.Title,
		Filename:     stored,
		OriginalName: filepath.Base(upload.Filename),
		MimeType:     detectMimeType(upload.MimeType, ext),
		SizeBytes:    written,
		UploadedBy:   &uploader,
		UploadedAt:   now,
	}
	if req.Description != "" {
		doc.Description = &req.Description
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		s.removeFile(stored)
		if database.IsForeignKeyViolation(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unknown subject")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save document")
	}

	if s.metrics != nil {
		s.metrics.RecordUpload(s.kind, written)
	}
	s.logger.Info("document uploaded",
		zap.String("document_id", doc.ID),
		zap.String("filename", stored),
		zap.Int64("size_bytes", written),
		zap.String("uploaded_by", uploader))
	return s.withLinks(doc)
}

// Get returns one document with signed view and download links.
func (s *DocumentService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*dto.DocumentResponse, error) {
	if err := authorize(claims, policy.ViewAction(s.kind)); err != nil {
		return nil, err
	}
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withLinks(doc)
}

// Open checks the signed token and opens the stored file for streaming.
func (s *DocumentService) Open(ctx context.Context, id, token string, inline bool, claims *models.JWTClaims) (*dto.DocumentDownload, error) {
	if err := authorize(claims, policy.ViewAction(s.kind)); err != nil {
		return nil, err
	}
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	resourceID, relPath, _, err := s.signer.Parse(token, false)
	switch {
	case errors.Is(err, storage.ErrTokenExpired):
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
	case err != nil:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	case resourceID != s.resourceID(doc.ID) || relPath != doc.Filename:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download link does not match document")
	}

	file, err := s.files.Open(doc.Filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return &dto.DocumentDownload{Document: doc, Content: file, Inline: inline}, nil
}

// Delete removes the row and schedules removal of the stored file.
func (s *DocumentService) Delete(ctx context.Context, id string, claims *models.JWTClaims) (*models.Document, error) {
	if err := authorize(claims, policy.MutateAction(s.kind)); err != nil {
		return nil, err
	}
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, doc.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}

	job := jobs.Job{ID: doc.ID, Type: JobTypeFileCleanup, Payload: doc.Filename}
	if s.cleanup == nil {
		s.removeFile(doc.Filename)
	} else if err := s.cleanup.Enqueue(job); err != nil {
		s.logger.Warn("file cleanup not queued, removing inline", zap.String("filename", doc.Filename), zap.Error(err))
		s.removeFile(doc.Filename)
	}
	s.logger.Info("document deleted", zap.String("document_id", doc.ID), zap.String("deleted_by", claims.UserID))
	return doc, nil
}

func (s *DocumentService) load(ctx context.Context, id string) (*models.Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	doc.Kind = s.kind
	return doc, nil
}

func (s *DocumentService) withLinks(doc *models.Document) (*dto.DocumentResponse, error) {
	token, expiresAt, err := s.signer.Generate(s.resourceID(doc.ID), doc.Filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	base := fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.config.URLPrefix, "/"), s.kind.Collection(), doc.ID)
	return &dto.DocumentResponse{
		Document:     *doc,
		ViewURL:      base + "/view?token=" + token,
		DownloadURL:  base + "/download?token=" + token,
		URLExpiresAt: expiresAt,
	}, nil
}

func (s *DocumentService) resourceID(id string) string {
	return s.kind.Collection() + ":" + id
}

func (s *DocumentService) removeFile(name string) {
	if err := s.files.Delete(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove stored file", zap.String("filename", name), zap.Error(err))
	}
}

// StoredFilename builds YYYYMMDDHHMMSS_<8 hex>_<sanitized original>.
func StoredFilename(at time.Time, original string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%s", at.UTC().Format("20060102150405"), suffix, SanitizeFilename(original))
}

// SanitizeFilename keeps the base name and replaces anything outside [A-Za-z0-9._-] with '_'.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if len(out) > 100 {
		out = out[len(out)-100:]
	}
	if out == "" {
		return "file"
	}
	return out
}

func detectMimeType(declared, ext string) string {
	if declared = strings.TrimSpace(declared); declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if byExt := mime.TypeByExtension("." + ext); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
