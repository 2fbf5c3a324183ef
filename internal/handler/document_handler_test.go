package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-portal-api/internal/dto"
	"github.com/noah-isme/student-portal-api/internal/middleware"
	"github.com/noah-isme/student-portal-api/internal/models"
	appErrors "github.com/noah-isme/student-portal-api/pkg/errors"
)

type fakeDocumentSrv struct {
	kind       models.DocumentKind
	lastReq    dto.CreateDocumentRequest
	lastUpload dto.DocumentUpload
	uploaded   []byte
	lastInline bool
	path       string
	err        error
}

func (f *fakeDocumentSrv) Kind() models.DocumentKind { return f.kind }

func (f *fakeDocumentSrv) List(_ context.Context, query dto.DocumentListQuery, _ *models.JWTClaims) ([]dto.DocumentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []dto.DocumentResponse{{Document: models.Document{ID: "d-1", Title: "Algebra", Standard: query.Standard}}}, nil
}

func (f *fakeDocumentSrv) Upload(_ context.Context, req dto.CreateDocumentRequest, upload dto.DocumentUpload, _ *models.JWTClaims) (*dto.DocumentResponse, error) {
	f.lastReq = req
	f.lastUpload = upload
	body, err := io.ReadAll(upload.Content)
	if err != nil {
		return nil, err
	}
	f.uploaded = body
	if f.err != nil {
		return nil, f.err
	}
	return &dto.DocumentResponse{Document: models.Document{ID: "d-9", Title: req.Title, OriginalName: upload.Filename}}, nil
}

func (f *fakeDocumentSrv) Get(_ context.Context, id string, _ *models.JWTClaims) (*dto.DocumentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dto.DocumentResponse{Document: models.Document{ID: id}}, nil
}

func (f *fakeDocumentSrv) Open(_ context.Context, id, token string, inline bool, _ *models.JWTClaims) (*dto.DocumentDownload, error) {
	f.lastInline = inline
	if f.err != nil {
		return nil, f.err
	}
	file, err := os.Open(f.path)
	if err != nil {
		return nil, err
	}
	doc := &models.Document{ID: id, OriginalName: "notes.pdf", MimeType: "application/pdf", UploadedAt: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	return &dto.DocumentDownload{Document: doc, Content: file, Inline: inline}, nil
}

func (f *fakeDocumentSrv) Delete(_ context.Context, id string, _ *models.JWTClaims) (*models.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Document{ID: id}, nil
}

func multipartBody(t *testing.T, fields map[string]string, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func TestDocumentHandlerLabelsFollowKind(t *testing.T) {
	assert.Equal(t, "Material", NewDocumentHandler(&fakeDocumentSrv{kind: models.DocumentKindMaterial}).label)
	assert.Equal(t, "Assignment", NewDocumentHandler(&fakeDocumentSrv{kind: models.DocumentKindAssignment}).label)
}

func TestDocumentHandlerUpload(t *testing.T) {
	srv := &fakeDocumentSrv{kind: models.DocumentKindAssignment}
	handler := NewDocumentHandler(srv)
	body, contentType := multipartBody(t, map[string]string{"title": "Essay", "standard": "9"}, "essay.docx", []byte("draft"))
	c, rec := newTestContext(http.MethodPost, "/assignments", teacher)
	c.Request.Body = io.NopCloser(body)
	c.Request.Header.Set("Content-Type", contentType)

	handler.Upload(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Essay", srv.lastReq.Title)
	require.NotNil(t, srv.lastReq.Standard)
	assert.Equal(t, 9, *srv.lastReq.Standard)
	assert.Equal(t, "essay.docx", srv.lastUpload.Filename)
	assert.Equal(t, int64(5), srv.lastUpload.Size)
	assert.Equal(t, []byte("draft"), srv.uploaded)
	assert.Equal(t, "d-9", c.GetString(middleware.AuditResourceKey))
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "Assignment uploaded!", envelope.Meta["message"])
}

func TestDocumentHandlerUploadRequiresFile(t *testing.T) {
	handler := NewDocumentHandler(&fakeDocumentSrv{kind: models.DocumentKindMaterial})
	body, contentType := multipartBody(t, map[string]string{"title": "Notes"}, "", nil)
	c, rec := newTestContext(http.MethodPost, "/materials", teacher)
	c.Request.Body = io.NopCloser(body)
	c.Request.Header.Set("Content-Type", contentType)

	handler.Upload(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "a file is required")
}

func TestDocumentHandlerUploadRequiresTitle(t *testing.T) {
	srv := &fakeDocumentSrv{kind: models.DocumentKindMaterial}
	handler := NewDocumentHandler(srv)
	body, contentType := multipartBody(t, map[string]string{"description": "no title"}, "notes.pdf", []byte("%PDF"))
	c, rec := newTestContext(http.MethodPost, "/materials", teacher)
	c.Request.Body = io.NopCloser(body)
	c.Request.Header.Set("Content-Type", contentType)

	handler.Upload(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, srv.uploaded)
}

func TestDocumentHandlerListPassesFilter(t *testing.T) {
	handler := NewDocumentHandler(&fakeDocumentSrv{kind: models.DocumentKindMaterial})
	c, rec := newTestContext(http.MethodGet, "/materials?standard=7", teacher)

	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"standard":7`)
}

func TestDocumentHandlerViewAndDownload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 body"), 0o600))
	srv := &fakeDocumentSrv{kind: models.DocumentKindMaterial, path: path}
	handler := NewDocumentHandler(srv)

	c, rec := newTestContext(http.MethodGet, "/materials/d-1/view?token=abc", teacher)
	c.Params = append(c.Params, ginParam("id", "d-1"))
	handler.View(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, srv.lastInline)
	assert.Equal(t, `inline; filename="notes.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4 body", rec.Body.String())

	c, rec = newTestContext(http.MethodGet, "/materials/d-1/download?token=abc", teacher)
	c.Params = append(c.Params, ginParam("id", "d-1"))
	handler.Download(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, srv.lastInline)
	assert.Equal(t, `attachment; filename="notes.pdf"`, rec.Header().Get("Content-Disposition"))
}

func TestDocumentHandlerRejectsBadToken(t *testing.T) {
	handler := NewDocumentHandler(&fakeDocumentSrv{kind: models.DocumentKindMaterial, err: appErrors.Clone(appErrors.ErrForbidden, "link expired")})
	c, rec := newTestContext(http.MethodGet, "/materials/d-1/download?token=old", teacher)
	c.Params = append(c.Params, ginParam("id", "d-1"))

	handler.Download(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "link expired")
}

func TestDocumentHandlerDelete(t *testing.T) {
	handler := NewDocumentHandler(&fakeDocumentSrv{kind: models.DocumentKindMaterial})
	c, rec := newTestContext(http.MethodDelete, "/materials/d-3", teacher)
	c.Params = append(c.Params, ginParam("id", "d-3"))

	handler.Delete(c)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "d-3", envelope.Data["id"])
	assert.Equal(t, "Material deleted!", envelope.Meta["message"])
}
