package handler

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-portal-api/internal/dto"
	"github.com/noah-isme/student-portal-api/internal/middleware"
	"github.com/noah-isme/student-portal-api/internal/models"
	appErrors "github.com/noah-isme/student-portal-api/pkg/errors"
	"github.com/noah-isme/student-portal-api/pkg/response"
)

type documentService interface {
	Kind() models.DocumentKind
	List(ctx context.Context, query dto.DocumentListQuery, claims *models.JWTClaims) ([]dto.DocumentResponse, error)
	Upload(ctx context.Context, req dto.CreateDocumentRequest, upload dto.DocumentUpload, claims *models.JWTClaims) (*dto.DocumentResponse, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*dto.DocumentResponse, error)
	Open(ctx context.Context, id, token string, inline bool, claims *models.JWTClaims) (*dto.DocumentDownload, error)
	Delete(ctx context.Context, id string, claims *models.JWTClaims) (*models.Document, error)
}

// DocumentHandler serves one document collection: materials or assignments.
type DocumentHandler struct {
	service documentService
	label   string
}

// NewDocumentHandler creates a handler for the service's document kind.
func NewDocumentHandler(svc documentService) *DocumentHandler {
	label := "Material"
	if svc.Kind() == models.DocumentKindAssignment {
		label = "Assignment"
	}
	return &DocumentHandler{service: svc, label: label}
}

// List godoc
// @Summary List documents
// @Description Lists study materials or assignments, newest first
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param subject_id query string false "Subject filter"
// @Param standard query int false "Grade filter (1-12)"
// @Success 200 {object} response.Envelope
// @Router /materials [get]
// @Router /assignments [get]
func (h *DocumentHandler) List(c *gin.Context) {
	var query dto.DocumentListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid filter"))
		return
	}
	docs, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// Upload godoc
// @Summary Upload document
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param subject_id formData string false "Subject"
// @Param standard formData int false "Grade (1-12)"
// @Param file formData file true "Document"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /materials [post]
// @Router /assignments [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	var req dto.CreateDocumentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload form"))
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "a file is required"))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload form"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close()

	doc, err := h.service.Upload(c.Request.Context(), req, uploadFrom(header, file), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.AuditResourceKey, doc.ID)
	response.Created(c, doc, response.Message(h.label+" uploaded!"))
}

// Get godoc
// @Summary Document details
// @Description Returns metadata with signed view and download links
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /materials/{id} [get]
// @Router /assignments/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// View godoc
// @Summary View document inline
// @Tags Documents
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Param token query string true "Signed token"
// @Success 200
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /materials/{id}/view [get]
// @Router /assignments/{id}/view [get]
func (h *DocumentHandler) View(c *gin.Context) {
	h.serve(c, true)
}

// Download godoc
// @Summary Download document
// @Tags Documents
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Param token query string true "Signed token"
// @Success 200
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /materials/{id}/download [get]
// @Router /assignments/{id}/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	h.serve(c, false)
}

func (h *DocumentHandler) serve(c *gin.Context, inline bool) {
	dl, err := h.service.Open(c.Request.Context(), c.Param("id"), c.Query("token"), inline, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer dl.Content.Close()

	disposition := "attachment"
	if dl.Inline {
		disposition = "inline"
	}
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, dl.Document.OriginalName))
	c.Header("Content-Type", dl.Document.MimeType)
	c.Header("Cache-Control", "private, no-store")
	http.ServeContent(c.Writer, c.Request, dl.Document.OriginalName, dl.Document.UploadedAt, dl.Content)
}

// Delete godoc
// @Summary Delete document
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /materials/{id} [delete]
// @Router /assignments/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	doc, err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"id": doc.ID}, nil, response.Message(h.label+" deleted!"))
}

func uploadFrom(header *multipart.FileHeader, file multipart.File) dto.DocumentUpload {
	return dto.DocumentUpload{
		Filename: header.Filename,
		Size:     header.Size,
		MimeType: header.Header.Get("Content-Type"),
		Content:  file,
	}
}
