package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-portal-api/internal/dto"
	"github.com/noah-isme/student-portal-api/internal/middleware"
	"github.com/noah-isme/student-portal-api/internal/models"
	appErrors "github.com/noah-isme/student-portal-api/pkg/errors"
	"github.com/noah-isme/student-portal-api/pkg/response"
)

type counselorService interface {
	Send(ctx context.Context, req models.SendCounselorMessageRequest, claims *models.JWTClaims) (*models.CounselorMessage, error)
	List(ctx context.Context, page, pageSize int, claims *models.JWTClaims) ([]models.CounselorMessage, *models.Pagination, error)
}

// CounselorHandler exposes the counselor inbox.
type CounselorHandler struct {
	service counselorService
}

// NewCounselorHandler creates a new counselor handler.
func NewCounselorHandler(svc counselorService) *CounselorHandler {
	return &CounselorHandler{service: svc}
}

// Send godoc
// @Summary Message the counselor
// @Tags Counselor
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.SendCounselorMessageRequest true "Message payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /counselor-messages [post]
func (h *CounselorHandler) Send(c *gin.Context) {
	var req models.SendCounselorMessageRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid message payload"))
		return
	}
	message, err := h.service.Send(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.AuditResourceKey, message.ID)
	response.Created(c, message, response.Message("Message sent successfully!"))
}

// List godoc
// @Summary List counselor messages
// @Tags Counselor
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /counselor-messages [get]
func (h *CounselorHandler) List(c *gin.Context) {
	var query dto.PageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid paging"))
		return
	}
	messages, pagination, err := h.service.List(c.Request.Context(), query.Page, query.PageSize, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, pagination)
}
