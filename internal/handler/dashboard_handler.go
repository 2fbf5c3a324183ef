package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-portal-api/internal/dto"
	"github.com/noah-isme/student-portal-api/internal/models"
	appErrors "github.com/noah-isme/student-portal-api/pkg/errors"
	"github.com/noah-isme/student-portal-api/pkg/response"
)

type dashboardService interface {
	Get(ctx context.Context, role models.UserRole, claims *models.JWTClaims) (*dto.DashboardResponse, error)
}

// DashboardHandler exposes the per-role dashboards.
type DashboardHandler struct {
	service  dashboardService
	basePath string
}

// NewDashboardHandler constructs the handler. basePath is the public path of the dashboard group.
func NewDashboardHandler(svc dashboardService, basePath string) *DashboardHandler {
	return &DashboardHandler{service: svc, basePath: basePath}
}

// Redirect godoc
// @Summary Open own dashboard
// @Description Redirects to the dashboard of the caller's role
// @Tags Dashboard
// @Security BearerAuth
// @Success 302
// @Failure 401 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Redirect(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	c.Redirect(http.StatusFound, h.basePath+"/"+string(claims.Role))
}

// Show godoc
// @Summary Role dashboard
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Param role path string true "admin, teacher or student"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /dashboard/{role} [get]
func (h *DashboardHandler) Show(c *gin.Context) {
	resp, err := h.service.Get(c.Request.Context(), models.UserRole(c.Param("role")), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}
