package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-portal-api/internal/models"
	"github.com/noah-isme/student-portal-api/internal/policy"
	appErrors "github.com/noah-isme/student-portal-api/pkg/errors"
	"github.com/noah-isme/student-portal-api/pkg/response"
)

// RequireAction consults the policy table for the authenticated caller.
func RequireAction(action policy.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := policy.Anonymous
		if claims, ok := CurrentUser(c); ok {
			role = claims.Role
		}
		if policy.Authorize(role, action) {
			c.Next()
			return
		}
		if role == policy.Anonymous {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "login required"))
			c.Abort()
			return
		}
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "your role cannot perform this action"))
		c.Abort()
	}
}

// RequireDashboard guards /dashboard/:param. A caller opening another role's dashboard is sent
// to their own.
func RequireDashboard(param, dashboardBase string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "login required"))
			c.Abort()
			return
		}
		if policy.Authorize(claims.Role, policy.DashboardAction(models.UserRole(c.Param(param)))) {
			c.Next()
			return
		}
		redirect(c, dashboardBase+"/"+string(claims.Role), appErrors.Clone(appErrors.ErrForbidden, "this dashboard belongs to another role"))
	}
}
