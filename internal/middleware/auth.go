package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-portal-api/internal/models"
	appErrors "github.com/noah-isme/student-portal-api/pkg/errors"
	"github.com/noah-isme/student-portal-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

type tokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*models.JWTClaims, error)
}

// Authenticate requires a bearer token backed by a live session. Anonymous callers are sent to
// loginPath: browsers get a 302, API clients a 401 carrying the same Location header.
func Authenticate(auth tokenAuthenticator, loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			RedirectToLogin(c, loginPath, appErrors.Clone(appErrors.ErrUnauthorized, "login required"))
			return
		}

		claims, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			var appErr *appErrors.Error
			if errors.As(err, &appErr) && appErr.Status == http.StatusUnauthorized {
				RedirectToLogin(c, loginPath, err)
				return
			}
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// CurrentUser returns the authenticated caller, if any.
func CurrentUser(c *gin.Context) (*models.JWTClaims, bool) {
	value, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok && claims != nil
}

// RedirectToLogin aborts the request with a redirect to the login page.
func RedirectToLogin(c *gin.Context, loginPath string, err error) {
	target := loginPath
	if target == "" {
		target = "/login"
	}
	if c.Request.Method == http.MethodGet {
		target += "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
	}
	redirect(c, target, err)
}

// redirect sends browsers to target and gives API clients the error with a Location header.
func redirect(c *gin.Context, target string, err error) {
	if WantsHTML(c) {
		c.Redirect(http.StatusFound, target)
		c.Abort()
		return
	}
	c.Header("Location", target)
	response.Error(c, err)
	c.Abort()
}

// WantsHTML reports whether the client prefers an HTML page over JSON.
func WantsHTML(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
