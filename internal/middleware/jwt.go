package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/seanior/course-booking-api/internal/models"
	appErrors "github.com/seanior/course-booking-api/pkg/errors"
	"github.com/seanior/course-booking-api/pkg/response"
)

// ContextPrincipalKey is the gin context key storing the authenticated principal.
const ContextPrincipalKey = "principal"

// TokenVerifier resolves a bearer token into a principal.
type TokenVerifier interface {
	Verify(token string) (models.Principal, error)
}

// JWT protects routes by requiring a valid identity token.
func JWT(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			return
		}

		principal, err := verifier.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			return
		}

		c.Set(ContextPrincipalKey, principal)
		c.Next()
	}
}

// PrincipalFrom returns the principal set by JWT.
func PrincipalFrom(c *gin.Context) (models.Principal, bool) {
	value, exists := c.Get(ContextPrincipalKey)
	if !exists {
		return models.Principal{}, false
	}
	principal, ok := value.(models.Principal)
	return principal, ok
}
