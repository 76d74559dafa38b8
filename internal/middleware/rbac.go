package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/seanior/course-booking-api/internal/models"
	appErrors "github.com/seanior/course-booking-api/pkg/errors"
	"github.com/seanior/course-booking-api/pkg/response"
)

// RequireUserTypes admits only principals of the listed user types. Ownership
// checks stay in the services.
func RequireUserTypes(types ...models.UserType) gin.HandlerFunc {
	allowed := make(map[models.UserType]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[principal.UserType]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}
