package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seanior/course-booking-api/internal/middleware"
	"github.com/seanior/course-booking-api/internal/models"
	appErrors "github.com/seanior/course-booking-api/pkg/errors"
	"github.com/seanior/course-booking-api/pkg/response"
)

// principalFromContext returns the caller resolved by the JWT middleware. A
// zero principal fails every ownership check downstream.
func principalFromContext(c *gin.Context) models.Principal {
	principal, _ := middleware.PrincipalFrom(c)
	return principal
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

func toPagination(p *models.Pagination) *response.Pagination {
	if p == nil {
		return nil
	}
	return &response.Pagination{Page: p.Page, PageSize: p.PageSize, TotalCount: p.TotalCount}
}
