package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seanior/course-booking-api/internal/middleware"
	"github.com/seanior/course-booking-api/internal/models"
	"github.com/seanior/course-booking-api/pkg/response"
)

type enrollmentService interface {
	ListForStudent(ctx context.Context, principal models.Principal) ([]models.EnrollmentContext, bool, error)
	ListForInstructor(ctx context.Context, principal models.Principal) ([]models.EnrollmentContext, bool, error)
	Get(ctx context.Context, id string, principal models.Principal) (*models.EnrollmentContext, error)
}

// EnrollmentHandler exposes enrollment progress.
type EnrollmentHandler struct {
	service enrollmentService
}

// NewEnrollmentHandler builds an enrollment handler.
func NewEnrollmentHandler(service enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: service}
}

// Mine godoc
// @Summary List the caller's enrollments
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollments/mine [get]
func (h *EnrollmentHandler) Mine(c *gin.Context) {
	items, cacheHit, err := h.service.ListForStudent(c.Request.Context(), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, items, nil, middleware.ExtractMeta(c))
}

// Teaching godoc
// @Summary List enrollments in the caller's courses
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollments/teaching [get]
func (h *EnrollmentHandler) Teaching(c *gin.Context) {
	items, cacheHit, err := h.service.ListForInstructor(c.Request.Context(), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, items, nil, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}
