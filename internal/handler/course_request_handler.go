package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/seanior/course-booking-api/internal/dto"
	"github.com/seanior/course-booking-api/internal/models"
	"github.com/seanior/course-booking-api/pkg/response"
)

type courseRequestService interface {
	Create(ctx context.Context, principal models.Principal, input dto.CreateCourseRequestInput) (*models.CourseRequestDetail, error)
	Approve(ctx context.Context, requestID string, principal models.Principal) (*models.CourseRequestDetail, error)
	Reject(ctx context.Context, requestID string, principal models.Principal, input dto.RejectCourseRequestInput) (*models.CourseRequestDetail, error)
	ListPending(ctx context.Context, principal models.Principal) ([]models.CourseRequestDetail, error)
	ListForStudent(ctx context.Context, principal models.Principal) ([]models.CourseRequestDetail, error)
	Get(ctx context.Context, requestID string, principal models.Principal) (*models.CourseRequestDetail, error)
}

// CourseRequestHandler exposes the request approval workflow.
type CourseRequestHandler struct {
	service courseRequestService
}

// NewCourseRequestHandler builds a course request handler.
func NewCourseRequestHandler(service courseRequestService) *CourseRequestHandler {
	return &CourseRequestHandler{service: service}
}

// Create godoc
// @Summary Request enrollment in a course
// @Tags CourseRequests
// @Accept json
// @Produce json
// @Param payload body dto.CreateCourseRequestInput true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /course-requests [post]
func (h *CourseRequestHandler) Create(c *gin.Context) {
	var input dto.CreateCourseRequestInput
	if !bindJSON(c, &input, "invalid course request payload") {
		return
	}
	req, err := h.service.Create(c.Request.Context(), principalFromContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, req)
}

// Mine godoc
// @Summary List the caller's course requests
// @Tags CourseRequests
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /course-requests/mine [get]
func (h *CourseRequestHandler) Mine(c *gin.Context) {
	items, err := h.service.ListForStudent(c.Request.Context(), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Pending godoc
// @Summary List requests awaiting approval
// @Tags CourseRequests
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /course-requests/pending [get]
func (h *CourseRequestHandler) Pending(c *gin.Context) {
	items, err := h.service.ListPending(c.Request.Context(), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Get godoc
// @Summary Get a course request
// @Tags CourseRequests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /course-requests/{id} [get]
func (h *CourseRequestHandler) Get(c *gin.Context) {
	req, err := h.service.Get(c.Request.Context(), c.Param("id"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, req)
}

// Approve godoc
// @Summary Approve a pending request
// @Tags CourseRequests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /course-requests/{id}/approve [patch]
func (h *CourseRequestHandler) Approve(c *gin.Context) {
	req, err := h.service.Approve(c.Request.Context(), c.Param("id"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, req)
}

// Reject godoc
// @Summary Reject a pending request
// @Tags CourseRequests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.RejectCourseRequestInput false "Rejection reason"
// @Success 200 {object} response.Envelope
// @Router /course-requests/{id}/reject [patch]
func (h *CourseRequestHandler) Reject(c *gin.Context) {
	var input dto.RejectCourseRequestInput
	// the reason is optional, so an empty body is fine
	if c.Request.ContentLength != 0 {
		if !bindJSON(c, &input, "invalid rejection payload") {
			return
		}
	}
	req, err := h.service.Reject(c.Request.Context(), c.Param("id"), principalFromContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, req)
}
