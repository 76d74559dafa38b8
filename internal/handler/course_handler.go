package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/seanior/course-booking-api/internal/dto"
	"github.com/seanior/course-booking-api/internal/models"
	"github.com/seanior/course-booking-api/pkg/response"
)

type courseService interface {
	Create(ctx context.Context, principal models.Principal, req dto.CreateCourseRequest) (*models.Course, error)
	Get(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error)
}

// CourseHandler exposes the course catalog.
type CourseHandler struct {
	service courseService
}

// NewCourseHandler builds a course handler.
func NewCourseHandler(service courseService) *CourseHandler {
	return &CourseHandler{service: service}
}

// Create godoc
// @Summary Publish a course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body dto.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req dto.CreateCourseRequest
	if !bindJSON(c, &req, "invalid course payload") {
		return
	}
	course, err := h.service.Create(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Param instructor_id query string false "Instructor filter"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("page_size"))
	filter := models.CourseFilter{
		InstructorID: c.Query("instructor_id"),
		Page:         page,
		PageSize:     size,
	}
	courses, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, toPagination(pagination))
}

// Get godoc
// @Summary Get a course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, course)
}
