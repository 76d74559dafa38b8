package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seanior/course-booking-api/internal/dto"
	"github.com/seanior/course-booking-api/internal/models"
	appErrors "github.com/seanior/course-booking-api/pkg/errors"
	"github.com/seanior/course-booking-api/pkg/response"
)

type sessionProgressService interface {
	Upsert(ctx context.Context, enrollmentID string, principal models.Principal, input dto.UpsertSessionProgressInput) (*models.SessionProgress, error)
	ListForEnrollment(ctx context.Context, enrollmentID string, principal models.Principal) ([]models.SessionProgress, error)
	Get(ctx context.Context, id string, principal models.Principal) (*models.SessionProgress, error)
	Update(ctx context.Context, id string, principal models.Principal, input dto.UpdateSessionProgressInput) (*models.SessionProgress, error)
	AttachMedia(ctx context.Context, id string, principal models.Principal, filename, contentType string, size int64, body io.Reader) (*models.SessionProgress, error)
}

// SessionProgressHandler exposes per-session instructor notes.
type SessionProgressHandler struct {
	service sessionProgressService
	maxSize int64
}

// NewSessionProgressHandler builds a handler. maxSize caps multipart bodies.
func NewSessionProgressHandler(service sessionProgressService, maxSize int64) *SessionProgressHandler {
	if maxSize <= 0 {
		maxSize = 10 * 1024 * 1024
	}
	return &SessionProgressHandler{service: service, maxSize: maxSize}
}

// Upsert godoc
// @Summary Write notes for a session
// @Tags SessionProgress
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.UpsertSessionProgressInput true "Progress payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/progress [put]
func (h *SessionProgressHandler) Upsert(c *gin.Context) {
	var input dto.UpsertSessionProgressInput
	if !bindJSON(c, &input, "invalid session progress payload") {
		return
	}
	progress, err := h.service.Upsert(c.Request.Context(), c.Param("id"), principalFromContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, progress)
}

// List godoc
// @Summary List session notes for an enrollment
// @Tags SessionProgress
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/progress [get]
func (h *SessionProgressHandler) List(c *gin.Context) {
	items, err := h.service.ListForEnrollment(c.Request.Context(), c.Param("id"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Get godoc
// @Summary Get one session note
// @Tags SessionProgress
// @Produce json
// @Param id path string true "Progress ID"
// @Success 200 {object} response.Envelope
// @Router /progress/{id} [get]
func (h *SessionProgressHandler) Get(c *gin.Context) {
	progress, err := h.service.Get(c.Request.Context(), c.Param("id"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, progress)
}

// Update godoc
// @Summary Edit a session note
// @Tags SessionProgress
// @Accept json
// @Produce json
// @Param id path string true "Progress ID"
// @Param payload body dto.UpdateSessionProgressInput true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /progress/{id} [patch]
func (h *SessionProgressHandler) Update(c *gin.Context) {
	var input dto.UpdateSessionProgressInput
	if !bindJSON(c, &input, "invalid session progress payload") {
		return
	}
	progress, err := h.service.Update(c.Request.Context(), c.Param("id"), principalFromContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, progress)
}

// Attach godoc
// @Summary Attach a photo or video to a session note
// @Tags SessionProgress
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Progress ID"
// @Param file formData file true "Media file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /progress/{id}/attachment [post]
func (h *SessionProgressHandler) Attach(c *gin.Context) {
	// room for multipart framing on top of the file itself
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize+1<<20)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Validation(err, "file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Validation(err, "unreadable upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	progress, err := h.service.AttachMedia(
		c.Request.Context(),
		c.Param("id"),
		principalFromContext(c),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		file,
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, progress)
}
