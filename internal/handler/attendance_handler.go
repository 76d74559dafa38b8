package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seanior/course-booking-api/internal/dto"
	"github.com/seanior/course-booking-api/internal/models"
	"github.com/seanior/course-booking-api/internal/service"
	"github.com/seanior/course-booking-api/pkg/response"
)

type attendanceService interface {
	Record(ctx context.Context, enrollmentID string, principal models.Principal, input dto.RecordAttendanceInput) (*models.AttendanceResult, error)
	RequestExcuse(ctx context.Context, enrollmentID string, principal models.Principal, input dto.ExcuseInput) (*models.AttendanceResult, error)
	ListForEnrollment(ctx context.Context, enrollmentID string, principal models.Principal) ([]models.Attendance, error)
}

type attendanceExporter interface {
	Export(ctx context.Context, enrollmentID string, principal models.Principal, format string) (*service.AttendanceExport, error)
}

// AttendanceHandler exposes attendance recording, excuses and exports.
type AttendanceHandler struct {
	service  attendanceService
	exporter attendanceExporter
}

// NewAttendanceHandler builds an attendance handler.
func NewAttendanceHandler(service attendanceService, exporter attendanceExporter) *AttendanceHandler {
	return &AttendanceHandler{service: service, exporter: exporter}
}

// Record godoc
// @Summary Record or overwrite attendance for a session
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.RecordAttendanceInput true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/attendance [post]
func (h *AttendanceHandler) Record(c *gin.Context) {
	var input dto.RecordAttendanceInput
	if !bindJSON(c, &input, "invalid attendance payload") {
		return
	}
	result, err := h.service.Record(c.Request.Context(), c.Param("id"), principalFromContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Excuse godoc
// @Summary Excuse an upcoming session
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.ExcuseInput true "Excuse payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/attendance/excuse [post]
func (h *AttendanceHandler) Excuse(c *gin.Context) {
	var input dto.ExcuseInput
	if !bindJSON(c, &input, "invalid excuse payload") {
		return
	}
	result, err := h.service.RequestExcuse(c.Request.Context(), c.Param("id"), principalFromContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// List godoc
// @Summary List attendance for an enrollment
// @Tags Attendance
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	items, err := h.service.ListForEnrollment(c.Request.Context(), c.Param("id"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Export godoc
// @Summary Download attendance as csv, pdf or xlsx
// @Tags Attendance
// @Produce octet-stream
// @Param id path string true "Enrollment ID"
// @Param format query string false "csv (default), pdf or xlsx"
// @Success 200 {file} file
// @Router /enrollments/{id}/attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	file, err := h.exporter.Export(c.Request.Context(), c.Param("id"), principalFromContext(c), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
