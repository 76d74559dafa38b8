package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/seanior/course-booking-api/internal/models"
	appErrors "github.com/seanior/course-booking-api/pkg/errors"
	"github.com/seanior/course-booking-api/pkg/export"
)

var attendanceExportHeaders = []string{"Session", "Date", "Status", "Reason", "Recorded By"}

// AttendanceExport is a rendered attendance ledger.
type AttendanceExport struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AttendanceExportService renders an enrollment's attendance as csv, pdf or xlsx.
type AttendanceExportService struct {
	attendance  attendanceRepository
	enrollments enrollmentLocator
	renderers   export.Registry
	logger      *zap.Logger
}

// NewAttendanceExportService constructs AttendanceExportService.
func NewAttendanceExportService(attendance attendanceRepository, enrollments enrollmentLocator, renderers export.Registry, logger *zap.Logger) *AttendanceExportService {
	if renderers == nil {
		renderers = export.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceExportService{attendance: attendance, enrollments: enrollments, renderers: renderers, logger: logger}
}

// Export renders the ledger for the course instructor or an admin.
func (s *AttendanceExportService) Export(ctx context.Context, enrollmentID string, principal models.Principal, format string) (*AttendanceExport, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	renderer, err := s.renderers.Get(format)
	if err != nil {
		return nil, appErrors.Validation(err, "format must be csv, pdf or xlsx")
	}

	ec, err := s.enrollments.FindContext(ctx, enrollmentID)
	if err != nil {
		return nil, serviceError(notFoundAs(err, "enrollment not found"), "failed to load enrollment")
	}
	if !ec.CanManage(principal) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot export this enrollment")
	}

	items, err := s.attendance.ListByEnrollment(ctx, ec.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list attendance")
	}

	dataset := export.Dataset{
		Title:   fmt.Sprintf("Attendance - %s", ec.CourseName),
		Headers: attendanceExportHeaders,
		Rows:    make([]map[string]string, 0, len(items)),
	}
	for _, item := range items {
		reason := ""
		if item.Reason != nil {
			reason = *item.Reason
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Session":     strconv.Itoa(item.SessionNumber),
			"Date":        item.SessionDate.Format("2006-01-02"),
			"Status":      string(item.Status),
			"Reason":      reason,
			"Recorded By": string(item.RecordedByRole),
		})
	}

	data, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render attendance export")
	}
	s.logger.Debug("attendance exported", zap.String("enrollment_id", ec.ID), zap.String("format", format), zap.Int("rows", len(items)))

	return &AttendanceExport{
		Filename:    fmt.Sprintf("attendance-%s.%s", ec.ID, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}
