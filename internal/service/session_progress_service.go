package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seanior/course-booking-api/internal/dto"
	"github.com/seanior/course-booking-api/internal/models"
	appErrors "github.com/seanior/course-booking-api/pkg/errors"
	"github.com/seanior/course-booking-api/pkg/storage"
)

type sessionProgressRepository interface {
	Upsert(ctx context.Context, progress *models.SessionProgress) error
	FindByID(ctx context.Context, id string) (*models.SessionProgress, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.SessionProgress, error)
	Update(ctx context.Context, progress *models.SessionProgress) error
	SetAttachment(ctx context.Context, id, key string) error
}

type enrollmentFinder interface {
	FindContext(ctx context.Context, id string) (*models.EnrollmentContext, error)
}

// AttachmentPolicy bounds uploaded session attachments.
type AttachmentPolicy struct {
	MaxSizeBytes int64
	AllowedMIMEs []string
}

func (p AttachmentPolicy) allows(contentType string) bool {
	if len(p.AllowedMIMEs) == 0 {
		return true
	}
	contentType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	for _, allowed := range p.AllowedMIMEs {
		if strings.EqualFold(allowed, contentType) {
			return true
		}
	}
	return false
}

// SessionProgressService keeps instructor notes and attachments per session.
type SessionProgressService struct {
	repo        sessionProgressRepository
	enrollments enrollmentFinder
	store       storage.ObjectStore
	policy      AttachmentPolicy
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSessionProgressService constructs SessionProgressService.
func NewSessionProgressService(repo sessionProgressRepository, enrollments enrollmentFinder, store storage.ObjectStore, policy AttachmentPolicy, validate *validator.Validate, logger *zap.Logger) *SessionProgressService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionProgressService{
		repo:        repo,
		enrollments: enrollments,
		store:       store,
		policy:      policy,
		validator:   validate,
		logger:      logger,
	}
}

// Upsert records notes for a session of an active enrollment.
func (s *SessionProgressService) Upsert(ctx context.Context, enrollmentID string, principal models.Principal, input dto.UpsertSessionProgressInput) (*models.SessionProgress, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Validation(err, "invalid progress payload")
	}
	sessionDate, err := time.Parse("2006-01-02", input.SessionDate)
	if err != nil {
		return nil, appErrors.Validation(err, "session_date must be YYYY-MM-DD")
	}

	ec, err := s.managed(ctx, enrollmentID, principal)
	if err != nil {
		return nil, err
	}
	if ec.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("enrollment is %s", ec.Status))
	}
	if input.SessionNumber > ec.MaxSessionsAllowed {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("session_number must be between 1 and %d", ec.MaxSessionsAllowed))
	}

	progress := &models.SessionProgress{
		EnrollmentID:     ec.ID,
		SessionNumber:    input.SessionNumber,
		TopicCovered:     input.TopicCovered,
		PerformanceNotes: input.PerformanceNotes,
		SessionDate:      sessionDate,
	}
	if err := s.repo.Upsert(ctx, progress); err != nil {
		return nil, appErrors.Internal(err, "failed to save session progress")
	}
	s.withURL(ctx, progress)
	return progress, nil
}

// ListForEnrollment returns the progress log to the student, the instructor or an admin.
func (s *SessionProgressService) ListForEnrollment(ctx context.Context, enrollmentID string, principal models.Principal) ([]models.SessionProgress, error) {
	ec, err := s.enrollments.FindContext(ctx, enrollmentID)
	if err != nil {
		return nil, serviceError(notFoundAs(err, "enrollment not found"), "failed to load enrollment")
	}
	if !ec.CanView(principal) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot view this enrollment")
	}
	items, err := s.repo.ListByEnrollment(ctx, ec.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list session progress")
	}
	if items == nil {
		items = []models.SessionProgress{}
	}
	for i := range items {
		s.withURL(ctx, &items[i])
	}
	return items, nil
}

// Get returns one entry when the caller may view its enrollment.
func (s *SessionProgressService) Get(ctx context.Context, id string, principal models.Principal) (*models.SessionProgress, error) {
	progress, ec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ec.CanView(principal) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot view this progress entry")
	}
	s.withURL(ctx, progress)
	return progress, nil
}

// Update applies a partial edit.
func (s *SessionProgressService) Update(ctx context.Context, id string, principal models.Principal, input dto.UpdateSessionProgressInput) (*models.SessionProgress, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Validation(err, "invalid progress payload")
	}
	progress, ec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ec.CanManage(principal) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot edit this progress entry")
	}

	if input.TopicCovered != nil {
		progress.TopicCovered = *input.TopicCovered
	}
	if input.PerformanceNotes != nil {
		progress.PerformanceNotes = *input.PerformanceNotes
	}
	if input.SessionDate != nil {
		date, err := time.Parse("2006-01-02", *input.SessionDate)
		if err != nil {
			return nil, appErrors.Validation(err, "session_date must be YYYY-MM-DD")
		}
		progress.SessionDate = date
	}
	if err := s.repo.Update(ctx, progress); err != nil {
		return nil, appErrors.Internal(err, "failed to update session progress")
	}
	s.withURL(ctx, progress)
	return progress, nil
}

// AttachMedia uploads a file for the entry, replacing any earlier attachment.
func (s *SessionProgressService) AttachMedia(ctx context.Context, id string, principal models.Principal, filename, contentType string, size int64, body io.Reader) (*models.SessionProgress, error) {
	if s.store == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "attachment storage is not configured")
	}
	if !s.policy.allows(contentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("content type %q is not allowed", contentType))
	}
	if s.policy.MaxSizeBytes > 0 && size > s.policy.MaxSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes", s.policy.MaxSizeBytes))
	}

	progress, ec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ec.CanManage(principal) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot edit this progress entry")
	}

	ext := strings.ToLower(path.Ext(filename))
	key := fmt.Sprintf("progress/%s/%s%s", progress.ID, uuid.NewString(), ext)
	if err := s.store.Put(ctx, key, body, size, contentType); err != nil {
		return nil, appErrors.Internal(err, "failed to store attachment")
	}
	if err := s.repo.SetAttachment(ctx, progress.ID, key); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned attachment", zap.String("key", key), zap.Error(delErr))
		}
		return nil, appErrors.Internal(err, "failed to save attachment")
	}
	if previous := progress.AttachmentKey; previous != nil && *previous != "" {
		if err := s.store.Delete(ctx, *previous); err != nil {
			s.logger.Warn("failed to remove replaced attachment", zap.String("key", *previous), zap.Error(err))
		}
	}

	progress.AttachmentKey = &key
	s.withURL(ctx, progress)
	return progress, nil
}

func (s *SessionProgressService) managed(ctx context.Context, enrollmentID string, principal models.Principal) (*models.EnrollmentContext, error) {
	ec, err := s.enrollments.FindContext(ctx, enrollmentID)
	if err != nil {
		return nil, serviceError(notFoundAs(err, "enrollment not found"), "failed to load enrollment")
	}
	if !ec.CanManage(principal) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot record progress for this enrollment")
	}
	return ec, nil
}

func (s *SessionProgressService) load(ctx context.Context, id string) (*models.SessionProgress, *models.EnrollmentContext, error) {
	progress, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, serviceError(notFoundAs(err, "progress entry not found"), "failed to load progress entry")
	}
	ec, err := s.enrollments.FindContext(ctx, progress.EnrollmentID)
	if err != nil {
		return nil, nil, serviceError(notFoundAs(err, "enrollment not found"), "failed to load enrollment")
	}
	return progress, ec, nil
}

func (s *SessionProgressService) withURL(ctx context.Context, progress *models.SessionProgress) {
	if s.store == nil || progress.AttachmentKey == nil || *progress.AttachmentKey == "" {
		return
	}
	url, _, err := s.store.URL(ctx, *progress.AttachmentKey)
	if err != nil {
		s.logger.Warn("failed to sign attachment url", zap.String("progress_id", progress.ID), zap.Error(err))
		return
	}
	progress.AttachmentURL = url
}
