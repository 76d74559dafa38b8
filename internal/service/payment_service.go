package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/seanior/course-booking-api/internal/models"
	"github.com/seanior/course-booking-api/pkg/database"
	appErrors "github.com/seanior/course-booking-api/pkg/errors"
)

const constraintLiveBooking = "uq_bookings_request_live"

// Webhook processing outcomes, used for logs and metrics.
const (
	OutcomeApplied           = "applied"
	OutcomeDuplicate         = "duplicate"
	OutcomeReplayed          = "replayed"
	OutcomeUnknownBooking    = "unknown_booking"
	OutcomeBookingFailed     = "booking_failed"
	OutcomeRequestNotPayable = "request_not_payable"
	OutcomeMarkedFailed      = "marked_failed"
	OutcomeAlreadySettled    = "already_settled"
	OutcomeIgnored           = "ignored"
	OutcomeError             = "error"
)

var errRequestNotPayable = errors.New("course request is not payable")

// PaymentGateway is an external checkout provider.
type PaymentGateway interface {
	Name() string
	CreateCheckoutSession(ctx context.Context, input models.CheckoutSessionInput) (*models.CheckoutSession, error)
	ParseWebhook(ctx context.Context, req models.WebhookRequest) (*models.PaymentEvent, error)
}

type bookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Booking, error)
	MarkConfirmed(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error)
	MarkFailed(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error)
	SetSessionID(ctx context.Context, id, sessionID string) error
}

type settlementRequestRepository interface {
	FindByID(ctx context.Context, id string) (*models.CourseRequestDetail, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseRequestDetail, error)
	TransitionStatus(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.CourseRequestStatus, reason *string) (bool, error)
}

type enrollmentCreator interface {
	InsertIgnore(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) (bool, error)
}

// PaymentSettings tunes checkout and webhook handling.
type PaymentSettings struct {
	Currency     string
	Timeout      time.Duration
	SuccessURL   string
	CancelURL    string
	EventMarkTTL time.Duration
	// SessionTTL bounds how long a checkout stays payable at the provider. It
	// must be shorter than the stale booking reaper's cutoff.
	SessionTTL   time.Duration
}

// PaymentService creates checkout sessions and settles provider webhooks.
type PaymentService struct {
	gateway     PaymentGateway
	bookings    bookingRepository
	requests    settlementRequestRepository
	courses     courseReader
	enrollments enrollmentCreator
	tx          database.TxBeginner
	cache       *CacheService
	notifier    Notifier
	metrics     *MetricsService
	settings    PaymentSettings
	logger      *zap.Logger
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(
	gateway PaymentGateway,
	bookings bookingRepository,
	requests settlementRequestRepository,
	courses courseReader,
	enrollments enrollmentCreator,
	tx database.TxBeginner,
	cache *CacheService,
	notifier Notifier,
	metrics *MetricsService,
	settings PaymentSettings,
	logger *zap.Logger,
) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 15 * time.Second
	}
	if settings.EventMarkTTL <= 0 {
		settings.EventMarkTTL = 72 * time.Hour
	}
	if settings.SessionTTL <= 0 {
		settings.SessionTTL = 23 * time.Hour
	}
	if settings.Currency == "" {
		settings.Currency = "thb"
	}
	return &PaymentService{
		gateway:     gateway,
		bookings:    bookings,
		requests:    requests,
		courses:     courses,
		enrollments: enrollments,
		tx:          tx,
		cache:       cache,
		notifier:    notifier,
		metrics:     metrics,
		settings:    settings,
		logger:      logger,
	}
}

// CreateCheckoutSession opens a booking for an approved request and returns
// the provider's payment page.
func (s *PaymentService) CreateCheckoutSession(ctx context.Context, requestID string, principal models.Principal) (*models.CheckoutSession, error) {
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course request not found")
		}
		return nil, appErrors.Internal(err, "failed to load course request")
	}
	if req.StudentID != principal.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requesting student can pay for this request")
	}
	if req.Status != models.CourseRequestApprovedPendingPayment {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("course request is %s, not awaiting payment", req.Status))
	}

	booking := &models.Booking{
		RequestID: req.ID,
		PayerID:   principal.UserID,
		Amount:    req.PriceSnapshot,
		Currency:  s.settings.Currency,
		Status:    models.BookingPendingPayment,
		Provider:  s.gateway.Name(),
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		if database.IsUniqueViolation(err, constraintLiveBooking) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a payment is already in progress for this request")
		}
		return nil, appErrors.Internal(err, "failed to create booking")
	}

	openedAt := booking.CreatedAt
	if openedAt.IsZero() {
		openedAt = time.Now().UTC()
	}

	gatewayCtx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()
	session, err := s.gateway.CreateCheckoutSession(gatewayCtx, models.CheckoutSessionInput{
		BookingID:   booking.ID,
		RequestID:   req.ID,
		PayerID:     principal.UserID,
		Amount:      booking.Amount,
		Currency:    booking.Currency,
		Description: req.CourseName,
		SuccessURL:  withBookingRef(s.settings.SuccessURL, booking.ID),
		CancelURL:   withBookingRef(s.settings.CancelURL, booking.ID),
		ExpiresAt:   openedAt.Add(s.settings.SessionTTL),
	})
	if err != nil {
		s.failBooking(booking.ID)
		s.metrics.RecordCheckoutSession(s.gateway.Name(), "failed")
		s.logger.Error("checkout session creation failed",
			zap.String("booking_id", booking.ID),
			zap.String("request_id", req.ID),
			zap.Error(err),
		)
		message := "payment provider is unavailable, please try again"
		if errors.Is(err, context.DeadlineExceeded) {
			message = "payment provider timed out, please try again"
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, message)
	}

	if err := s.bookings.SetSessionID(ctx, booking.ID, session.SessionID); err != nil {
		s.logger.Warn("failed to persist payment session id",
			zap.String("booking_id", booking.ID),
			zap.String("session_id", session.SessionID),
			zap.Error(err),
		)
	}
	s.metrics.RecordCheckoutSession(s.gateway.Name(), "created")

	session.BookingID = booking.ID
	session.Provider = s.gateway.Name()
	return session, nil
}

// failBooking runs on a fresh context so a cancelled request still releases
// the booking.
func (s *PaymentService) failBooking(bookingID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.bookings.MarkFailed(ctx, nil, bookingID); err != nil {
		s.logger.Error("failed to release booking after checkout failure", zap.String("booking_id", bookingID), zap.Error(err))
	}
}

func withBookingRef(raw, bookingID string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set("booking_id", bookingID)
	u.RawQuery = q.Encode()
	return u.String()
}

// GetBooking returns a booking to its payer or an admin.
func (s *PaymentService) GetBooking(ctx context.Context, bookingID string, principal models.Principal) (*models.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Internal(err, "failed to load booking")
	}
	if !principal.IsAdmin() && booking.PayerID != principal.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot view this booking")
	}
	return booking, nil
}

// HandleWebhook verifies a provider notification and applies it. Returned
// errors carry the status the provider should see: 4xx stops retries, 5xx
// asks for redelivery.
func (s *PaymentService) HandleWebhook(ctx context.Context, req models.WebhookRequest) (string, error) {
	event, err := s.gateway.ParseWebhook(ctx, req)
	if err != nil {
		var appErr *appErrors.Error
		if !errors.As(err, &appErr) {
			err = appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to verify payment notification")
		}
		s.metrics.RecordWebhookEvent(s.gateway.Name(), "unknown", "rejected")
		s.logger.Warn("payment webhook rejected", zap.Error(err))
		return "", err
	}

	markerKey := ""
	if event.ID != "" {
		markerKey = fmt.Sprintf("payments:event:%s:%s", s.gateway.Name(), event.ID)
		if s.cache.Seen(ctx, markerKey) {
			s.metrics.RecordWebhookEvent(s.gateway.Name(), string(event.Kind), OutcomeReplayed)
			s.logger.Info("payment webhook already processed", zap.String("event_id", event.ID))
			return OutcomeReplayed, nil
		}
	}

	var outcome string
	switch event.Kind {
	case models.PaymentEventSucceeded:
		outcome, err = s.settle(ctx, event)
	case models.PaymentEventFailed:
		outcome, err = s.markFailed(ctx, event)
	default:
		outcome = OutcomeIgnored
	}
	if err != nil {
		s.metrics.RecordWebhookEvent(s.gateway.Name(), string(event.Kind), OutcomeError)
		s.logger.Error("payment webhook processing failed",
			zap.String("event_id", event.ID),
			zap.String("booking_id", event.BookingID),
			zap.Error(err),
		)
		return OutcomeError, err
	}

	if markerKey != "" {
		s.cache.Remember(ctx, markerKey, s.settings.EventMarkTTL)
	}
	s.metrics.RecordWebhookEvent(s.gateway.Name(), string(event.Kind), outcome)
	s.logger.Info("payment webhook processed",
		zap.String("event_id", event.ID),
		zap.String("kind", string(event.Kind)),
		zap.String("raw_status", event.RawStatus),
		zap.String("booking_id", event.BookingID),
		zap.String("outcome", outcome),
	)
	return outcome, nil
}

type settlement struct {
	booking    *models.Booking
	request    *models.CourseRequestDetail
	enrollment *models.Enrollment
	created    bool
}

// settle confirms the booking, marks the request paid and creates the
// enrollment in one transaction.
func (s *PaymentService) settle(ctx context.Context, event *models.PaymentEvent) (string, error) {
	if event.BookingID == "" {
		s.logger.Warn("payment succeeded without booking reference", zap.String("event_id", event.ID))
		return OutcomeUnknownBooking, nil
	}

	outcome := OutcomeApplied
	var result settlement
	err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		booking, err := s.bookings.LockByID(ctx, tx, event.BookingID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				outcome = OutcomeUnknownBooking
				return nil
			}
			return fmt.Errorf("lock booking: %w", err)
		}
		if booking.Status == models.BookingFailed {
			outcome = OutcomeBookingFailed
			return nil
		}
		if booking.Status == models.BookingPendingPayment {
			if _, err := s.bookings.MarkConfirmed(ctx, tx, booking.ID); err != nil {
				return err
			}
			booking.Status = models.BookingConfirmed
		}
		if event.RequestID != "" && event.RequestID != booking.RequestID {
			s.logger.Warn("payment metadata request id differs from booking",
				zap.String("booking_id", booking.ID),
				zap.String("booking_request_id", booking.RequestID),
				zap.String("event_request_id", event.RequestID),
			)
		}

		req, err := s.requests.LockByID(ctx, tx, booking.RequestID)
		if err != nil {
			return fmt.Errorf("lock course request %s: %w", booking.RequestID, err)
		}
		switch req.Status {
		case models.CourseRequestApprovedPendingPayment:
			ok, err := s.requests.TransitionStatus(ctx, tx, req.ID, models.CourseRequestApprovedPendingPayment, models.CourseRequestPaidAndEnrolled, nil)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("course request %s changed status during settlement", req.ID)
			}
			req.Status = models.CourseRequestPaidAndEnrolled
		case models.CourseRequestPaidAndEnrolled:
		default:
			return errRequestNotPayable
		}

		course, err := s.courses.FindByID(ctx, req.CourseID)
		if err != nil {
			return fmt.Errorf("load course %s: %w", req.CourseID, err)
		}
		enrollment := &models.Enrollment{
			RequestID:                req.ID,
			StartDate:                req.StartDate,
			Status:                   models.EnrollmentStatusActive,
			TargetSessionsToComplete: course.TotalSessions,
			MaxSessionsAllowed:       course.TotalSessions + course.AbsenceBuffer,
		}
		created, err := s.enrollments.InsertIgnore(ctx, tx, enrollment)
		if err != nil {
			return err
		}
		if !created {
			outcome = OutcomeDuplicate
		}
		result = settlement{booking: booking, request: req, enrollment: enrollment, created: created}
		return nil
	})
	if errors.Is(err, errRequestNotPayable) {
		s.logger.Error("payment received for a request that cannot be enrolled",
			zap.String("booking_id", event.BookingID),
			zap.String("event_id", event.ID),
		)
		return OutcomeRequestNotPayable, nil
	}
	if err != nil {
		return "", appErrors.Internal(err, "failed to settle payment")
	}

	switch outcome {
	case OutcomeUnknownBooking:
		s.logger.Warn("payment succeeded for unknown booking", zap.String("booking_id", event.BookingID))
	case OutcomeBookingFailed:
		s.logger.Warn("payment succeeded for a failed booking", zap.String("booking_id", event.BookingID))
	}
	if result.created {
		s.afterEnrollment(ctx, result)
	}
	return outcome, nil
}

func (s *PaymentService) afterEnrollment(ctx context.Context, result settlement) {
	s.metrics.IncEnrollmentsCreated()
	s.cache.Invalidate(ctx,
		studentEnrollmentsKey(result.request.StudentID),
		instructorEnrollmentsKey(result.request.InstructorID),
	)
	s.notifier.Notify(ctx, result.request.StudentID, models.NotifyPaymentConfirmed,
		fmt.Sprintf("Payment received. You are enrolled in %s.", result.request.CourseName), result.enrollment.ID)
	s.notifier.Notify(ctx, result.request.InstructorID, models.NotifyPaymentConfirmed,
		fmt.Sprintf("A student has paid and enrolled in %s.", result.request.CourseName), result.enrollment.ID)
}

// markFailed fails a pending booking. The request stays payable.
func (s *PaymentService) markFailed(ctx context.Context, event *models.PaymentEvent) (string, error) {
	if event.BookingID == "" {
		return OutcomeUnknownBooking, nil
	}
	booking, err := s.bookings.FindByID(ctx, event.BookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("payment failed for unknown booking", zap.String("booking_id", event.BookingID))
			return OutcomeUnknownBooking, nil
		}
		return "", appErrors.Internal(err, "failed to load booking")
	}
	ok, err := s.bookings.MarkFailed(ctx, nil, booking.ID)
	if err != nil {
		return "", appErrors.Internal(err, "failed to mark booking failed")
	}
	if !ok {
		return OutcomeAlreadySettled, nil
	}
	s.notifier.Notify(ctx, booking.PayerID, models.NotifyPaymentFailed,
		"Your payment did not go through. You can try again from your requests.", booking.RequestID)
	return OutcomeMarkedFailed, nil
}
