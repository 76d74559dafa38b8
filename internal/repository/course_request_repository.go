package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/seanior/course-booking-api/internal/models"
)

const courseRequestDetailSelect = `SELECT r.id, r.course_id, r.student_id, r.status, r.start_date, r.notes, r.price_snapshot,
       r.rejection_reason, r.created_at, r.updated_at, c.name AS course_name, c.instructor_id
FROM course_requests r
JOIN courses c ON c.id = r.course_id`

// CourseRequestRepository persists course requests and their slots.
type CourseRequestRepository struct {
	db *sqlx.DB
}

// NewCourseRequestRepository constructs the repository.
func NewCourseRequestRepository(db *sqlx.DB) *CourseRequestRepository {
	return &CourseRequestRepository{db: db}
}

func (r *CourseRequestRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts the request and its slots. Callers pass a transaction so
// both writes land together.
func (r *CourseRequestRepository) Create(ctx context.Context, exec sqlx.ExtContext, req *models.CourseRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	target := r.exec(exec)

	const insertRequest = `INSERT INTO course_requests (id, course_id, student_id, status, start_date, notes, price_snapshot, created_at, updated_at)
VALUES (:id, :course_id, :student_id, :status, :start_date, :notes, :price_snapshot, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertRequest, req); err != nil {
		return fmt.Errorf("insert course request: %w", err)
	}

	const insertSlot = `INSERT INTO course_request_slots (request_id, position, day_of_week, start_time, end_time) VALUES ($1, $2, $3, $4, $5)`
	for i, slot := range req.Slots {
		if _, err := target.ExecContext(ctx, insertSlot, req.ID, i, slot.DayOfWeek, slot.StartTime, slot.EndTime); err != nil {
			return fmt.Errorf("insert course request slot: %w", err)
		}
	}
	return nil
}

// FindByID loads the request with its course context and slots.
func (r *CourseRequestRepository) FindByID(ctx context.Context, id string) (*models.CourseRequestDetail, error) {
	if malformedID(id) {
		return nil, sql.ErrNoRows
	}
	var detail models.CourseRequestDetail
	if err := r.db.GetContext(ctx, &detail, courseRequestDetailSelect+` WHERE r.id = $1`, id); err != nil {
		return nil, err
	}
	if err := r.attachSlots(ctx, []*models.CourseRequestDetail{&detail}); err != nil {
		return nil, err
	}
	return &detail, nil
}

// LockByID reads the request row under FOR UPDATE.
func (r *CourseRequestRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseRequestDetail, error) {
	if malformedID(id) {
		return nil, sql.ErrNoRows
	}
	var detail models.CourseRequestDetail
	if err := sqlx.GetContext(ctx, r.exec(exec), &detail, courseRequestDetailSelect+` WHERE r.id = $1 FOR UPDATE OF r`, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// HasActive reports whether the student already holds a pending or approved
// request for the course.
func (r *CourseRequestRepository) HasActive(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM course_requests WHERE student_id = $1 AND course_id = $2 AND status IN ('PENDING_APPROVAL', 'APPROVED_PENDING_PAYMENT'))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID); err != nil {
		return false, fmt.Errorf("check active course request: %w", err)
	}
	return exists, nil
}

// TransitionStatus moves the request from one status to another. It reports
// false when the row was not in the expected status.
func (r *CourseRequestRepository) TransitionStatus(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.CourseRequestStatus, reason *string) (bool, error) {
	if malformedID(id) {
		return false, nil
	}
	const query = `UPDATE course_requests SET status = $1, rejection_reason = COALESCE($2, rejection_reason), updated_at = $3 WHERE id = $4 AND status = $5`
	res, err := r.exec(exec).ExecContext(ctx, query, to, reason, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("update course request status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("course request rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListPending returns requests awaiting approval. An empty instructorID
// returns every pending request.
func (r *CourseRequestRepository) ListPending(ctx context.Context, instructorID string) ([]models.CourseRequestDetail, error) {
	query := courseRequestDetailSelect + ` WHERE r.status = $1`
	args := []interface{}{models.CourseRequestPendingApproval}
	if instructorID != "" {
		query += ` AND c.instructor_id = $2`
		args = append(args, instructorID)
	}
	query += ` ORDER BY r.created_at ASC`
	return r.list(ctx, query, args...)
}

// ListByStudent returns every request the student has made, newest first.
func (r *CourseRequestRepository) ListByStudent(ctx context.Context, studentID string) ([]models.CourseRequestDetail, error) {
	return r.list(ctx, courseRequestDetailSelect+` WHERE r.student_id = $1 ORDER BY r.created_at DESC`, studentID)
}

func (r *CourseRequestRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.CourseRequestDetail, error) {
	var details []models.CourseRequestDetail
	if err := r.db.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, fmt.Errorf("list course requests: %w", err)
	}
	refs := make([]*models.CourseRequestDetail, len(details))
	for i := range details {
		refs[i] = &details[i]
	}
	if err := r.attachSlots(ctx, refs); err != nil {
		return nil, err
	}
	return details, nil
}

func (r *CourseRequestRepository) attachSlots(ctx context.Context, details []*models.CourseRequestDetail) error {
	if len(details) == 0 {
		return nil
	}
	ids := make([]string, len(details))
	index := make(map[string]*models.CourseRequestDetail, len(details))
	for i, d := range details {
		ids[i] = d.ID
		index[d.ID] = d
		d.Slots = []models.Slot{}
	}

	const query = `SELECT request_id, day_of_week, start_time, end_time FROM course_request_slots WHERE request_id = ANY($1) ORDER BY request_id, position`
	var rows []struct {
		RequestID string `db:"request_id"`
		models.Slot
	}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("list course request slots: %w", err)
	}
	for _, row := range rows {
		if d, ok := index[row.RequestID]; ok {
			d.Slots = append(d.Slots, row.Slot)
		}
	}
	return nil
}
