package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/seanior/course-booking-api/internal/models"
	"github.com/seanior/course-booking-api/pkg/database"
	appErrors "github.com/seanior/course-booking-api/pkg/errors"
)

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (database.TxBeginner, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type sentNotification struct {
	UserID    string
	EventType string
	Related   string
}

type notifierStub struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *notifierStub) Notify(ctx context.Context, userID, eventType, message, relatedEntityID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, EventType: eventType, Related: relatedEntityID})
}

func (n *notifierStub) events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.EventType+"->"+s.UserID)
	}
	return out
}

type memoryCacheRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error { return nil }

func (m *memoryCacheRepo) Mark(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; ok {
		return false, nil
	}
	m.entries[key] = []byte("1")
	return true, nil
}

func (m *memoryCacheRepo) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok, nil
}

func (m *memoryCacheRepo) has(key string) bool {
	ok, _ := m.Exists(context.Background(), key)
	return ok
}

type fakeCourseRepo struct {
	courses map[string]*models.Course
}

func (f *fakeCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	c, ok := f.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

// fakeRequestRepo backs both the request lifecycle and settlement.
type fakeRequestRepo struct {
	mu        sync.Mutex
	requests  map[string]*models.CourseRequestDetail
	courses   *fakeCourseRepo
	seq       int
	createErr error
}

func newFakeRequestRepo(courses *fakeCourseRepo) *fakeRequestRepo {
	return &fakeRequestRepo{requests: map[string]*models.CourseRequestDetail{}, courses: courses}
}

func (f *fakeRequestRepo) Create(ctx context.Context, exec sqlx.ExtContext, req *models.CourseRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.seq++
	req.ID = fmt.Sprintf("req-%d", f.seq)
	detail := &models.CourseRequestDetail{CourseRequest: *req}
	if course, ok := f.courses.courses[req.CourseID]; ok {
		detail.CourseName = course.Name
		detail.InstructorID = course.InstructorID
	}
	f.requests[req.ID] = detail
	return nil
}

func (f *fakeRequestRepo) put(detail models.CourseRequestDetail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[detail.ID] = &detail
}

func (f *fakeRequestRepo) status(id string) models.CourseRequestStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[id].Status
}

func (f *fakeRequestRepo) FindByID(ctx context.Context, id string) (*models.CourseRequestDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *d
	return &cp, nil
}

func (f *fakeRequestRepo) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseRequestDetail, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeRequestRepo) HasActive(ctx context.Context, studentID, courseID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.requests {
		if d.StudentID == studentID && d.CourseID == courseID && !d.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRequestRepo) TransitionStatus(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.CourseRequestStatus, reason *string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.requests[id]
	if !ok || d.Status != from {
		return false, nil
	}
	d.Status = to
	if reason != nil {
		d.RejectionReason = reason
	}
	return true, nil
}

func (f *fakeRequestRepo) ListPending(ctx context.Context, instructorID string) ([]models.CourseRequestDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CourseRequestDetail
	for _, d := range f.requests {
		if d.Status == models.CourseRequestPendingApproval && (instructorID == "" || d.InstructorID == instructorID) {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeRequestRepo) ListByStudent(ctx context.Context, studentID string) ([]models.CourseRequestDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CourseRequestDetail
	for _, d := range f.requests {
		if d.StudentID == studentID {
			out = append(out, *d)
		}
	}
	return out, nil
}

type fakeBookingRepo struct {
	mu        sync.Mutex
	bookings  map[string]*models.Booking
	seq       int
	sessionID map[string]string
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: map[string]*models.Booking{}, sessionID: map[string]string{}}
}

// Create enforces one live booking per request like uq_bookings_request_live.
func (f *fakeBookingRepo) Create(ctx context.Context, booking *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.RequestID == booking.RequestID && b.Status != models.BookingFailed {
			return &pq.Error{Code: "23505", Constraint: constraintLiveBooking}
		}
	}
	f.seq++
	booking.ID = fmt.Sprintf("bk-%d", f.seq)
	cp := *booking
	f.bookings[booking.ID] = &cp
	return nil
}

func (f *fakeBookingRepo) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookingRepo) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Booking, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeBookingRepo) settle(id string, to models.BookingStatus) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.Status != models.BookingPendingPayment {
		return false
	}
	b.Status = to
	return true
}

func (f *fakeBookingRepo) MarkConfirmed(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error) {
	return f.settle(id, models.BookingConfirmed), nil
}

func (f *fakeBookingRepo) MarkFailed(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error) {
	return f.settle(id, models.BookingFailed), nil
}

func (f *fakeBookingRepo) SetSessionID(ctx context.Context, id, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionID[id] = sessionID
	return nil
}

func (f *fakeBookingRepo) FailStale(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, b := range f.bookings {
		if b.Status == models.BookingPendingPayment && b.CreatedAt.Before(cutoff) {
			b.Status = models.BookingFailed
			n++
		}
	}
	return n, nil
}

func (f *fakeBookingRepo) status(id string) models.BookingStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bookings[id].Status
}

// fakeEnrollmentRepo stores enrollment contexts and counts attended
// sessions from the linked attendance fake.
type fakeEnrollmentRepo struct {
	mu          sync.Mutex
	enrollments map[string]*models.EnrollmentContext
	byRequest   map[string]string
	requests    *fakeRequestRepo
	attendance  *fakeAttendanceRepo
	seq         int
}

func newFakeEnrollmentRepo(requests *fakeRequestRepo, attendance *fakeAttendanceRepo) *fakeEnrollmentRepo {
	return &fakeEnrollmentRepo{
		enrollments: map[string]*models.EnrollmentContext{},
		byRequest:   map[string]string{},
		requests:    requests,
		attendance:  attendance,
	}
}

func (f *fakeEnrollmentRepo) InsertIgnore(ctx context.Context, exec sqlx.ExtContext, e *models.Enrollment) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.byRequest[e.RequestID]; ok {
		*e = f.enrollments[id].Enrollment
		return false, nil
	}
	f.seq++
	e.ID = fmt.Sprintf("enr-%d", f.seq)
	ec := &models.EnrollmentContext{Enrollment: *e}
	if f.requests != nil {
		if req, ok := f.requests.requests[e.RequestID]; ok {
			ec.StudentID = req.StudentID
			ec.CourseID = req.CourseID
			ec.CourseName = req.CourseName
			ec.InstructorID = req.InstructorID
		}
	}
	f.enrollments[e.ID] = ec
	f.byRequest[e.RequestID] = e.ID
	return true, nil
}

func (f *fakeEnrollmentRepo) put(ec models.EnrollmentContext) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enrollments[ec.ID] = &ec
	f.byRequest[ec.RequestID] = ec.ID
}

func (f *fakeEnrollmentRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.enrollments)
}

func (f *fakeEnrollmentRepo) FindContext(ctx context.Context, id string) (*models.EnrollmentContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ec, ok := f.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *ec
	return &cp, nil
}

func (f *fakeEnrollmentRepo) LockContext(ctx context.Context, exec sqlx.ExtContext, id string) (*models.EnrollmentContext, error) {
	return f.FindContext(ctx, id)
}

func (f *fakeEnrollmentRepo) CountAttended(ctx context.Context, exec sqlx.ExtContext, id string) (int, error) {
	if f.attendance == nil {
		return 0, nil
	}
	return f.attendance.attended(id), nil
}

func (f *fakeEnrollmentRepo) UpdateProgress(ctx context.Context, exec sqlx.ExtContext, e *models.Enrollment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ec, ok := f.enrollments[e.ID]
	if !ok {
		return sql.ErrNoRows
	}
	ec.Enrollment = *e
	return nil
}

func (f *fakeEnrollmentRepo) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EnrollmentContext
	for _, ec := range f.enrollments {
		if ec.StudentID == studentID {
			out = append(out, *ec)
		}
	}
	return out, nil
}

func (f *fakeEnrollmentRepo) ListByInstructor(ctx context.Context, instructorID string) ([]models.EnrollmentContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EnrollmentContext
	for _, ec := range f.enrollments {
		if instructorID == "" || ec.InstructorID == instructorID {
			out = append(out, *ec)
		}
	}
	return out, nil
}

type fakeAttendanceRepo struct {
	mu   sync.Mutex
	rows map[string]*models.Attendance
}

func newFakeAttendanceRepo() *fakeAttendanceRepo {
	return &fakeAttendanceRepo{rows: map[string]*models.Attendance{}}
}

func attendanceKey(enrollmentID string, session int) string {
	return fmt.Sprintf("%s#%d", enrollmentID, session)
}

func (f *fakeAttendanceRepo) FindBySession(ctx context.Context, exec sqlx.ExtContext, enrollmentID string, sessionNumber int) (*models.Attendance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[attendanceKey(enrollmentID, sessionNumber)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAttendanceRepo) Upsert(ctx context.Context, exec sqlx.ExtContext, a *models.Attendance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := attendanceKey(a.EnrollmentID, a.SessionNumber)
	if existing, ok := f.rows[key]; ok {
		a.ID = existing.ID
	} else {
		a.ID = "att-" + key
	}
	cp := *a
	f.rows[key] = &cp
	return nil
}

func (f *fakeAttendanceRepo) CountStudentExcuses(ctx context.Context, exec sqlx.ExtContext, enrollmentID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.rows {
		if a.EnrollmentID == enrollmentID && a.Status == models.AttendanceExcused && a.RecordedByRole == models.UserTypeStudent {
			n++
		}
	}
	return n, nil
}

func (f *fakeAttendanceRepo) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Attendance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Attendance
	for i := 1; i <= 64; i++ {
		if a, ok := f.rows[attendanceKey(enrollmentID, i)]; ok {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAttendanceRepo) attended(enrollmentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.rows {
		if a.EnrollmentID == enrollmentID && a.Status.CountsAsAttended() {
			n++
		}
	}
	return n
}

var (
	studentAlice   = models.Principal{UserID: "stu-alice", UserType: models.UserTypeStudent}
	studentBob     = models.Principal{UserID: "stu-bob", UserType: models.UserTypeStudent}
	instructorKim  = models.Principal{UserID: "ins-kim", UserType: models.UserTypeInstructor}
	instructorLee  = models.Principal{UserID: "ins-lee", UserType: models.UserTypeInstructor}
	adminRoot      = models.Principal{UserID: "adm-root", UserType: models.UserTypeAdmin}
	mondayCourseID = "course-swim"
)

func newCourseFixture() *fakeCourseRepo {
	return &fakeCourseRepo{courses: map[string]*models.Course{
		mondayCourseID: {
			ID:            mondayCourseID,
			Name:          "Freestyle Basics",
			InstructorID:  instructorKim.UserID,
			Price:         350000,
			TotalSessions: 8,
			AbsenceBuffer: 2,
			Schedule:      `{"monday":["10:00-12:00"],"wednesday":["18:00-19:00"]}`,
			MaxStudents:   1,
		},
	}}
}
