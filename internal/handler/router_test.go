package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanior/course-booking-api/internal/dto"
	"github.com/seanior/course-booking-api/internal/models"
	"github.com/seanior/course-booking-api/internal/service"
	appErrors "github.com/seanior/course-booking-api/pkg/errors"
)

type courseServiceMock struct{}

func (courseServiceMock) Create(ctx context.Context, principal models.Principal, req dto.CreateCourseRequest) (*models.Course, error) {
	return &models.Course{ID: "course-1", Name: req.Name, InstructorID: principal.UserID}, nil
}

func (courseServiceMock) Get(ctx context.Context, id string) (*models.Course, error) {
	return &models.Course{ID: id}, nil
}

func (courseServiceMock) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	return []models.Course{{ID: "course-1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

type notificationServiceMock struct{}

func (notificationServiceMock) ListMine(ctx context.Context, principal models.Principal, unreadOnly bool) ([]models.Notification, error) {
	return []models.Notification{}, nil
}

func (notificationServiceMock) MarkRead(ctx context.Context, id string, principal models.Principal) error {
	return nil
}

type staticVerifier map[string]models.Principal

func (v staticVerifier) Verify(token string) (models.Principal, error) {
	p, ok := v[token]
	if !ok {
		return models.Principal{}, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return p, nil
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(RouterConfig{
		APIPrefix: "/api/v1",
		Metrics:   service.NewMetricsService(),
		Verifier: staticVerifier{
			"student":    studentPrincipal,
			"instructor": instructorPrincipal,
		},
		Health:          NewMetricsHandler(service.NewMetricsService(), nil),
		Courses:         NewCourseHandler(courseServiceMock{}),
		CourseRequests:  NewCourseRequestHandler(&courseRequestServiceMock{}),
		Payments:        NewPaymentHandler(&paymentServiceMock{outcome: service.OutcomeIgnored}),
		Enrollments:     NewEnrollmentHandler(&enrollmentServiceMock{}),
		Attendance:      NewAttendanceHandler(&attendanceServiceMock{}, &exporterMock{}),
		SessionProgress: NewSessionProgressHandler(&progressServiceMock{}, 0),
		Notifications:   NewNotificationHandler(notificationServiceMock{}),
	})
}

func serve(r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouterEnforcesUserTypes(t *testing.T) {
	r := newTestRouter()

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		code   int
	}{
		{"anonymous course list", http.MethodGet, "/api/v1/courses", "", "", http.StatusUnauthorized},
		{"student lists courses", http.MethodGet, "/api/v1/courses", "student", "", http.StatusOK},
		{"student cannot publish", http.MethodPost, "/api/v1/courses", "student", `{"name":"x"}`, http.StatusForbidden},
		{"instructor cannot request", http.MethodPost, "/api/v1/course-requests", "instructor", `{}`, http.StatusForbidden},
		{"student cannot approve", http.MethodPatch, "/api/v1/course-requests/req-1/approve", "student", "", http.StatusForbidden},
		{"instructor approves", http.MethodPatch, "/api/v1/course-requests/req-1/approve", "instructor", "", http.StatusOK},
		{"student cannot record attendance", http.MethodPost, "/api/v1/enrollments/enr-1/attendance", "student", `{}`, http.StatusForbidden},
		{"instructor cannot excuse", http.MethodPost, "/api/v1/enrollments/enr-1/attendance/excuse", "instructor", `{}`, http.StatusForbidden},
		{"student cannot export", http.MethodGet, "/api/v1/enrollments/enr-1/attendance/export", "student", "", http.StatusForbidden},
		{"webhook is public", http.MethodPost, "/api/v1/payments/webhook", "", `{}`, http.StatusOK},
		{"health", http.MethodGet, "/health", "", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(r, tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.code, w.Code, w.Body.String())
		})
	}
}

func TestRouterCourseListCarriesPagination(t *testing.T) {
	r := newTestRouter()

	w := serve(r, http.MethodGet, "/api/v1/courses?page=1", "student", "")
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)
}

func TestRouterOmitsFilesWithoutLocalStorage(t *testing.T) {
	r := newTestRouter()

	w := serve(r, http.MethodGet, "/api/v1/files/anything", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
