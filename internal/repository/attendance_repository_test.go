package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanior/course-booking-api/internal/models"
)

func newAttendanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAttendanceRepositoryUpsertKeepsExistingRowID(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	created := time.Now().Add(-time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (enrollment_id, session_number) DO UPDATE SET")).
		WithArgs(sqlmock.AnyArg(), "enr-1", 3, models.AttendanceAbsent, nil, sqlmock.AnyArg(), "ins-1", models.UserTypeInstructor, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("att-original", created))

	attendance := &models.Attendance{
		EnrollmentID:   "enr-1",
		SessionNumber:  3,
		Status:         models.AttendanceAbsent,
		SessionDate:    time.Now(),
		RecordedBy:     "ins-1",
		RecordedByRole: models.UserTypeInstructor,
	}
	require.NoError(t, repo.Upsert(context.Background(), nil, attendance))
	assert.Equal(t, "att-original", attendance.ID)
	assert.Equal(t, created, attendance.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCountStudentExcuses(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE enrollment_id = $1 AND status = $2 AND recorded_by_role = $3")).
		WithArgs("enr-1", models.AttendanceExcused, models.UserTypeStudent).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountStudentExcuses(context.Background(), nil, "enr-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
