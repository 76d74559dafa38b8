package database

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTxMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestWithTxCommits(t *testing.T) {
	db, mock := newTxMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE bookings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := WithTx(context.Background(), db, func(tx *sqlx.Tx) error {
		_, execErr := tx.ExecContext(context.Background(), "UPDATE bookings SET status = 'FAILED'")
		return execErr
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackAndReturnsCallbackError(t *testing.T) {
	db, mock := newTxMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	sentinel := errors.New("state changed")
	err := WithTx(context.Background(), db, func(tx *sqlx.Tx) error {
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	err := &pq.Error{Code: UniqueViolation, Constraint: "uq_bookings_request_live"}
	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "uq_bookings_request_live"))
	assert.False(t, IsUniqueViolation(err, "uq_enrollments_request"))
	assert.False(t, IsUniqueViolation(errors.New("boom"), ""))
}
