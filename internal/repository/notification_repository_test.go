package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNotificationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestNotificationRepositoryMarkReadScopedToRecipient(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2")).
		WithArgs("7e9d1b3f-5a2c-4d6e-8f0a-3b5c7d9e1f2a", "someone-else").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkRead(context.Background(), "7e9d1b3f-5a2c-4d6e-8f0a-3b5c7d9e1f2a", "someone-else")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryListUnreadOnly(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND is_read = FALSE ORDER BY created_at DESC LIMIT 50")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "event_type", "message", "related_entity_id", "is_read", "created_at"}))

	items, err := repo.ListByUser(context.Background(), "stu-1", true, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
	require.NoError(t, mock.ExpectationsWereMet())
}
