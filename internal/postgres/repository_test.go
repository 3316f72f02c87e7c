package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Repository{db: db}, mock
}

func TestMigrate(t *testing.T) {
	repo, mock := setupMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS notified_posts")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsNotified(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
	}{
		{name: "already notified", exists: true},
		{name: "new post", exists: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := setupMockDB(t)
			mock.ExpectQuery("FROM notified_posts").
				WithArgs("123_456").
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists))

			got, err := repo.IsNotified(context.Background(), "123_456")
			require.NoError(t, err)
			assert.Equal(t, tt.exists, got)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestIsNotifiedError(t *testing.T) {
	repo, mock := setupMockDB(t)
	mock.ExpectQuery("FROM notified_posts").
		WithArgs("1").
		WillReturnError(sql.ErrConnDone)

	_, err := repo.IsNotified(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrConnDone))
}

func TestMarkNotified(t *testing.T) {
	repo, mock := setupMockDB(t)
	at := time.Date(2025, 3, 14, 6, 0, 0, 0, time.FixedZone("PHT", 8*3600))

	mock.ExpectExec("INSERT INTO notified_posts").
		WithArgs("123_456", "notif-1", at.UTC()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkNotified(context.Background(), "123_456", "notif-1", at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteNotifiedBefore(t *testing.T) {
	repo, mock := setupMockDB(t)
	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM notified_posts").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteNotifiedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
