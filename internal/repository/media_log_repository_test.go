package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/media-moderation-api/internal/models"
)

func newMediaLogRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestMediaLogRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMediaLogRepoMock(t)
	defer cleanup()
	repo := NewMediaLogRepository(db)

	mock.ExpectExec("INSERT INTO media_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.MediaLogEntry{
		Category:   models.LogCategoryUpload,
		TenantSlug: "acme",
		Message:    "media submitted for moderation",
		Details:    models.MediaLogDetails{"trackingId": "trk-1"},
	}
	err := repo.Create(context.Background(), entry)
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaLogRepositoryDeleteOlderThan(t *testing.T) {
	db, mock, cleanup := newMediaLogRepoMock(t)
	defer cleanup()
	repo := NewMediaLogRepository(db)

	cutoff := time.Now().Add(-30 * 24 * time.Hour)
	mock.ExpectExec("DELETE FROM media_logs WHERE created_at < \\$1").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 12))

	deleted, err := repo.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(12), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
