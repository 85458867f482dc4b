package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/media-moderation-api/internal/models"
)

func newAssetRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestMediaAssetRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newAssetRepoMock(t)
	defer cleanup()
	repo := NewMediaAssetRepository(db)

	mock.ExpectExec("INSERT INTO media_assets").WillReturnResult(sqlmock.NewResult(1, 1))

	asset := &models.MediaAsset{TenantSlug: "acme", Filename: "photo.jpg", TrackingID: "trk-1"}
	err := repo.Create(context.Background(), asset)
	require.NoError(t, err)
	assert.NotEmpty(t, asset.ID)
	assert.Equal(t, models.StateSubmitted, asset.State)
	assert.Equal(t, models.TierOriginals, asset.StorageTier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaAssetRepositoryGetByTrackingID(t *testing.T) {
	db, mock, cleanup := newAssetRepoMock(t)
	defer cleanup()
	repo := NewMediaAssetRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "tenant_slug", "filename", "tracking_id", "state", "moderation_score", "risk_level", "human_review", "storage_tier", "attempts", "created_at", "last_verdict_at"}).
		AddRow("a1", "acme", "photo.jpg", "trk-1", string(models.StateAnalyzing), 0.0, string(models.RiskLow), false, string(models.TierOriginals), 0, now, nil)
	mock.ExpectQuery("SELECT .+ FROM media_assets WHERE tracking_id").
		WithArgs("trk-1").
		WillReturnRows(rows)

	asset, err := repo.GetByTrackingID(context.Background(), "trk-1")
	require.NoError(t, err)
	assert.Equal(t, "a1", asset.ID)
	assert.Equal(t, models.StateAnalyzing, asset.State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaAssetRepositoryGetByTrackingIDMissing(t *testing.T) {
	db, mock, cleanup := newAssetRepoMock(t)
	defer cleanup()
	repo := NewMediaAssetRepository(db)

	mock.ExpectQuery("SELECT .+ FROM media_assets WHERE tracking_id").
		WithArgs("trk-missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByTrackingID(context.Background(), "trk-missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaAssetRepositoryApplyVerdict(t *testing.T) {
	db, mock, cleanup := newAssetRepoMock(t)
	defer cleanup()
	repo := NewMediaAssetRepository(db)

	verdictAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE media_assets")).
		WithArgs("a1", string(models.StateApproved), string(models.TierPublic), 12.5, string(models.RiskLow), false, verdictAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ApplyVerdict(context.Background(), "a1", models.StateApproved, models.TierPublic, 12.5, models.RiskLow, false, verdictAt)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaAssetRepositoryApplyVerdictMissing(t *testing.T) {
	db, mock, cleanup := newAssetRepoMock(t)
	defer cleanup()
	repo := NewMediaAssetRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE media_assets")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ApplyVerdict(context.Background(), "gone", models.StateRejected, models.TierRejected, 90, models.RiskHigh, true, time.Now())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaAssetRepositoryUpdateState(t *testing.T) {
	db, mock, cleanup := newAssetRepoMock(t)
	defer cleanup()
	repo := NewMediaAssetRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE media_assets SET state = $2, storage_tier = $3 WHERE id = $1")).
		WithArgs("a1", string(models.StateAnalyzing), string(models.TierOriginals)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateState(context.Background(), "a1", models.StateAnalyzing, models.TierOriginals)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaAssetRepositoryListStaleSubmissions(t *testing.T) {
	db, mock, cleanup := newAssetRepoMock(t)
	defer cleanup()
	repo := NewMediaAssetRepository(db)

	cutoff := time.Now().Add(-24 * time.Hour)
	created := cutoff.Add(-time.Hour)
	rows := sqlmock.NewRows([]string{"id", "tenant_slug", "filename", "tracking_id", "state", "moderation_score", "risk_level", "human_review", "storage_tier", "attempts", "created_at", "last_verdict_at"}).
		AddRow("a1", "acme", "old.jpg", "trk-old", string(models.StateSubmitted), 0.0, string(models.RiskLow), false, string(models.TierOriginals), 0, created, nil)
	mock.ExpectQuery("SELECT .+ FROM media_assets\\s+WHERE state IN").
		WithArgs(cutoff, 50).
		WillReturnRows(rows)

	stale, err := repo.ListStaleSubmissions(context.Background(), cutoff, 50)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "trk-old", stale[0].TrackingID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
