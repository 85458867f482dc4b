package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/media-moderation-api/internal/models"
)

// MediaAssetRepository handles media asset persistence.
type MediaAssetRepository struct {
	db *sqlx.DB
}

// NewMediaAssetRepository constructs the repository.
func NewMediaAssetRepository(db *sqlx.DB) *MediaAssetRepository {
	return &MediaAssetRepository{db: db}
}

// Create stores a newly submitted asset.
func (r *MediaAssetRepository) Create(ctx context.Context, asset *models.MediaAsset) error {
	if asset.ID == "" {
		asset.ID = uuid.NewString()
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now().UTC()
	}
	if asset.State == "" {
		asset.State = models.StateSubmitted
	}
	if asset.StorageTier == "" {
		asset.StorageTier = models.TierOriginals
	}
	const query = `INSERT INTO media_assets
	(id, tenant_slug, filename, tracking_id, state, moderation_score, risk_level, human_review, storage_tier, attempts, created_at, last_verdict_at)
	VALUES (:id, :tenant_slug, :filename, :tracking_id, :state, :moderation_score, :risk_level, :human_review, :storage_tier, :attempts, :created_at, :last_verdict_at)`
	if _, err := r.db.NamedExecContext(ctx, query, asset); err != nil {
		return fmt.Errorf("create media asset: %w", err)
	}
	return nil
}

// GetByTrackingID resolves the asset a classifier callback refers to.
func (r *MediaAssetRepository) GetByTrackingID(ctx context.Context, trackingID string) (*models.MediaAsset, error) {
	const query = `SELECT id, tenant_slug, filename, tracking_id, state, moderation_score, risk_level,
       human_review, storage_tier, attempts, created_at, last_verdict_at
	FROM media_assets WHERE tracking_id = $1`
	var asset models.MediaAsset
	if err := r.db.GetContext(ctx, &asset, query, trackingID); err != nil {
		return nil, err
	}
	return &asset, nil
}

// ApplyVerdict updates state, tier, and verdict fields in one statement so the
// tier invariant cannot be observed half-applied.
func (r *MediaAssetRepository) ApplyVerdict(ctx context.Context, id string, state models.ModerationState, tier models.StorageTier, score float64, risk models.RiskLevel, humanReview bool, verdictAt time.Time) error {
	const query = `UPDATE media_assets
	SET state = $2, storage_tier = $3, moderation_score = $4, risk_level = $5, human_review = $6, last_verdict_at = $7
	WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, state, tier, score, risk, humanReview, verdictAt)
	if err != nil {
		return fmt.Errorf("apply verdict: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check verdict rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("asset %s not found", id)
	}
	return nil
}

// UpdateState moves an asset between non-verdict states, keeping the tier in
// step in the same statement.
func (r *MediaAssetRepository) UpdateState(ctx context.Context, id string, state models.ModerationState, tier models.StorageTier) error {
	const query = `UPDATE media_assets SET state = $2, storage_tier = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, state, tier)
	if err != nil {
		return fmt.Errorf("update asset state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check state rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("asset %s not found", id)
	}
	return nil
}

// IncrementAttempts bumps the retry counter tracked on the asset itself.
func (r *MediaAssetRepository) IncrementAttempts(ctx context.Context, id string) error {
	const query = `UPDATE media_assets SET attempts = attempts + 1 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("increment asset attempts: %w", err)
	}
	return nil
}

// ListStaleSubmissions returns assets stuck in submitted/analyzing since
// before the cutoff. Used by the stale-submission sweep.
func (r *MediaAssetRepository) ListStaleSubmissions(ctx context.Context, cutoff time.Time, limit int) ([]models.MediaAsset, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `SELECT id, tenant_slug, filename, tracking_id, state, moderation_score, risk_level,
       human_review, storage_tier, attempts, created_at, last_verdict_at
	FROM media_assets
	WHERE state IN ('submitted', 'analyzing') AND created_at < $1
	ORDER BY created_at ASC LIMIT $2`
	var assets []models.MediaAsset
	if err := r.db.SelectContext(ctx, &assets, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list stale submissions: %w", err)
	}
	return assets, nil
}
