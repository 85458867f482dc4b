package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/media-moderation-api/internal/models"
)

// MediaLogRepository persists durable pipeline event records.
type MediaLogRepository struct {
	db *sqlx.DB
}

// NewMediaLogRepository constructs the repository.
func NewMediaLogRepository(db *sqlx.DB) *MediaLogRepository {
	return &MediaLogRepository{db: db}
}

// Create stores one log entry.
func (r *MediaLogRepository) Create(ctx context.Context, entry *models.MediaLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO media_logs
	(id, category, tenant_slug, asset_id, message, details, created_at)
	VALUES (:id, :category, :tenant_slug, :asset_id, :message, :details, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create media log entry: %w", err)
	}
	return nil
}

// DeleteOlderThan purges entries past the retention window.
func (r *MediaLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM media_logs WHERE created_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup media logs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check media log cleanup rows: %w", err)
	}
	return affected, nil
}
