package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/media-moderation-api/internal/models"
)

type mediaLogStore interface {
	Create(ctx context.Context, entry *models.MediaLogEntry) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// MediaLogService is the single observability sink for the pipeline. Every
// method persists a structured record and mirrors it to the process logger.
// A logging call never fails the pipeline operation that triggered it:
// persistence errors are logged and swallowed.
type MediaLogService struct {
	repo      mediaLogStore
	logger    *zap.Logger
	retention time.Duration
}

// NewMediaLogService constructs the service.
func NewMediaLogService(repo mediaLogStore, logger *zap.Logger, retention time.Duration) *MediaLogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &MediaLogService{repo: repo, logger: logger, retention: retention}
}

// LogUpload records a submission event with size and timing observability.
func (s *MediaLogService) LogUpload(ctx context.Context, tenantSlug, assetID, message string, details models.MediaLogDetails) {
	s.persist(ctx, models.LogCategoryUpload, tenantSlug, assetID, message, details)
}

// LogModeration records a verdict outcome.
func (s *MediaLogService) LogModeration(ctx context.Context, tenantSlug, assetID, message string, details models.MediaLogDetails) {
	s.persist(ctx, models.LogCategoryModeration, tenantSlug, assetID, message, details)
}

// LogError records a pipeline failure.
func (s *MediaLogService) LogError(ctx context.Context, tenantSlug, assetID, message string, details models.MediaLogDetails) {
	s.persist(ctx, models.LogCategoryError, tenantSlug, assetID, message, details)
}

// LogFileStorage records a tier move.
func (s *MediaLogService) LogFileStorage(ctx context.Context, tenantSlug, assetID, message string, details models.MediaLogDetails) {
	s.persist(ctx, models.LogCategoryFileStorage, tenantSlug, assetID, message, details)
}

// LogPerformance records a timing sample.
func (s *MediaLogService) LogPerformance(ctx context.Context, message string, details models.MediaLogDetails) {
	s.persist(ctx, models.LogCategoryPerformance, "", "", message, details)
}

// Cleanup purges records older than the retention window.
func (s *MediaLogService) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.retention)
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Sugar().Infow("media log cleanup", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}

func (s *MediaLogService) persist(ctx context.Context, category models.MediaLogCategory, tenantSlug, assetID, message string, details models.MediaLogDetails) {
	s.logger.Sugar().Infow(message,
		"category", category,
		"tenant", tenantSlug,
		"asset_id", assetID,
		"details", details,
	)
	entry := &models.MediaLogEntry{
		Category:   category,
		TenantSlug: tenantSlug,
		AssetID:    assetID,
		Message:    message,
		Details:    details,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Sugar().Warnw("media log persist failed", "category", category, "error", err)
	}
}
