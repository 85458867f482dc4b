package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/media-moderation-api/internal/models"
)

type staleAssetStore interface {
	ListStaleSubmissions(ctx context.Context, cutoff time.Time, limit int) ([]models.MediaAsset, error)
	UpdateState(ctx context.Context, id string, state models.ModerationState, tier models.StorageTier) error
}

// SweepService detects submissions whose verdict never arrived. Assets stuck
// in submitted or analyzing past the age threshold move to the error state
// and raise a system_alert so an operator can resubmit or discard them.
type SweepService struct {
	assets   staleAssetStore
	notifier alertNotifier
	medialog *MediaLogService
	logger   *zap.Logger

	maxAge    time.Duration
	batchSize int
}

// NewSweepService constructs the sweep.
func NewSweepService(assets staleAssetStore, notifier alertNotifier, medialog *MediaLogService, logger *zap.Logger, maxAge time.Duration, batchSize int) *SweepService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &SweepService{
		assets:    assets,
		notifier:  notifier,
		medialog:  medialog,
		logger:    logger,
		maxAge:    maxAge,
		batchSize: batchSize,
	}
}

// Sweep runs one pass and returns how many assets it marked as errored.
func (s *SweepService) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.maxAge)
	stale, err := s.assets.ListStaleSubmissions(ctx, cutoff, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale submissions: %w", err)
	}
	swept := 0
	for _, asset := range stale {
		if err := s.assets.UpdateState(ctx, asset.ID, models.StateError, models.TierOriginals); err != nil {
			s.logger.Sugar().Errorw("failed to mark stale asset errored",
				"asset_id", asset.ID, "tracking_id", asset.TrackingID, "error", err)
			continue
		}
		swept++
		s.medialog.LogError(ctx, asset.TenantSlug, asset.ID,
			"submission stale, no verdict received",
			models.MediaLogDetails{
				"trackingId": asset.TrackingID,
				"state":      string(asset.State),
				"ageHours":   time.Since(asset.CreatedAt).Hours(),
			})
		if s.notifier != nil {
			s.notifier.NotifySystemAlert(ctx,
				fmt.Sprintf("no verdict received for %s within %s", asset.TrackingID, s.maxAge),
				models.NotificationDetails{
					"trackingId": asset.TrackingID,
					"tenantSlug": asset.TenantSlug,
					"assetId":    asset.ID,
					"filename":   asset.Filename,
					"lastState":  string(asset.State),
				},
				models.NotifPriorityHigh,
			)
		}
	}
	if swept > 0 {
		s.logger.Sugar().Warnw("stale submission sweep completed", "swept", swept, "cutoff", cutoff)
	}
	return swept, nil
}
