package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/media-moderation-api/internal/models"
	appErrors "github.com/noah-isme/media-moderation-api/pkg/errors"
	"github.com/noah-isme/media-moderation-api/pkg/storage"
)

const backupPrefix = "backup"

// cleanupTiers are the non-production tiers eligible for retention cleanup.
// Files in originals and public are never removed by this subsystem.
var cleanupTiers = []models.StorageTier{models.TierQuarantine, models.TierRejected}

// MoveResult reports the outcome of one tier move. Success false with a
// non-empty Error means the source file was missing, which is common during
// test/replay and must not crash the pipeline.
type MoveResult struct {
	Success  bool   `json:"success"`
	FromPath string `json:"fromPath"`
	ToPath   string `json:"toPath"`
	Error    string `json:"error,omitempty"`
}

// StorageServiceConfig tunes backup and retention behaviour.
type StorageServiceConfig struct {
	KeepBackup bool
	Retention  time.Duration
}

// StorageService moves physical media files between storage tiers based on
// moderation verdicts.
type StorageService struct {
	backend storage.Backend
	metrics *MetricsService
	logger  *zap.Logger
	cfg     StorageServiceConfig
}

// NewStorageService constructs the service.
func NewStorageService(backend storage.Backend, metrics *MetricsService, logger *zap.Logger, cfg StorageServiceConfig) *StorageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	return &StorageService{backend: backend, metrics: metrics, logger: logger, cfg: cfg}
}

// MoveFile relocates the asset's file into the target tier. A nil or
// malformed asset and an unrecognized tier are programming errors and fail
// fast with a validation error; callers are expected to handle them rather
// than retry.
func (s *StorageService) MoveFile(ctx context.Context, asset *models.MediaAsset, target models.StorageTier) (MoveResult, error) {
	if asset == nil || asset.TenantSlug == "" || asset.Filename == "" {
		return MoveResult{}, appErrors.Clone(appErrors.ErrValidation, "asset with tenant slug and filename is required")
	}
	if !models.ValidTier(target) {
		return MoveResult{}, appErrors.Clone(appErrors.ErrUnknownTier, fmt.Sprintf("unrecognized storage tier %q", target))
	}

	fromKey := tierKey(asset.StorageTier, asset.TenantSlug, asset.Filename)
	toKey := tierKey(target, asset.TenantSlug, asset.Filename)
	result := MoveResult{FromPath: fromKey, ToPath: toKey}

	if asset.StorageTier == target {
		result.Success = true
		return result, nil
	}

	srcExists, err := s.backend.Exists(ctx, fromKey)
	if err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "source existence check failed")
	}
	if !srcExists {
		// Replayed move: if the file already sits in the target tier the
		// operation is a no-op success.
		dstExists, err := s.backend.Exists(ctx, toKey)
		if err != nil {
			return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "target existence check failed")
		}
		if dstExists {
			result.Success = true
			return result, nil
		}
		result.Error = fmt.Sprintf("source file %s does not exist", fromKey)
		s.metrics.RecordStorageMove(target, false)
		return result, nil
	}

	if s.cfg.KeepBackup {
		backupKey := backupPrefix + "/" + fromKey
		if err := s.backend.Copy(ctx, fromKey, backupKey); err != nil {
			// Best effort only.
			s.logger.Sugar().Warnw("backup copy failed", "from", fromKey, "error", err)
		}
	}

	if err := s.backend.Copy(ctx, fromKey, toKey); err != nil {
		s.metrics.RecordStorageMove(target, false)
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "copy to target tier failed")
	}
	dstExists, err := s.backend.Exists(ctx, toKey)
	if err != nil || !dstExists {
		s.metrics.RecordStorageMove(target, false)
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "target verification failed after copy")
	}
	if err := s.backend.Delete(ctx, fromKey); err != nil {
		s.logger.Sugar().Warnw("source removal failed after move", "from", fromKey, "error", err)
	}

	result.Success = true
	s.metrics.RecordStorageMove(target, true)
	return result, nil
}

// Statistics returns aggregate file counts per tier, optionally scoped to a tenant.
func (s *StorageService) Statistics(ctx context.Context, tenantSlug string) (map[models.StorageTier]int, error) {
	counts := make(map[models.StorageTier]int, 4)
	for _, tier := range []models.StorageTier{models.TierOriginals, models.TierPublic, models.TierQuarantine, models.TierRejected} {
		prefix := string(tier)
		if tenantSlug != "" {
			prefix = prefix + "/" + tenantSlug
		}
		objects, err := s.backend.List(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("statistics for tier %s: %w", tier, err)
		}
		counts[tier] = len(objects)
	}
	return counts, nil
}

// Cleanup removes files past retention in non-production tiers only. Returns
// the keys it deleted.
func (s *StorageService) Cleanup(ctx context.Context, tenantSlug string) ([]string, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.Retention)
	var deleted []string
	for _, tier := range cleanupTiers {
		prefix := string(tier)
		if tenantSlug != "" {
			prefix = prefix + "/" + tenantSlug
		}
		objects, err := s.backend.List(ctx, prefix)
		if err != nil {
			return deleted, fmt.Errorf("cleanup list tier %s: %w", tier, err)
		}
		for _, obj := range objects {
			if obj.ModTime.After(cutoff) {
				continue
			}
			if err := s.backend.Delete(ctx, obj.Key); err != nil {
				s.logger.Sugar().Warnw("cleanup delete failed", "key", obj.Key, "error", err)
				continue
			}
			deleted = append(deleted, obj.Key)
		}
	}
	if len(deleted) > 0 {
		s.logger.Sugar().Infow("storage cleanup", "deleted", len(deleted), "cutoff", cutoff)
	}
	return deleted, nil
}

func tierKey(tier models.StorageTier, tenantSlug, filename string) string {
	return strings.Join([]string{string(tier), tenantSlug, filename}, "/")
}
