package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/media-moderation-api/internal/dto"
	"github.com/noah-isme/media-moderation-api/internal/models"
	appErrors "github.com/noah-isme/media-moderation-api/pkg/errors"
)

// verdictDedupeTTL bounds how long a processed verdict blocks re-delivery of
// the identical callback.
const verdictDedupeTTL = 24 * time.Hour

type assetVerdictStore interface {
	GetByTrackingID(ctx context.Context, trackingID string) (*models.MediaAsset, error)
	ApplyVerdict(ctx context.Context, id string, state models.ModerationState, tier models.StorageTier, score float64, risk models.RiskLevel, humanReview bool, verdictAt time.Time) error
}

type verdictCache interface {
	ClaimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type fileMover interface {
	MoveFile(ctx context.Context, asset *models.MediaAsset, target models.StorageTier) (MoveResult, error)
}

// CallbackService applies classifier verdicts to assets: state transition,
// storage move, log entry, and one moderation_result notification per verdict.
type CallbackService struct {
	assets   assetVerdictStore
	cache    verdictCache
	mover    fileMover
	retries  retryEnqueuer
	notifier *NotificationService
	medialog *MediaLogService
	metrics  *MetricsService
	logger   *zap.Logger

	scoreThreshold float64
}

// NewCallbackService constructs the service. scoreThreshold gates approval:
// verdicts at or above it never land in an approved state.
func NewCallbackService(assets assetVerdictStore, cache verdictCache, mover fileMover, retries retryEnqueuer, notifier *NotificationService, medialog *MediaLogService, metrics *MetricsService, logger *zap.Logger, scoreThreshold float64) *CallbackService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if scoreThreshold <= 0 {
		scoreThreshold = 30
	}
	return &CallbackService{
		assets:         assets,
		cache:          cache,
		mover:          mover,
		retries:        retries,
		notifier:       notifier,
		medialog:       medialog,
		metrics:        metrics,
		logger:         logger,
		scoreThreshold: scoreThreshold,
	}
}

// HandleVerdict processes one classifier callback. Unknown tracking ids are
// logged and dropped; duplicate deliveries of an already-applied verdict are
// silent no-ops.
func (s *CallbackService) HandleVerdict(ctx context.Context, req dto.VerdictRequest) error {
	start := time.Now()

	asset, err := s.assets.GetByTrackingID(ctx, req.TrackingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Sugar().Errorw("verdict for unknown tracking id dropped",
				"tracking_id", req.TrackingID, "status", req.ModerationStatus)
			s.medialog.LogError(ctx, req.TenantSlug, "",
				"verdict received for unknown tracking id",
				models.MediaLogDetails{"trackingId": req.TrackingID, "status": string(req.ModerationStatus)})
			return appErrors.ErrUnknownTracking
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "resolve tracking id")
	}

	state, humanReview, err := s.resolveState(req)
	if err != nil {
		s.logger.Sugar().Errorw("verdict with unrecognized status dropped",
			"tracking_id", req.TrackingID, "status", req.ModerationStatus)
		return err
	}
	tier, err := models.TierForState(state, asset.StorageTier)
	if err != nil {
		return appErrors.Clone(appErrors.ErrUnknownTier, err.Error())
	}

	if asset.State.Terminal() {
		if asset.State == state && asset.StorageTier == tier {
			s.logger.Sugar().Debugw("duplicate verdict ignored",
				"tracking_id", req.TrackingID, "state", state)
			return nil
		}
		// Terminal states only change through a manual override, never
		// through a late or conflicting classifier callback.
		s.logger.Sugar().Errorw("conflicting verdict for resolved asset dropped",
			"tracking_id", req.TrackingID, "current_state", asset.State, "status", req.ModerationStatus)
		s.medialog.LogError(ctx, asset.TenantSlug, asset.ID,
			"verdict for already-resolved asset dropped",
			models.MediaLogDetails{
				"trackingId":   asset.TrackingID,
				"currentState": string(asset.State),
				"status":       string(req.ModerationStatus),
			})
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("asset %s already resolved as %s", req.TrackingID, asset.State))
	}
	if s.cache != nil {
		key := fmt.Sprintf("verdict:%s:%s", req.TrackingID, state)
		claimed, claimErr := s.cache.ClaimOnce(ctx, key, verdictDedupeTTL)
		if claimErr != nil {
			s.logger.Sugar().Warnw("verdict dedupe claim failed, continuing",
				"tracking_id", req.TrackingID, "error", claimErr)
		} else if !claimed {
			s.logger.Sugar().Debugw("duplicate verdict delivery suppressed",
				"tracking_id", req.TrackingID, "state", state)
			return nil
		}
	}

	return s.applyTransition(ctx, asset, req, state, tier, humanReview, asset.StorageTier, start)
}

// resolveState maps the classifier's status onto the asset state, applying the
// approval gate: a verdict cannot approve with a score at or above the
// threshold or with detected violations, it is flagged for review instead.
func (s *CallbackService) resolveState(req dto.VerdictRequest) (models.ModerationState, bool, error) {
	state := req.ModerationStatus
	switch state {
	case models.StateApproved, models.StateApprovedBlurred, models.StateRejected,
		models.StateFlagged, models.StateQuarantined, models.StateError:
	default:
		return "", false, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("unrecognized moderation status %q", state))
	}
	humanReview := req.HumanReview
	if state == models.StateApproved || state == models.StateApprovedBlurred {
		if req.ModerationScore >= s.scoreThreshold || len(req.ViolationTypes) > 0 {
			state = models.StateFlagged
			humanReview = true
		}
	}
	if state == models.StateFlagged || state == models.StateQuarantined {
		humanReview = true
	}
	return state, humanReview, nil
}

// applyTransition commits the verdict: state and tier in one update, then the
// physical move, then log and notification. A failed move parks the whole
// transition on the retry queue; the notification waits for the replay.
func (s *CallbackService) applyTransition(ctx context.Context, asset *models.MediaAsset, req dto.VerdictRequest, state models.ModerationState, tier models.StorageTier, humanReview bool, fromTier models.StorageTier, start time.Time) error {
	now := time.Now().UTC()
	if err := s.assets.ApplyVerdict(ctx, asset.ID, state, tier, req.ModerationScore, req.RiskLevel, humanReview, now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "apply verdict")
	}

	moveAsset := *asset
	moveAsset.StorageTier = fromTier
	result, err := s.mover.MoveFile(ctx, &moveAsset, tier)
	if err != nil {
		// Validation failure from the storage layer signals a data error,
		// never a transient fault. Fail fast, do not retry.
		s.medialog.LogError(ctx, asset.TenantSlug, asset.ID,
			"storage move rejected",
			models.MediaLogDetails{"trackingId": asset.TrackingID, "targetTier": string(tier), "error": err.Error()})
		return err
	}
	if !result.Success {
		s.deferTransition(ctx, asset, req, state, fromTier, result.Error)
		return nil
	}

	s.medialog.LogModeration(ctx, asset.TenantSlug, asset.ID, "verdict applied",
		models.MediaLogDetails{
			"trackingId":  asset.TrackingID,
			"state":       string(state),
			"score":       req.ModerationScore,
			"riskLevel":   string(req.RiskLevel),
			"attempts":    asset.Attempts,
			"durationMs":  time.Since(start).Milliseconds(),
			"fromTier":    string(fromTier),
			"targetTier":  string(tier),
			"humanReview": humanReview,
		})

	s.notifier.NotifyModerationResult(ctx,
		ModerationResultNotification(asset, state, req.ModerationScore, req.RiskLevel, humanReview))
	s.metrics.RecordVerdict(state, time.Since(start))
	return nil
}

// deferTransition parks a verdict whose storage move failed so the whole
// transition replays on the retry queue.
func (s *CallbackService) deferTransition(ctx context.Context, asset *models.MediaAsset, req dto.VerdictRequest, state models.ModerationState, fromTier models.StorageTier, cause string) {
	s.logger.Sugar().Warnw("storage move failed, deferring verdict transition",
		"tracking_id", asset.TrackingID, "state", state, "error", cause)
	op := &models.RetryOperation{
		ID:         uuid.NewString(),
		Type:       models.RetryOpModerationCallback,
		TrackingID: asset.TrackingID,
		TenantSlug: asset.TenantSlug,
		AssetID:    asset.ID,
		Priority:   models.PriorityMedium,
		Payload: models.RetryPayload{
			"moderationStatus":    string(req.ModerationStatus),
			"moderationScore":     req.ModerationScore,
			"riskLevel":           string(req.RiskLevel),
			"humanReviewRequired": req.HumanReview,
			"violationTypes":      req.ViolationTypes,
			"fromTier":            string(fromTier),
			"filename":            asset.Filename,
		},
	}
	if _, err := s.retries.Enqueue(ctx, op); err != nil {
		s.logger.Sugar().Errorw("failed to enqueue deferred verdict",
			"tracking_id", asset.TrackingID, "error", err)
	}
	s.medialog.LogFileStorage(ctx, asset.TenantSlug, asset.ID,
		"storage move deferred to retry queue",
		models.MediaLogDetails{"trackingId": asset.TrackingID, "state": string(state), "error": cause})
}

// ReplayVerdict re-applies a deferred verdict transition. Registered as the
// retry handler for the moderation_callback operation type.
func (s *CallbackService) ReplayVerdict(ctx context.Context, op models.RetryOperation) error {
	asset, err := s.assets.GetByTrackingID(ctx, op.TrackingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("asset for tracking id %s no longer exists", op.TrackingID)
		}
		return err
	}

	req := dto.VerdictRequest{
		TrackingID:       op.TrackingID,
		TenantSlug:       op.TenantSlug,
		ModerationStatus: models.ModerationState(stringField(op.Payload, "moderationStatus")),
		ModerationScore:  floatField(op.Payload, "moderationScore"),
		RiskLevel:        models.RiskLevel(stringField(op.Payload, "riskLevel")),
		HumanReview:      boolField(op.Payload, "humanReviewRequired"),
	}
	state, humanReview, err := s.resolveState(req)
	if err != nil {
		return err
	}
	fromTier := models.StorageTier(stringField(op.Payload, "fromTier"))
	if !models.ValidTier(fromTier) {
		fromTier = models.TierOriginals
	}
	tier, err := models.TierForState(state, fromTier)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := s.assets.ApplyVerdict(ctx, asset.ID, state, tier, req.ModerationScore, req.RiskLevel, humanReview, now); err != nil {
		return err
	}
	moveAsset := *asset
	moveAsset.StorageTier = fromTier
	result, err := s.mover.MoveFile(ctx, &moveAsset, tier)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("storage move failed: %s", result.Error)
	}

	s.medialog.LogModeration(ctx, asset.TenantSlug, asset.ID, "deferred verdict applied",
		models.MediaLogDetails{
			"trackingId": asset.TrackingID,
			"state":      string(state),
			"score":      req.ModerationScore,
			"attempts":   op.Attempts,
		})
	s.notifier.NotifyModerationResult(ctx,
		ModerationResultNotification(asset, state, req.ModerationScore, req.RiskLevel, humanReview))
	s.metrics.RecordVerdict(state, 0)
	return nil
}

func stringField(p models.RetryPayload, key string) string {
	v, _ := p[key].(string)
	return v
}

func floatField(p models.RetryPayload, key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func boolField(p models.RetryPayload, key string) bool {
	v, _ := p[key].(bool)
	return v
}
