package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/media-moderation-api/internal/dto"
	"github.com/noah-isme/media-moderation-api/internal/models"
	appErrors "github.com/noah-isme/media-moderation-api/pkg/errors"
)

type assetCreator interface {
	Create(ctx context.Context, asset *models.MediaAsset) error
	UpdateState(ctx context.Context, id string, state models.ModerationState, tier models.StorageTier) error
	IncrementAttempts(ctx context.Context, id string) error
}

type retryEnqueuer interface {
	Enqueue(ctx context.Context, op *models.RetryOperation) (string, error)
}

// UploadService accepts new media submissions and hands them to the
// classifier. A classifier outage never fails the submission: the asset is
// recorded and the analysis call is parked on the retry queue instead.
type UploadService struct {
	assets     assetCreator
	classifier ClassifierClient
	retries    retryEnqueuer
	notifier   *NotificationService
	medialog   *MediaLogService
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewUploadService constructs the service.
func NewUploadService(assets assetCreator, classifier ClassifierClient, retries retryEnqueuer, notifier *NotificationService, medialog *MediaLogService, metrics *MetricsService, logger *zap.Logger) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadService{
		assets:     assets,
		classifier: classifier,
		retries:    retries,
		notifier:   notifier,
		medialog:   medialog,
		metrics:    metrics,
		logger:     logger,
	}
}

// Submit registers an asset and requests analysis. The tracking id is
// returned in every non-validation outcome, including classifier failure.
func (s *UploadService) Submit(ctx context.Context, req dto.SubmitMediaRequest) (*dto.SubmitMediaResponse, error) {
	start := time.Now()
	if req.TenantSlug == "" || req.Filename == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "tenantSlug and filename are required")
	}

	asset := &models.MediaAsset{
		ID:          uuid.NewString(),
		TenantSlug:  req.TenantSlug,
		Filename:    req.Filename,
		TrackingID:  uuid.NewString(),
		State:       models.StateSubmitted,
		StorageTier: models.TierOriginals,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.assets.Create(ctx, asset); err != nil {
		s.metrics.RecordUpload("error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store submission")
	}

	submitErr := s.classifier.SubmitForAnalysis(ctx, ClassifierRequest{
		TrackingID:  asset.TrackingID,
		TenantSlug:  asset.TenantSlug,
		Filename:    asset.Filename,
		ContextType: req.ContextType,
	})

	// The upload log record is written for every outcome and carries the
	// submission size and processing time.
	s.medialog.LogUpload(ctx, asset.TenantSlug, asset.ID, "media submitted for moderation",
		models.MediaLogDetails{
			"trackingId":  asset.TrackingID,
			"filename":    asset.Filename,
			"contextType": req.ContextType,
			"sizeBytes":   req.SizeBytes,
			"durationMs":  time.Since(start).Milliseconds(),
			"deferred":    submitErr != nil,
		})

	if submitErr != nil {
		s.deferSubmission(ctx, asset, req, submitErr)
		return &dto.SubmitMediaResponse{TrackingID: asset.TrackingID, Status: string(models.StateSubmitted)}, nil
	}

	if err := s.assets.UpdateState(ctx, asset.ID, models.StateAnalyzing, models.TierOriginals); err != nil {
		s.logger.Sugar().Errorw("failed to mark asset analyzing",
			"asset_id", asset.ID, "tracking_id", asset.TrackingID, "error", err)
	}
	s.metrics.RecordUpload("submitted")
	s.notifier.NotifyUploadStatus(ctx, asset.TenantSlug, asset.ID, asset.Filename,
		"media submitted for analysis",
		models.NotificationDetails{"trackingId": asset.TrackingID})
	return &dto.SubmitMediaResponse{TrackingID: asset.TrackingID, Status: string(models.StateAnalyzing)}, nil
}

// deferSubmission parks an analysis request the classifier could not take.
func (s *UploadService) deferSubmission(ctx context.Context, asset *models.MediaAsset, req dto.SubmitMediaRequest, cause error) {
	s.logger.Sugar().Warnw("classifier unavailable, deferring analysis",
		"tracking_id", asset.TrackingID, "tenant", asset.TenantSlug, "error", cause)

	op := &models.RetryOperation{
		ID:         uuid.NewString(),
		Type:       models.RetryOpModerationUpload,
		TrackingID: asset.TrackingID,
		TenantSlug: asset.TenantSlug,
		AssetID:    asset.ID,
		Priority:   models.PriorityHigh,
		Payload: models.RetryPayload{
			"filename":    asset.Filename,
			"contextType": req.ContextType,
		},
	}
	if _, err := s.retries.Enqueue(ctx, op); err != nil {
		s.logger.Sugar().Errorw("failed to enqueue deferred submission",
			"tracking_id", asset.TrackingID, "error", err)
		s.medialog.LogError(ctx, asset.TenantSlug, asset.ID,
			"deferred analysis could not be queued",
			models.MediaLogDetails{"trackingId": asset.TrackingID, "error": err.Error()})
	}
	s.metrics.RecordUpload("deferred")
	s.notifier.NotifyUploadStatus(ctx, asset.TenantSlug, asset.ID, asset.Filename,
		"media accepted, analysis deferred",
		models.NotificationDetails{"trackingId": asset.TrackingID, "deferred": true})
}

// ResubmitAnalysis replays a deferred classifier submission. Registered as
// the retry handler for the moderation_upload operation type.
func (s *UploadService) ResubmitAnalysis(ctx context.Context, op models.RetryOperation) error {
	filename, _ := op.Payload["filename"].(string)
	contextType, _ := op.Payload["contextType"].(string)
	err := s.classifier.SubmitForAnalysis(ctx, ClassifierRequest{
		TrackingID:  op.TrackingID,
		TenantSlug:  op.TenantSlug,
		Filename:    filename,
		ContextType: contextType,
	})
	if err != nil {
		return err
	}
	if op.AssetID != "" {
		if incErr := s.assets.IncrementAttempts(ctx, op.AssetID); incErr != nil {
			s.logger.Sugar().Warnw("failed to bump asset attempt counter",
				"asset_id", op.AssetID, "error", incErr)
		}
		if updErr := s.assets.UpdateState(ctx, op.AssetID, models.StateAnalyzing, models.TierOriginals); updErr != nil {
			s.logger.Sugar().Errorw("failed to mark replayed asset analyzing",
				"asset_id", op.AssetID, "error", updErr)
		}
	}
	s.metrics.RecordUpload("submitted")
	return nil
}
