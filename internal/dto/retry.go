package dto

import "github.com/noah-isme/media-moderation-api/internal/models"

// AddRetryOperationRequest enqueues a deferred unit of work from the ops surface.
type AddRetryOperationRequest struct {
	Type       models.RetryOperationType `json:"type" binding:"required"`
	TrackingID string                    `json:"trackingId"`
	BatchID    string                    `json:"batchId"`
	TenantSlug string                    `json:"tenantSlug"`
	AssetID    string                    `json:"assetId"`
	Payload    models.RetryPayload       `json:"payload"`
	Priority   models.RetryPriority      `json:"priority"`
}

// AddRetryOperationResponse acknowledges the enqueue.
type AddRetryOperationResponse struct {
	Success     bool   `json:"success"`
	OperationID string `json:"operationId"`
}
