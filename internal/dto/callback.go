package dto

import "github.com/noah-isme/media-moderation-api/internal/models"

// VerdictRequest is the shape the external classifier posts back once it has
// analyzed a submission.
type VerdictRequest struct {
	TrackingID       string                 `json:"trackingId" binding:"required"`
	TenantSlug       string                 `json:"tenantSlug"`
	Filename         string                 `json:"filename"`
	ModerationStatus models.ModerationState `json:"moderationStatus" binding:"required"`
	ModerationScore  float64                `json:"moderationScore"`
	RiskLevel        models.RiskLevel       `json:"riskLevel"`
	HumanReview      bool                   `json:"humanReviewRequired"`
	DetectedParts    map[string]float64     `json:"detectedParts,omitempty"`
	ViolationTypes   []string               `json:"violationTypes,omitempty"`
}
