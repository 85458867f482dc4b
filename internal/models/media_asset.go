package models

import (
	"fmt"
	"time"
)

// ModerationState enumerates the moderation lifecycle of a media asset.
type ModerationState string

const (
	StateSubmitted       ModerationState = "submitted"
	StateAnalyzing       ModerationState = "analyzing"
	StateApproved        ModerationState = "approved"
	StateApprovedBlurred ModerationState = "approved_blurred"
	StateRejected        ModerationState = "rejected"
	StateFlagged         ModerationState = "flagged"
	StateQuarantined     ModerationState = "quarantined"
	StateError           ModerationState = "error"
)

// Terminal reports whether the state is an end state of the pipeline.
func (s ModerationState) Terminal() bool {
	switch s {
	case StateApproved, StateApprovedBlurred, StateRejected, StateFlagged, StateQuarantined, StateError:
		return true
	}
	return false
}

// StorageTier enumerates the directory/bucket classes a file may reside in.
type StorageTier string

const (
	TierOriginals  StorageTier = "originals"
	TierPublic     StorageTier = "public"
	TierQuarantine StorageTier = "quarantine"
	TierRejected   StorageTier = "rejected"
)

// ValidTier reports whether the tier is one of the known storage classes.
func ValidTier(t StorageTier) bool {
	switch t {
	case TierOriginals, TierPublic, TierQuarantine, TierRejected:
		return true
	}
	return false
}

// RiskLevel is the classifier's coarse risk indicator.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// MediaAsset is one media item under moderation. State is mutated only by the
// callback service; tier only by the storage service. State and tier always
// change inside the same UPDATE so no asset sits in public while not approved.
type MediaAsset struct {
	ID              string          `db:"id" json:"id"`
	TenantSlug      string          `db:"tenant_slug" json:"tenantSlug"`
	Filename        string          `db:"filename" json:"filename"`
	TrackingID      string          `db:"tracking_id" json:"trackingId"`
	State           ModerationState `db:"state" json:"state"`
	ModerationScore float64         `db:"moderation_score" json:"moderationScore"`
	RiskLevel       RiskLevel       `db:"risk_level" json:"riskLevel"`
	HumanReview     bool            `db:"human_review" json:"humanReview"`
	StorageTier     StorageTier     `db:"storage_tier" json:"storageTier"`
	Attempts        int             `db:"attempts" json:"attempts"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	LastVerdictAt   *time.Time      `db:"last_verdict_at" json:"lastVerdictAt,omitempty"`
}

// TierForState returns the storage tier implied by a moderation state.
// Flagged assets keep their current tier with a review marker: already-public
// files stay public, anything else stays in originals rather than being
// promoted by a flag verdict. Quarantined assets leave public immediately.
func TierForState(state ModerationState, current StorageTier) (StorageTier, error) {
	switch state {
	case StateSubmitted, StateAnalyzing, StateError:
		return TierOriginals, nil
	case StateApproved, StateApprovedBlurred:
		return TierPublic, nil
	case StateFlagged:
		if current == TierPublic {
			return TierPublic, nil
		}
		return TierOriginals, nil
	case StateQuarantined:
		return TierQuarantine, nil
	case StateRejected:
		return TierRejected, nil
	}
	return "", fmt.Errorf("no storage tier for state %q", state)
}
