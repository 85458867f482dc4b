package dto

import "github.com/noah-isme/media-moderation-api/internal/models"

// RegisterSessionRequest opens a live push stream for an administrator console.
// Identity comes from the already-issued bearer token; the body only carries
// delivery preferences.
type RegisterSessionRequest struct {
	TenantScope string                    `form:"tenantScope" json:"tenantScope"`
	Preferences models.SessionPreferences `json:"preferences"`
}

// StorageStatisticsResponse reports per-tier file counts for a tenant.
type StorageStatisticsResponse struct {
	TenantSlug string                     `json:"tenantSlug,omitempty"`
	Tiers      map[models.StorageTier]int `json:"tiers"`
}
