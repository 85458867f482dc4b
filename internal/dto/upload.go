package dto

// SubmitMediaRequest carries the metadata the CRUD layer hands over when a new
// asset enters moderation.
type SubmitMediaRequest struct {
	TenantSlug  string `form:"tenantSlug" json:"tenantSlug" binding:"required"`
	Filename    string `form:"filename" json:"filename" binding:"required"`
	ContextType string `form:"contextType" json:"contextType"`
	UsageIntent string `form:"usageIntent" json:"usageIntent"`
	SizeBytes   int64  `form:"sizeBytes" json:"sizeBytes"`
}

// SubmitMediaResponse returns the tracking id correlating the submission with
// its eventual callback.
type SubmitMediaResponse struct {
	TrackingID string `json:"trackingId"`
	Status     string `json:"status"`
}
