package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MediaLogCategory classifies persisted pipeline events.
type MediaLogCategory string

const (
	LogCategoryUpload      MediaLogCategory = "upload"
	LogCategoryModeration  MediaLogCategory = "moderation"
	LogCategoryError       MediaLogCategory = "error"
	LogCategoryFileStorage MediaLogCategory = "file_storage"
	LogCategoryPerformance MediaLogCategory = "performance"
)

// MediaLogEntry is one durable observability record. Writing one must never
// fail a pipeline operation; persistence errors are swallowed by the service.
type MediaLogEntry struct {
	ID         string           `db:"id" json:"id"`
	Category   MediaLogCategory `db:"category" json:"category"`
	TenantSlug string           `db:"tenant_slug" json:"tenantSlug,omitempty"`
	AssetID    string           `db:"asset_id" json:"assetId,omitempty"`
	Message    string           `db:"message" json:"message"`
	Details    MediaLogDetails  `db:"details" json:"details,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"createdAt"`
}

// MediaLogDetails is the structured payload persisted as JSONB.
type MediaLogDetails map[string]interface{}

// Value marshals details for persistence.
func (d MediaLogDetails) Value() (driver.Value, error) {
	if d == nil {
		d = MediaLogDetails{}
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal media log details: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB back into the map.
func (d *MediaLogDetails) Scan(value interface{}) error {
	if value == nil {
		*d = MediaLogDetails{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for MediaLogDetails", value)
	}
	if len(data) == 0 {
		*d = MediaLogDetails{}
		return nil
	}
	if err := json.Unmarshal(data, d); err != nil {
		return fmt.Errorf("unmarshal media log details: %w", err)
	}
	return nil
}
