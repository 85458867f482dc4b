package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// NotificationType enumerates the fan-out-worthy pipeline events.
type NotificationType string

const (
	NotifUploadStatus     NotificationType = "upload_status"
	NotifModerationResult NotificationType = "moderation_result"
	NotifSystemAlert      NotificationType = "system_alert"
	NotifError            NotificationType = "error"
	NotifFileStorage      NotificationType = "file_storage"
	NotifBatchOperation   NotificationType = "batch_operation"
)

// NotificationLevel grades a notification; sessions can set a minimum.
type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelSuccess NotificationLevel = "success"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
)

// Rank orders levels as info < success < warning < error.
func (l NotificationLevel) Rank() int {
	switch l {
	case LevelError:
		return 4
	case LevelWarning:
		return 3
	case LevelSuccess:
		return 2
	default:
		return 1
	}
}

// NotificationPriority controls rate limiting and escalation behaviour.
// Urgent notifications bypass the hourly cap and session filtering.
type NotificationPriority string

const (
	NotifPriorityLow    NotificationPriority = "low"
	NotifPriorityNormal NotificationPriority = "normal"
	NotifPriorityMedium NotificationPriority = "medium"
	NotifPriorityHigh   NotificationPriority = "high"
	NotifPriorityUrgent NotificationPriority = "urgent"
)

// Notification is one persisted fan-out event. TenantSlug empty means system-wide.
type Notification struct {
	ID             string               `db:"id" json:"id"`
	Type           NotificationType     `db:"notif_type" json:"type"`
	Level          NotificationLevel    `db:"level" json:"level"`
	TenantSlug     string               `db:"tenant_slug" json:"tenantSlug,omitempty"`
	AssetID        string               `db:"asset_id" json:"assetId,omitempty"`
	Filename       string               `db:"filename" json:"filename,omitempty"`
	Message        string               `db:"message" json:"message"`
	Details        NotificationDetails  `db:"details" json:"details,omitempty"`
	ActionRequired bool                 `db:"action_required" json:"actionRequired"`
	Priority       NotificationPriority `db:"priority" json:"priority"`
	CreatedAt      time.Time            `db:"created_at" json:"createdAt"`
}

// NotificationDetails is the structured details payload persisted as JSONB.
type NotificationDetails map[string]interface{}

// Value marshals details for persistence.
func (d NotificationDetails) Value() (driver.Value, error) {
	if d == nil {
		d = NotificationDetails{}
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal notification details: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB details back into the map.
func (d *NotificationDetails) Scan(value interface{}) error {
	if value == nil {
		*d = NotificationDetails{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for NotificationDetails", value)
	}
	if len(data) == 0 {
		*d = NotificationDetails{}
		return nil
	}
	if err := json.Unmarshal(data, d); err != nil {
		return fmt.Errorf("unmarshal notification details: %w", err)
	}
	return nil
}

// NotificationStatistics summarizes persisted notifications for dashboards.
type NotificationStatistics struct {
	Total          int                      `json:"total"`
	ByType         map[NotificationType]int `json:"byType"`
	ActiveSessions int                      `json:"activeSessions"`
	QueuedPending  int                      `json:"queuedPending"`
	SentThisWindow int                      `json:"sentThisWindow"`
	GeneratedAt    time.Time                `json:"generatedAt"`
}
