package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RetryOperationType enumerates the deferred work kinds the queue understands.
type RetryOperationType string

const (
	RetryOpModerationUpload   RetryOperationType = "moderation_upload"
	RetryOpModerationCallback RetryOperationType = "moderation_callback"
)

// KnownRetryOperationType reports whether the processor has a handler for the type.
func KnownRetryOperationType(t RetryOperationType) bool {
	return t == RetryOpModerationUpload || t == RetryOpModerationCallback
}

// RetryPriority orders due operations; higher priorities drain first.
type RetryPriority string

const (
	PriorityLow    RetryPriority = "low"
	PriorityMedium RetryPriority = "medium"
	PriorityHigh   RetryPriority = "high"
)

// Weight maps a priority onto a sortable integer.
func (p RetryPriority) Weight() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

// RetryStatus captures the queue lifecycle of one operation.
type RetryStatus string

const (
	RetryStatusPending    RetryStatus = "pending"
	RetryStatusInProgress RetryStatus = "in_progress"
	RetryStatusSucceeded  RetryStatus = "succeeded"
	RetryStatusFailed     RetryStatus = "failed"
	RetryStatusAbandoned  RetryStatus = "abandoned"
)

// Terminal reports whether the status ends processing for good.
func (s RetryStatus) Terminal() bool {
	return s == RetryStatusSucceeded || s == RetryStatusAbandoned
}

// RetryOperation is one deferred unit of pipeline work. Attempts never exceed
// the configured maximum; once they do the status becomes abandoned and a
// system_alert escalation is emitted exactly once.
type RetryOperation struct {
	ID            string             `db:"id" json:"id"`
	Type          RetryOperationType `db:"op_type" json:"type"`
	TrackingID    string             `db:"tracking_id" json:"trackingId"`
	BatchID       string             `db:"batch_id" json:"batchId,omitempty"`
	TenantSlug    string             `db:"tenant_slug" json:"tenantSlug"`
	AssetID       string             `db:"asset_id" json:"assetId,omitempty"`
	Payload       RetryPayload       `db:"payload" json:"payload"`
	Attempts      int                `db:"attempts" json:"attempts"`
	NextAttemptAt time.Time          `db:"next_attempt_at" json:"nextAttemptAt"`
	Priority      RetryPriority      `db:"priority" json:"priority"`
	Status        RetryStatus        `db:"status" json:"status"`
	LastError     *string            `db:"last_error" json:"lastError,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updatedAt"`
}

// RetryPayload is the opaque operation payload persisted as JSONB.
type RetryPayload map[string]interface{}

// Value marshals the payload for persistence.
func (p RetryPayload) Value() (driver.Value, error) {
	if p == nil {
		p = RetryPayload{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal retry payload: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB payloads back into the map.
func (p *RetryPayload) Scan(value interface{}) error {
	if value == nil {
		*p = RetryPayload{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for RetryPayload", value)
	}
	if len(data) == 0 {
		*p = RetryPayload{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal retry payload: %w", err)
	}
	return nil
}

// RetryStatistics aggregates queue state for the operational dashboards.
type RetryStatistics struct {
	ByStatus         map[RetryStatus]int        `json:"byStatus"`
	ByType           map[RetryOperationType]int `json:"byType"`
	OldestPendingAge *time.Duration             `json:"oldestPendingAge,omitempty"`
	GeneratedAt      time.Time                  `json:"generatedAt"`
}
