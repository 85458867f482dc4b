package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/media-moderation-api/internal/models"
)

// NotificationRepository persists fan-out notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create stores a notification record.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications
	(id, notif_type, level, tenant_slug, asset_id, filename, message, details, action_required, priority, created_at)
	VALUES (:id, :notif_type, :level, :tenant_slug, :asset_id, :filename, :message, :details, :action_required, :priority, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// CountByType aggregates persisted notifications, optionally scoped to a tenant.
func (r *NotificationRepository) CountByType(ctx context.Context, tenantSlug string) (map[models.NotificationType]int, error) {
	query := `SELECT notif_type, COUNT(*) AS total FROM notifications`
	args := []interface{}{}
	if tenantSlug != "" {
		query += ` WHERE tenant_slug = $1`
		args = append(args, tenantSlug)
	}
	query += ` GROUP BY notif_type`
	rows := []struct {
		Type  models.NotificationType `db:"notif_type"`
		Total int                     `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count notifications by type: %w", err)
	}
	counts := make(map[models.NotificationType]int, len(rows))
	for _, row := range rows {
		counts[row.Type] = row.Total
	}
	return counts, nil
}

// DeleteOlderThan purges notifications past the retention window.
func (r *NotificationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM notifications WHERE created_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup notifications: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check notification cleanup rows: %w", err)
	}
	return affected, nil
}
