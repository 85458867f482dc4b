package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/media-moderation-api/internal/models"
)

// RetryOperationRepository persists the durable work queue.
type RetryOperationRepository struct {
	db *sqlx.DB
}

// NewRetryOperationRepository constructs the repository.
func NewRetryOperationRepository(db *sqlx.DB) *RetryOperationRepository {
	return &RetryOperationRepository{db: db}
}

// Create stores a new deferred operation.
func (r *RetryOperationRepository) Create(ctx context.Context, op *models.RetryOperation) error {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if op.CreatedAt.IsZero() {
		op.CreatedAt = now
	}
	op.UpdatedAt = now
	if op.NextAttemptAt.IsZero() {
		op.NextAttemptAt = now
	}
	if op.Status == "" {
		op.Status = models.RetryStatusPending
	}
	if op.Priority == "" {
		op.Priority = models.PriorityMedium
	}
	const query = `INSERT INTO retry_operations
	(id, op_type, tracking_id, batch_id, tenant_slug, asset_id, payload, attempts, next_attempt_at, priority, status, last_error, created_at, updated_at)
	VALUES (:id, :op_type, :tracking_id, :batch_id, :tenant_slug, :asset_id, :payload, :attempts, :next_attempt_at, :priority, :status, :last_error, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, op); err != nil {
		return fmt.Errorf("create retry operation: %w", err)
	}
	return nil
}

// ListDue selects pending operations whose next attempt time has passed,
// highest priority first, oldest first within a priority so no operation
// starves.
func (r *RetryOperationRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.RetryOperation, error) {
	if limit <= 0 {
		limit = 25
	}
	const query = `SELECT id, op_type, tracking_id, batch_id, tenant_slug, asset_id, payload, attempts,
       next_attempt_at, priority, status, last_error, created_at, updated_at
	FROM retry_operations
	WHERE status = 'pending' AND next_attempt_at <= $1
	ORDER BY CASE priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END DESC, created_at ASC
	LIMIT $2`
	var ops []models.RetryOperation
	if err := r.db.SelectContext(ctx, &ops, query, now, limit); err != nil {
		return nil, fmt.Errorf("list due retry operations: %w", err)
	}
	return ops, nil
}

// MarkInProgress transitions a pending operation before processing. Returns
// sql.ErrNoRows when the row was already claimed, which a second overlapping
// pass would trip on.
func (r *RetryOperationRepository) MarkInProgress(ctx context.Context, id string, now time.Time) error {
	const query = `UPDATE retry_operations SET status = 'in_progress', updated_at = $2
	WHERE id = $1 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("mark retry operation in progress: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check retry claim rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReclaimStale returns in_progress rows whose claim outlived the lease window
// to pending, so an operation claimed by a process that died mid-attempt is
// picked up again instead of being stranded. Returns how many were reclaimed.
func (r *RetryOperationRepository) ReclaimStale(ctx context.Context, cutoff, now time.Time) (int64, error) {
	const query = `UPDATE retry_operations SET status = 'pending', updated_at = $2
	WHERE status = 'in_progress' AND updated_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff, now)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale retry operations: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check retry reclaim rows: %w", err)
	}
	return affected, nil
}

// MarkSucceeded finalizes an operation after a successful attempt.
func (r *RetryOperationRepository) MarkSucceeded(ctx context.Context, id string, now time.Time) error {
	const query = `UPDATE retry_operations SET status = 'succeeded', updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, now); err != nil {
		return fmt.Errorf("mark retry operation succeeded: %w", err)
	}
	return nil
}

// RescheduleFailed records a failed attempt and its backoff-delayed next try.
func (r *RetryOperationRepository) RescheduleFailed(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string, now time.Time) error {
	const query = `UPDATE retry_operations
	SET status = 'pending', attempts = $2, next_attempt_at = $3, last_error = $4, updated_at = $5
	WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, attempts, nextAttemptAt, lastError, now); err != nil {
		return fmt.Errorf("reschedule retry operation: %w", err)
	}
	return nil
}

// MarkAbandoned parks an operation that exhausted its budget or carries an
// unknown type. Abandoned operations are never auto-retried again.
func (r *RetryOperationRepository) MarkAbandoned(ctx context.Context, id string, attempts int, lastError string, now time.Time) error {
	const query = `UPDATE retry_operations
	SET status = 'abandoned', attempts = $2, last_error = $3, updated_at = $4
	WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, attempts, lastError, now); err != nil {
		return fmt.Errorf("mark retry operation abandoned: %w", err)
	}
	return nil
}

// DeleteTerminalBefore removes succeeded/abandoned rows past retention and
// returns how many were purged.
func (r *RetryOperationRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM retry_operations
	WHERE status IN ('succeeded', 'abandoned') AND updated_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup retry operations: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check retry cleanup rows: %w", err)
	}
	return affected, nil
}

// CountByStatus aggregates queue state per status.
func (r *RetryOperationRepository) CountByStatus(ctx context.Context) (map[models.RetryStatus]int, error) {
	const query = `SELECT status, COUNT(*) AS total FROM retry_operations GROUP BY status`
	rows := []struct {
		Status models.RetryStatus `db:"status"`
		Total  int                `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count retry operations by status: %w", err)
	}
	counts := make(map[models.RetryStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// CountByType aggregates queue state per operation type.
func (r *RetryOperationRepository) CountByType(ctx context.Context) (map[models.RetryOperationType]int, error) {
	const query = `SELECT op_type, COUNT(*) AS total FROM retry_operations GROUP BY op_type`
	rows := []struct {
		Type  models.RetryOperationType `db:"op_type"`
		Total int                       `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count retry operations by type: %w", err)
	}
	counts := make(map[models.RetryOperationType]int, len(rows))
	for _, row := range rows {
		counts[row.Type] = row.Total
	}
	return counts, nil
}

// OldestPendingCreatedAt returns the creation time of the oldest pending
// operation, or sql.ErrNoRows when the queue is drained.
func (r *RetryOperationRepository) OldestPendingCreatedAt(ctx context.Context) (time.Time, error) {
	const query = `SELECT created_at FROM retry_operations WHERE status = 'pending' ORDER BY created_at ASC LIMIT 1`
	var createdAt time.Time
	if err := r.db.GetContext(ctx, &createdAt, query); err != nil {
		return time.Time{}, err
	}
	return createdAt, nil
}
