package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/media-moderation-api/internal/models"
)

type retryStore interface {
	Create(ctx context.Context, op *models.RetryOperation) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.RetryOperation, error)
	MarkInProgress(ctx context.Context, id string, now time.Time) error
	ReclaimStale(ctx context.Context, cutoff, now time.Time) (int64, error)
	MarkSucceeded(ctx context.Context, id string, now time.Time) error
	RescheduleFailed(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string, now time.Time) error
	MarkAbandoned(ctx context.Context, id string, attempts int, lastError string, now time.Time) error
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[models.RetryStatus]int, error)
	CountByType(ctx context.Context) (map[models.RetryOperationType]int, error)
	OldestPendingCreatedAt(ctx context.Context) (time.Time, error)
}

type alertNotifier interface {
	NotifySystemAlert(ctx context.Context, message string, details models.NotificationDetails, priority models.NotificationPriority)
}

// RetryHandler executes one deferred operation. An error schedules the next
// backoff attempt; attempts increment on every failure regardless of the
// error type.
type RetryHandler func(ctx context.Context, op models.RetryOperation) error

// RetryServiceConfig governs backoff and batch behaviour.
type RetryServiceConfig struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	CapExponent  int
	BatchSize    int
	PassInterval time.Duration
	LeaseTimeout time.Duration
	Retention    time.Duration
}

// RetryService is the durable work queue for operations that failed or are
// pending: initial classifier submissions and callback processing.
type RetryService struct {
	repo     retryStore
	notifier alertNotifier
	medialog *MediaLogService
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      RetryServiceConfig

	mu       sync.Mutex
	handlers map[models.RetryOperationType]RetryHandler

	inFlight atomic.Bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewRetryService constructs the queue service.
func NewRetryService(repo retryStore, notifier alertNotifier, medialog *MediaLogService, metrics *MetricsService, logger *zap.Logger, cfg RetryServiceConfig) *RetryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 30 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = time.Hour
	}
	if cfg.CapExponent <= 0 {
		cfg.CapExponent = 6
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.PassInterval <= 0 {
		cfg.PassInterval = 5 * time.Second
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = 5 * time.Minute
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	return &RetryService{
		repo:     repo,
		notifier: notifier,
		medialog: medialog,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		handlers: make(map[models.RetryOperationType]RetryHandler),
	}
}

// RegisterHandler binds a processor for one operation type. Wired at startup
// so the queue does not depend on the services that feed it.
func (s *RetryService) RegisterHandler(t models.RetryOperationType, h RetryHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[t] = h
}

// Enqueue stores a deferred operation and returns its id. Unknown operation
// types are accepted, to avoid losing data, but parked as abandoned
// immediately instead of being looped on indefinitely.
func (s *RetryService) Enqueue(ctx context.Context, op *models.RetryOperation) (string, error) {
	if err := s.repo.Create(ctx, op); err != nil {
		return "", err
	}
	if !models.KnownRetryOperationType(op.Type) {
		now := time.Now().UTC()
		reason := fmt.Sprintf("unknown operation type %q", op.Type)
		if err := s.repo.MarkAbandoned(ctx, op.ID, op.Attempts, reason, now); err != nil {
			s.logger.Sugar().Errorw("failed to abandon unknown operation", "op_id", op.ID, "error", err)
		} else {
			s.escalateAbandoned(ctx, *op, reason)
		}
		return op.ID, nil
	}
	s.logger.Sugar().Infow("retry operation enqueued",
		"op_id", op.ID, "type", op.Type, "priority", op.Priority, "tracking_id", op.TrackingID)
	return op.ID, nil
}

// Start drives ProcessDue on the fixed pass interval.
func (s *RetryService) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.PassInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.ProcessDue(ctx)
			}
		}
	}()
}

// Stop halts the processing loop.
func (s *RetryService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// ProcessDue runs a single queue pass. A pass never overlaps itself: if the
// previous one has not finished the new one is skipped entirely, bounding
// load and preventing double-processing of the same due operation.
func (s *RetryService) ProcessDue(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Sugar().Debugw("retry pass still running, skipping")
		return
	}
	defer s.inFlight.Store(false)

	now := time.Now().UTC()
	// A claim is a lease, not a tombstone: rows stuck in_progress past the
	// lease window (crashed process, failed status update) go back to pending.
	if reclaimed, err := s.repo.ReclaimStale(ctx, now.Add(-s.cfg.LeaseTimeout), now); err != nil {
		s.logger.Sugar().Errorw("reclaim stale retry operations failed", "error", err)
	} else if reclaimed > 0 {
		s.logger.Sugar().Warnw("reclaimed stale in-progress retry operations", "count", reclaimed)
	}
	due, err := s.repo.ListDue(ctx, now, s.cfg.BatchSize)
	if err != nil {
		s.logger.Sugar().Errorw("list due retry operations failed", "error", err)
		return
	}
	if counts, err := s.repo.CountByStatus(ctx); err == nil {
		s.metrics.SetRetryQueueDepth(counts[models.RetryStatusPending])
	}
	for _, op := range due {
		s.processOne(ctx, op)
	}
}

func (s *RetryService) processOne(ctx context.Context, op models.RetryOperation) {
	now := time.Now().UTC()
	if err := s.repo.MarkInProgress(ctx, op.ID, now); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Sugar().Errorw("claim retry operation failed", "op_id", op.ID, "error", err)
		}
		return
	}
	s.metrics.RecordRetryAttempt()

	s.mu.Lock()
	handler, ok := s.handlers[op.Type]
	s.mu.Unlock()
	if !ok {
		reason := fmt.Sprintf("no handler for operation type %q", op.Type)
		if err := s.repo.MarkAbandoned(ctx, op.ID, op.Attempts, reason, now); err != nil {
			s.logger.Sugar().Errorw("abandon unhandled operation failed", "op_id", op.ID, "error", err)
			return
		}
		s.escalateAbandoned(ctx, op, reason)
		return
	}

	err := handler(ctx, op)
	now = time.Now().UTC()
	if err == nil {
		if markErr := s.repo.MarkSucceeded(ctx, op.ID, now); markErr != nil {
			s.logger.Sugar().Errorw("mark retry success failed", "op_id", op.ID, "error", markErr)
		}
		return
	}

	attempts := op.Attempts + 1
	if attempts >= s.cfg.MaxAttempts {
		if markErr := s.repo.MarkAbandoned(ctx, op.ID, attempts, err.Error(), now); markErr != nil {
			s.logger.Sugar().Errorw("mark retry abandoned failed", "op_id", op.ID, "error", markErr)
			return
		}
		s.metrics.RecordRetryAbandoned()
		s.escalateAbandoned(ctx, op, err.Error())
		return
	}

	next := now.Add(s.backoff(attempts))
	if markErr := s.repo.RescheduleFailed(ctx, op.ID, attempts, next, err.Error(), now); markErr != nil {
		s.logger.Sugar().Errorw("reschedule retry failed", "op_id", op.ID, "error", markErr)
		return
	}
	s.logger.Sugar().Warnw("retry attempt failed",
		"op_id", op.ID, "type", op.Type, "attempts", attempts, "next_attempt_at", next, "error", err)
}

// backoff returns base * 2^min(attempts, capExponent), capped at MaxDelay.
func (s *RetryService) backoff(attempts int) time.Duration {
	exp := attempts
	if exp > s.cfg.CapExponent {
		exp = s.cfg.CapExponent
	}
	delay := s.cfg.BaseDelay << uint(exp)
	if delay > s.cfg.MaxDelay || delay <= 0 {
		delay = s.cfg.MaxDelay
	}
	return delay
}

// Statistics aggregates queue state for the ops surface.
func (s *RetryService) Statistics(ctx context.Context) (models.RetryStatistics, error) {
	byStatus, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return models.RetryStatistics{}, err
	}
	byType, err := s.repo.CountByType(ctx)
	if err != nil {
		return models.RetryStatistics{}, err
	}
	stats := models.RetryStatistics{
		ByStatus:    byStatus,
		ByType:      byType,
		GeneratedAt: time.Now().UTC(),
	}
	if oldest, err := s.repo.OldestPendingCreatedAt(ctx); err == nil {
		age := time.Since(oldest)
		stats.OldestPendingAge = &age
	} else if !errors.Is(err, sql.ErrNoRows) {
		return models.RetryStatistics{}, err
	}
	return stats, nil
}

// Cleanup removes terminal operations older than the retention window.
func (s *RetryService) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.Retention)
	deleted, err := s.repo.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Sugar().Infow("retry queue cleanup", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}

// escalateAbandoned emits the single system_alert for an operation that now
// requires manual intervention. The asset stays in its last-known state.
func (s *RetryService) escalateAbandoned(ctx context.Context, op models.RetryOperation, reason string) {
	if s.medialog != nil {
		s.medialog.LogError(ctx, op.TenantSlug, op.AssetID,
			"retry operation abandoned",
			models.MediaLogDetails{"operationId": op.ID, "type": string(op.Type), "reason": reason})
	}
	if s.notifier == nil {
		return
	}
	s.notifier.NotifySystemAlert(ctx,
		fmt.Sprintf("retry operation %s abandoned after exhausting attempts", op.ID),
		models.NotificationDetails{
			"operationId": op.ID,
			"type":        string(op.Type),
			"trackingId":  op.TrackingID,
			"tenantSlug":  op.TenantSlug,
			"assetId":     op.AssetID,
			"reason":      reason,
		},
		models.NotifPriorityHigh,
	)
}
