package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/media-moderation-api/internal/models"
)

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	CountByType(ctx context.Context, tenantSlug string) (map[models.NotificationType]int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type escalator interface {
	QueueEmail(n models.Notification)
	QueueWebhook(n models.Notification)
}

type eventPublisher interface {
	PublishNotification(ctx context.Context, n models.Notification) error
}

// Subscriber receives every delivered notification in-process.
type Subscriber func(models.Notification)

// NotificationServiceConfig tunes the hub.
type NotificationServiceConfig struct {
	RealtimeEnabled bool
	HourlyCap       int
	FlushInterval   time.Duration
	SessionBuffer   int
	Retention       time.Duration
}

// NotificationService is the publish/subscribe hub that persists pipeline
// events, rate-limits them, and fans them out to connected administrator
// consoles. Producers hold an explicit handle to it; there is no ambient
// global emitter.
type NotificationService struct {
	repo       notificationStore
	escalation escalator
	events     eventPublisher
	metrics    *MetricsService
	logger     *zap.Logger
	cfg        NotificationServiceConfig

	mu          sync.Mutex
	sessions    map[string]*models.AdminSession
	pending     []models.Notification
	windowCount int
	windowStart time.Time
	subscribers []Subscriber

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNotificationService constructs the hub.
func NewNotificationService(repo notificationStore, escalation escalator, events eventPublisher, metrics *MetricsService, logger *zap.Logger, cfg NotificationServiceConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HourlyCap <= 0 {
		cfg.HourlyCap = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.SessionBuffer <= 0 {
		cfg.SessionBuffer = 16
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	return &NotificationService{
		repo:        repo,
		escalation:  escalation,
		events:      events,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
		sessions:    make(map[string]*models.AdminSession),
		windowStart: time.Now().UTC(),
	}
}

// Start launches the periodic flush of rate-limited notifications.
func (s *NotificationService) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.FlushPending(ctx)
			}
		}
	}()
}

// Stop halts the flush loop.
func (s *NotificationService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// RegisterSession attaches an administrator console and returns its push channel.
func (s *NotificationService) RegisterSession(id string, adminID, tenantScope string, prefs models.SessionPreferences) *models.AdminSession {
	if tenantScope == "" {
		tenantScope = models.ScopeAll
	}
	sess := &models.AdminSession{
		ID:           id,
		AdminID:      adminID,
		TenantScope:  tenantScope,
		Push:         make(chan models.PushMessage, s.cfg.SessionBuffer),
		Preferences:  prefs,
		LastActivity: time.Now().UTC(),
	}
	s.mu.Lock()
	s.sessions[id] = sess
	count := len(s.sessions)
	s.mu.Unlock()
	s.metrics.SetActiveSessions(count)
	s.logger.Sugar().Infow("admin session registered", "session_id", id, "admin_id", adminID, "scope", tenantScope)
	return sess
}

// UnregisterSession detaches a console and closes its push channel.
func (s *NotificationService) UnregisterSession(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	count := len(s.sessions)
	s.mu.Unlock()
	if ok {
		close(sess.Push)
		s.metrics.SetActiveSessions(count)
		s.logger.Sugar().Infow("admin session unregistered", "session_id", id)
	}
}

// Subscribe adds an in-process subscriber invoked for every delivered notification.
func (s *NotificationService) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// NotifyUploadStatus reports a submission entering the pipeline.
func (s *NotificationService) NotifyUploadStatus(ctx context.Context, tenantSlug, assetID, filename, message string, details models.NotificationDetails) {
	s.send(ctx, models.Notification{
		Type:       models.NotifUploadStatus,
		Level:      models.LevelInfo,
		TenantSlug: tenantSlug,
		AssetID:    assetID,
		Filename:   filename,
		Message:    message,
		Details:    details,
		Priority:   models.NotifPriorityNormal,
	})
}

// NotifyModerationResult reports a processed verdict.
func (s *NotificationService) NotifyModerationResult(ctx context.Context, n models.Notification) {
	n.Type = models.NotifModerationResult
	if n.Priority == "" {
		n.Priority = models.NotifPriorityNormal
	}
	if n.Level == "" {
		n.Level = models.LevelInfo
	}
	s.send(ctx, n)
}

// NotifySystemAlert reports an operator-actionable condition.
func (s *NotificationService) NotifySystemAlert(ctx context.Context, message string, details models.NotificationDetails, priority models.NotificationPriority) {
	if priority == "" {
		priority = models.NotifPriorityHigh
	}
	s.send(ctx, models.Notification{
		Type:           models.NotifSystemAlert,
		Level:          models.LevelWarning,
		Message:        message,
		Details:        details,
		ActionRequired: true,
		Priority:       priority,
	})
}

// NotifyError reports an internal pipeline failure.
func (s *NotificationService) NotifyError(ctx context.Context, tenantSlug, assetID, message string, details models.NotificationDetails) {
	s.send(ctx, models.Notification{
		Type:       models.NotifError,
		Level:      models.LevelError,
		TenantSlug: tenantSlug,
		AssetID:    assetID,
		Message:    message,
		Details:    details,
		Priority:   models.NotifPriorityHigh,
	})
}

// NotifyFileStorage reports a tier move.
func (s *NotificationService) NotifyFileStorage(ctx context.Context, tenantSlug, assetID, message string, details models.NotificationDetails) {
	s.send(ctx, models.Notification{
		Type:       models.NotifFileStorage,
		Level:      models.LevelInfo,
		TenantSlug: tenantSlug,
		AssetID:    assetID,
		Message:    message,
		Details:    details,
		Priority:   models.NotifPriorityLow,
	})
}

// NotifyBatchOperation reports progress on a grouped operation.
func (s *NotificationService) NotifyBatchOperation(ctx context.Context, tenantSlug, batchID, message string, details models.NotificationDetails) {
	if details == nil {
		details = models.NotificationDetails{}
	}
	details["batchId"] = batchID
	s.send(ctx, models.Notification{
		Type:       models.NotifBatchOperation,
		Level:      models.LevelInfo,
		TenantSlug: tenantSlug,
		Message:    message,
		Details:    details,
		Priority:   models.NotifPriorityNormal,
	})
}

// Statistics summarizes hub state for dashboards.
func (s *NotificationService) Statistics(ctx context.Context, tenantSlug string) (models.NotificationStatistics, error) {
	byType, err := s.repo.CountByType(ctx, tenantSlug)
	if err != nil {
		return models.NotificationStatistics{}, err
	}
	total := 0
	for _, n := range byType {
		total += n
	}
	s.mu.Lock()
	stats := models.NotificationStatistics{
		Total:          total,
		ByType:         byType,
		ActiveSessions: len(s.sessions),
		QueuedPending:  len(s.pending),
		SentThisWindow: s.windowCount,
		GeneratedAt:    time.Now().UTC(),
	}
	s.mu.Unlock()
	return stats, nil
}

// ResetRateWindow zeroes the rolling hourly counter. Driven by the hourly timer.
func (s *NotificationService) ResetRateWindow() {
	s.mu.Lock()
	s.windowCount = 0
	s.windowStart = time.Now().UTC()
	s.mu.Unlock()
}

// FlushPending retries rate-limited notifications, preserving order. Capped
// notifications are queued, never dropped.
func (s *NotificationService) FlushPending(ctx context.Context) {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for i, n := range pending {
		if !s.allow(n) {
			// Window still saturated: put the remainder back and stop.
			s.mu.Lock()
			s.pending = append(pending[i:], s.pending...)
			s.mu.Unlock()
			return
		}
		s.deliver(ctx, n)
	}
}

// Cleanup purges persisted notifications past retention.
func (s *NotificationService) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.Retention)
	return s.repo.DeleteOlderThan(ctx, cutoff)
}

// send runs the single delivery pipeline: rate-limit, persist, fan out,
// escalate, publish. Capacity exhaustion queues the notification for the next
// flush rather than erroring the producer.
func (s *NotificationService) send(ctx context.Context, n models.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	s.metrics.RecordNotification(n.Type)

	if !s.allow(n) {
		s.mu.Lock()
		s.pending = append(s.pending, n)
		s.mu.Unlock()
		s.metrics.RecordNotificationQueued()
		s.logger.Sugar().Debugw("notification rate limited, queued", "id", n.ID, "type", n.Type)
		return
	}
	s.deliver(ctx, n)
}

// allow consumes one slot of the hourly window. system_alert and urgent
// notifications always bypass the cap.
func (s *NotificationService) allow(n models.Notification) bool {
	if n.Priority == models.NotifPriorityUrgent || n.Type == models.NotifSystemAlert {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.windowCount >= s.cfg.HourlyCap {
		return false
	}
	s.windowCount++
	return true
}

func (s *NotificationService) deliver(ctx context.Context, n models.Notification) {
	if err := s.repo.Create(ctx, &n); err != nil {
		// Observability must not become an outage: log and keep fanning out.
		s.logger.Sugar().Errorw("notification persist failed", "id", n.ID, "error", err)
	}

	if s.cfg.RealtimeEnabled {
		s.fanOut(n)
	}

	if s.escalation != nil {
		if n.Priority == models.NotifPriorityHigh || n.Priority == models.NotifPriorityUrgent || n.Type == models.NotifSystemAlert {
			s.escalation.QueueEmail(n)
		}
		if n.ActionRequired || n.Priority == models.NotifPriorityUrgent || n.Type == models.NotifSystemAlert {
			s.escalation.QueueWebhook(n)
		}
	}

	s.mu.Lock()
	subs := make([]Subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(n)
	}

	if s.events != nil {
		if err := s.events.PublishNotification(ctx, n); err != nil {
			s.logger.Sugar().Warnw("event publish failed", "id", n.ID, "error", err)
		}
	}
}

// fanOut pushes the notification to every eligible session. A session whose
// channel cannot accept the message is considered broken and removed; the
// fan-out continues with the remaining sessions.
func (s *NotificationService) fanOut(n models.Notification) {
	s.mu.Lock()
	targets := make([]*models.AdminSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.Eligible(n) {
			targets = append(targets, sess)
		}
	}
	s.mu.Unlock()

	now := time.Now().UTC()
	for _, sess := range targets {
		msg := models.PushMessage{
			Type:      "notification",
			Data:      n,
			SessionID: sess.ID,
			Timestamp: now,
		}
		if !trySend(sess.Push, msg) {
			s.logger.Sugar().Warnw("push channel broken, removing session", "session_id", sess.ID)
			s.UnregisterSession(sess.ID)
		}
	}
}

// trySend performs a non-blocking channel send and recovers from a send on a
// channel closed by a concurrent unregister.
func trySend(ch chan models.PushMessage, msg models.PushMessage) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case ch <- msg:
		return true
	default:
		return false
	}
}

// ModerationResultNotification builds the moderation_result notification for a
// processed verdict per the priority and level rules.
func ModerationResultNotification(asset *models.MediaAsset, state models.ModerationState, score float64, risk models.RiskLevel, humanReview bool) models.Notification {
	priority := models.NotifPriorityNormal
	level := models.LevelSuccess
	actionRequired := false

	switch {
	case state == models.StateError:
		priority = models.NotifPriorityUrgent
		level = models.LevelError
	case state == models.StateFlagged || state == models.StateQuarantined || humanReview || risk == models.RiskHigh:
		priority = models.NotifPriorityHigh
		level = models.LevelWarning
		actionRequired = true
	case state == models.StateRejected:
		// A plain rejection needs no operator action, it just reads as a
		// warning rather than a success.
		level = models.LevelWarning
	}

	return models.Notification{
		Type:           models.NotifModerationResult,
		Level:          level,
		TenantSlug:     asset.TenantSlug,
		AssetID:        asset.ID,
		Filename:       asset.Filename,
		Message:        fmt.Sprintf("moderation verdict %s for %s", state, asset.Filename),
		ActionRequired: actionRequired,
		Priority:       priority,
		Details: models.NotificationDetails{
			"trackingId":  asset.TrackingID,
			"state":       string(state),
			"score":       score,
			"riskLevel":   string(risk),
			"humanReview": humanReview,
		},
	}
}
