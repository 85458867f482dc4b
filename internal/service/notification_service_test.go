package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/media-moderation-api/internal/models"
)

type mockNotificationStore struct {
	created []models.Notification
	counts  map[models.NotificationType]int
	deleted int64
}

func (m *mockNotificationStore) Create(ctx context.Context, n *models.Notification) error {
	m.created = append(m.created, *n)
	return nil
}

func (m *mockNotificationStore) CountByType(ctx context.Context, tenantSlug string) (map[models.NotificationType]int, error) {
	if m.counts == nil {
		return map[models.NotificationType]int{}, nil
	}
	return m.counts, nil
}

func (m *mockNotificationStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return m.deleted, nil
}

type mockEscalator struct {
	emails   []models.Notification
	webhooks []models.Notification
}

func (m *mockEscalator) QueueEmail(n models.Notification)   { m.emails = append(m.emails, n) }
func (m *mockEscalator) QueueWebhook(n models.Notification) { m.webhooks = append(m.webhooks, n) }

func newNotifHub(repo *mockNotificationStore, cfg NotificationServiceConfig) *NotificationService {
	return NewNotificationService(repo, nil, nil, nil, zap.NewNop(), cfg)
}

func TestNotificationServiceHourlyCapQueuesInsteadOfDropping(t *testing.T) {
	repo := &mockNotificationStore{}
	svc := newNotifHub(repo, NotificationServiceConfig{HourlyCap: 2})
	ctx := context.Background()

	svc.NotifyUploadStatus(ctx, "acme", "a1", "one.jpg", "submitted", nil)
	svc.NotifyUploadStatus(ctx, "acme", "a2", "two.jpg", "submitted", nil)
	svc.NotifyUploadStatus(ctx, "acme", "a3", "three.jpg", "submitted", nil)

	assert.Len(t, repo.created, 2)
	stats, err := svc.Statistics(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.QueuedPending)
	assert.Equal(t, 2, stats.SentThisWindow)

	// A fresh window drains the queue in original order.
	svc.ResetRateWindow()
	svc.FlushPending(ctx)
	require.Len(t, repo.created, 3)
	assert.Equal(t, "three.jpg", repo.created[2].Filename)
}

func TestNotificationServiceUrgentBypassesCap(t *testing.T) {
	repo := &mockNotificationStore{}
	svc := newNotifHub(repo, NotificationServiceConfig{HourlyCap: 1})
	ctx := context.Background()

	svc.NotifyUploadStatus(ctx, "acme", "a1", "one.jpg", "submitted", nil)
	svc.NotifyModerationResult(ctx, models.Notification{
		TenantSlug: "acme",
		Message:    "verdict error",
		Priority:   models.NotifPriorityUrgent,
	})

	require.Len(t, repo.created, 2)
	assert.Equal(t, models.NotifPriorityUrgent, repo.created[1].Priority)
}

func TestNotificationServiceSystemAlertBypassesCap(t *testing.T) {
	repo := &mockNotificationStore{}
	svc := newNotifHub(repo, NotificationServiceConfig{HourlyCap: 1})
	ctx := context.Background()

	svc.NotifyUploadStatus(ctx, "acme", "a1", "one.jpg", "submitted", nil)
	svc.NotifySystemAlert(ctx, "retry operation abandoned", nil, models.NotifPriorityHigh)

	require.Len(t, repo.created, 2)
	assert.Equal(t, models.NotifSystemAlert, repo.created[1].Type)
	assert.True(t, repo.created[1].ActionRequired)
}

func TestNotificationServiceFlushKeepsRemainderWhenWindowSaturates(t *testing.T) {
	repo := &mockNotificationStore{}
	svc := newNotifHub(repo, NotificationServiceConfig{HourlyCap: 2})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		svc.NotifyUploadStatus(ctx, "acme", "a", "f.jpg", "submitted", nil)
	}
	require.Len(t, repo.created, 2)

	svc.ResetRateWindow()
	svc.FlushPending(ctx)

	assert.Len(t, repo.created, 4)
	stats, err := svc.Statistics(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.QueuedPending)
}

func TestNotificationServiceFanOutScopeAndPreferences(t *testing.T) {
	repo := &mockNotificationStore{}
	svc := newNotifHub(repo, NotificationServiceConfig{RealtimeEnabled: true, HourlyCap: 100})
	ctx := context.Background()

	all := svc.RegisterSession("s-all", "admin-1", models.ScopeAll, models.SessionPreferences{})
	scoped := svc.RegisterSession("s-acme", "admin-2", "acme", models.SessionPreferences{})
	other := svc.RegisterSession("s-other", "admin-3", "globex", models.SessionPreferences{})
	muted := svc.RegisterSession("s-muted", "admin-4", models.ScopeAll, models.SessionPreferences{
		DisabledTypes: []models.NotificationType{models.NotifUploadStatus},
	})
	strict := svc.RegisterSession("s-strict", "admin-5", models.ScopeAll, models.SessionPreferences{
		MinimumLevel: models.LevelWarning,
	})

	svc.NotifyUploadStatus(ctx, "acme", "a1", "one.jpg", "submitted", nil)

	assert.Len(t, all.Push, 1)
	assert.Len(t, scoped.Push, 1)
	assert.Len(t, other.Push, 0)
	assert.Len(t, muted.Push, 0)
	assert.Len(t, strict.Push, 0)

	msg := <-all.Push
	assert.Equal(t, "notification", msg.Type)
	assert.Equal(t, "s-all", msg.SessionID)
	assert.Equal(t, "one.jpg", msg.Data.Filename)
}

func TestNotificationServiceUrgentReachesEverySession(t *testing.T) {
	repo := &mockNotificationStore{}
	svc := newNotifHub(repo, NotificationServiceConfig{RealtimeEnabled: true, HourlyCap: 100})
	ctx := context.Background()

	other := svc.RegisterSession("s-other", "admin-1", "globex", models.SessionPreferences{
		MinimumLevel: models.LevelError,
	})

	svc.NotifyModerationResult(ctx, models.Notification{
		TenantSlug: "acme",
		Message:    "pipeline failure",
		Priority:   models.NotifPriorityUrgent,
	})

	assert.Len(t, other.Push, 1)
}

func TestNotificationServiceRemovesDeadSession(t *testing.T) {
	repo := &mockNotificationStore{}
	svc := newNotifHub(repo, NotificationServiceConfig{RealtimeEnabled: true, HourlyCap: 100, SessionBuffer: 1})
	ctx := context.Background()

	sess := svc.RegisterSession("s-1", "admin-1", models.ScopeAll, models.SessionPreferences{})

	// First delivery fills the buffer; nobody reads, so the second send fails
	// and the session is removed.
	svc.NotifyUploadStatus(ctx, "acme", "a1", "one.jpg", "submitted", nil)
	svc.NotifyUploadStatus(ctx, "acme", "a2", "two.jpg", "submitted", nil)

	stats, err := svc.Statistics(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ActiveSessions)

	// Channel was closed on removal; the buffered message is still readable.
	msg, ok := <-sess.Push
	assert.True(t, ok)
	assert.Equal(t, "one.jpg", msg.Data.Filename)
	_, ok = <-sess.Push
	assert.False(t, ok)
}

func TestNotificationServiceEscalationRouting(t *testing.T) {
	repo := &mockNotificationStore{}
	esc := &mockEscalator{}
	svc := NewNotificationService(repo, esc, nil, nil, zap.NewNop(), NotificationServiceConfig{HourlyCap: 100})
	ctx := context.Background()

	svc.NotifyUploadStatus(ctx, "acme", "a1", "one.jpg", "submitted", nil)
	assert.Empty(t, esc.emails)
	assert.Empty(t, esc.webhooks)

	svc.NotifyError(ctx, "acme", "a1", "verdict apply failed", nil)
	assert.Len(t, esc.emails, 1)
	assert.Empty(t, esc.webhooks)

	svc.NotifySystemAlert(ctx, "retry operation abandoned", nil, models.NotifPriorityHigh)
	assert.Len(t, esc.emails, 2)
	assert.Len(t, esc.webhooks, 1)
}

func TestNotificationServiceSubscriber(t *testing.T) {
	repo := &mockNotificationStore{}
	svc := newNotifHub(repo, NotificationServiceConfig{HourlyCap: 100})

	var seen []models.Notification
	svc.Subscribe(func(n models.Notification) { seen = append(seen, n) })

	svc.NotifyFileStorage(context.Background(), "acme", "a1", "moved to public", nil)
	require.Len(t, seen, 1)
	assert.Equal(t, models.NotifFileStorage, seen[0].Type)
}

func TestModerationResultNotificationLevels(t *testing.T) {
	asset := &models.MediaAsset{ID: "a1", TrackingID: "trk-1", TenantSlug: "acme", Filename: "pic.jpg"}

	n := ModerationResultNotification(asset, models.StateApproved, 12, models.RiskLow, false)
	assert.Equal(t, models.LevelSuccess, n.Level)
	assert.Equal(t, models.NotifPriorityNormal, n.Priority)
	assert.False(t, n.ActionRequired)

	n = ModerationResultNotification(asset, models.StateRejected, 85, models.RiskHigh, false)
	assert.Equal(t, models.LevelWarning, n.Level)
	assert.Equal(t, models.NotifPriorityHigh, n.Priority)
	assert.True(t, n.ActionRequired)

	// High priority comes from review/risk signals, not the rejection itself.
	n = ModerationResultNotification(asset, models.StateRejected, 60, models.RiskMedium, false)
	assert.Equal(t, models.LevelWarning, n.Level)
	assert.Equal(t, models.NotifPriorityNormal, n.Priority)
	assert.False(t, n.ActionRequired)

	n = ModerationResultNotification(asset, models.StateFlagged, 45, models.RiskMedium, true)
	assert.Equal(t, models.NotifPriorityHigh, n.Priority)
	assert.True(t, n.ActionRequired)

	n = ModerationResultNotification(asset, models.StateError, 0, models.RiskLow, false)
	assert.Equal(t, models.NotifPriorityUrgent, n.Priority)
	assert.Equal(t, models.LevelError, n.Level)
	assert.Equal(t, "trk-1", n.Details["trackingId"])
}
