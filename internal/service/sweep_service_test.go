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

type mockStaleStore struct {
	stale     []models.MediaAsset
	updateErr map[string]error
	updated   []appliedVerdict
}

func (m *mockStaleStore) ListStaleSubmissions(ctx context.Context, cutoff time.Time, limit int) ([]models.MediaAsset, error) {
	return m.stale, nil
}

func (m *mockStaleStore) UpdateState(ctx context.Context, id string, state models.ModerationState, tier models.StorageTier) error {
	if err, ok := m.updateErr[id]; ok {
		return err
	}
	m.updated = append(m.updated, appliedVerdict{id: id, state: state, tier: tier})
	return nil
}

func TestSweepServiceMarksStaleAssets(t *testing.T) {
	created := time.Now().UTC().Add(-30 * time.Hour)
	store := &mockStaleStore{stale: []models.MediaAsset{
		{ID: "a1", TrackingID: "trk-1", TenantSlug: "acme", Filename: "one.jpg", State: models.StateAnalyzing, CreatedAt: created},
		{ID: "a2", TrackingID: "trk-2", TenantSlug: "acme", Filename: "two.jpg", State: models.StateSubmitted, CreatedAt: created},
	}}
	notifier := &mockAlertNotifier{}
	logRepo := &mockMediaLogStore{}
	svc := NewSweepService(store, notifier, NewMediaLogService(logRepo, zap.NewNop(), 0), zap.NewNop(), 24*time.Hour, 100)

	swept, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, swept)

	require.Len(t, store.updated, 2)
	assert.Equal(t, models.StateError, store.updated[0].state)
	assert.Equal(t, models.TierOriginals, store.updated[0].tier)

	require.Len(t, notifier.alerts, 2)
	assert.Equal(t, "trk-1", notifier.alerts[0]["trackingId"])
	assert.Len(t, logRepo.entries, 2)
}

func TestSweepServiceNothingStale(t *testing.T) {
	store := &mockStaleStore{}
	notifier := &mockAlertNotifier{}
	svc := NewSweepService(store, notifier, NewMediaLogService(&mockMediaLogStore{}, zap.NewNop(), 0), zap.NewNop(), 0, 0)

	swept, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, swept)
	assert.Empty(t, notifier.alerts)
}

func TestSweepServiceSkipsFailedUpdates(t *testing.T) {
	created := time.Now().UTC().Add(-48 * time.Hour)
	store := &mockStaleStore{
		stale: []models.MediaAsset{
			{ID: "a1", TrackingID: "trk-1", State: models.StateAnalyzing, CreatedAt: created},
			{ID: "a2", TrackingID: "trk-2", State: models.StateAnalyzing, CreatedAt: created},
		},
		updateErr: map[string]error{"a1": assert.AnError},
	}
	notifier := &mockAlertNotifier{}
	svc := NewSweepService(store, notifier, NewMediaLogService(&mockMediaLogStore{}, zap.NewNop(), 0), zap.NewNop(), 24*time.Hour, 100)

	swept, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, "trk-2", notifier.alerts[0]["trackingId"])
}
