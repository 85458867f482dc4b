package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/media-moderation-api/internal/dto"
	"github.com/noah-isme/media-moderation-api/internal/models"
	appErrors "github.com/noah-isme/media-moderation-api/pkg/errors"
)

type appliedVerdict struct {
	id          string
	state       models.ModerationState
	tier        models.StorageTier
	score       float64
	risk        models.RiskLevel
	humanReview bool
}

type mockAssetStore struct {
	assets   map[string]*models.MediaAsset
	applied  []appliedVerdict
	states   []appliedVerdict
	created  []*models.MediaAsset
	attempts []string
}

func (m *mockAssetStore) GetByTrackingID(ctx context.Context, trackingID string) (*models.MediaAsset, error) {
	if a, ok := m.assets[trackingID]; ok {
		copy := *a
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAssetStore) ApplyVerdict(ctx context.Context, id string, state models.ModerationState, tier models.StorageTier, score float64, risk models.RiskLevel, humanReview bool, verdictAt time.Time) error {
	m.applied = append(m.applied, appliedVerdict{id: id, state: state, tier: tier, score: score, risk: risk, humanReview: humanReview})
	return nil
}

func (m *mockAssetStore) Create(ctx context.Context, asset *models.MediaAsset) error {
	m.created = append(m.created, asset)
	return nil
}

func (m *mockAssetStore) UpdateState(ctx context.Context, id string, state models.ModerationState, tier models.StorageTier) error {
	m.states = append(m.states, appliedVerdict{id: id, state: state, tier: tier})
	return nil
}

func (m *mockAssetStore) IncrementAttempts(ctx context.Context, id string) error {
	m.attempts = append(m.attempts, id)
	return nil
}

type mockVerdictCache struct {
	claimed bool
	err     error
	keys    []string
}

func (m *mockVerdictCache) ClaimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.keys = append(m.keys, key)
	return m.claimed, m.err
}

type moveCall struct {
	fromTier models.StorageTier
	target   models.StorageTier
}

type mockMover struct {
	result MoveResult
	err    error
	calls  []moveCall
}

func (m *mockMover) MoveFile(ctx context.Context, asset *models.MediaAsset, target models.StorageTier) (MoveResult, error) {
	m.calls = append(m.calls, moveCall{fromTier: asset.StorageTier, target: target})
	if m.err != nil {
		return MoveResult{}, m.err
	}
	return m.result, nil
}

type mockEnqueuer struct {
	ops []*models.RetryOperation
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, op *models.RetryOperation) (string, error) {
	m.ops = append(m.ops, op)
	return op.ID, nil
}

type callbackFixture struct {
	assets    *mockAssetStore
	cache     *mockVerdictCache
	mover     *mockMover
	retries   *mockEnqueuer
	notifRepo *mockNotificationStore
	logRepo   *mockMediaLogStore
	svc       *CallbackService
}

func newCallbackFixture(asset *models.MediaAsset) *callbackFixture {
	f := &callbackFixture{
		assets:    &mockAssetStore{assets: map[string]*models.MediaAsset{}},
		cache:     &mockVerdictCache{claimed: true},
		mover:     &mockMover{result: MoveResult{Success: true}},
		retries:   &mockEnqueuer{},
		notifRepo: &mockNotificationStore{},
		logRepo:   &mockMediaLogStore{},
	}
	if asset != nil {
		f.assets.assets[asset.TrackingID] = asset
	}
	notifier := NewNotificationService(f.notifRepo, nil, nil, nil, zap.NewNop(), NotificationServiceConfig{HourlyCap: 100})
	medialog := NewMediaLogService(f.logRepo, zap.NewNop(), 0)
	f.svc = NewCallbackService(f.assets, f.cache, f.mover, f.retries, notifier, medialog, nil, zap.NewNop(), 30)
	return f
}

func analyzingAsset() *models.MediaAsset {
	return &models.MediaAsset{
		ID:          "asset-1",
		TenantSlug:  "acme",
		Filename:    "pic.jpg",
		TrackingID:  "trk-1",
		State:       models.StateAnalyzing,
		StorageTier: models.TierOriginals,
	}
}

func TestCallbackServiceApprovedVerdict(t *testing.T) {
	f := newCallbackFixture(analyzingAsset())

	err := f.svc.HandleVerdict(context.Background(), dto.VerdictRequest{
		TrackingID:       "trk-1",
		ModerationStatus: models.StateApproved,
		ModerationScore:  15,
		RiskLevel:        models.RiskLow,
	})
	require.NoError(t, err)

	require.Len(t, f.assets.applied, 1)
	applied := f.assets.applied[0]
	assert.Equal(t, models.StateApproved, applied.state)
	assert.Equal(t, models.TierPublic, applied.tier)
	assert.Equal(t, 15.0, applied.score)
	assert.False(t, applied.humanReview)

	require.Len(t, f.mover.calls, 1)
	assert.Equal(t, models.TierOriginals, f.mover.calls[0].fromTier)
	assert.Equal(t, models.TierPublic, f.mover.calls[0].target)

	require.Len(t, f.notifRepo.created, 1)
	n := f.notifRepo.created[0]
	assert.Equal(t, models.NotifModerationResult, n.Type)
	assert.Equal(t, models.LevelSuccess, n.Level)
	assert.False(t, n.ActionRequired)
}

func TestCallbackServiceRejectedVerdict(t *testing.T) {
	f := newCallbackFixture(analyzingAsset())

	err := f.svc.HandleVerdict(context.Background(), dto.VerdictRequest{
		TrackingID:       "trk-1",
		ModerationStatus: models.StateRejected,
		ModerationScore:  85,
		RiskLevel:        models.RiskHigh,
	})
	require.NoError(t, err)

	require.Len(t, f.assets.applied, 1)
	assert.Equal(t, models.StateRejected, f.assets.applied[0].state)
	assert.Equal(t, models.TierRejected, f.assets.applied[0].tier)

	require.Len(t, f.notifRepo.created, 1)
	assert.Equal(t, models.LevelWarning, f.notifRepo.created[0].Level)
	assert.True(t, f.notifRepo.created[0].ActionRequired)
}

func TestCallbackServiceApprovalGateHighScore(t *testing.T) {
	f := newCallbackFixture(analyzingAsset())

	err := f.svc.HandleVerdict(context.Background(), dto.VerdictRequest{
		TrackingID:       "trk-1",
		ModerationStatus: models.StateApproved,
		ModerationScore:  45,
		RiskLevel:        models.RiskMedium,
	})
	require.NoError(t, err)

	require.Len(t, f.assets.applied, 1)
	applied := f.assets.applied[0]
	assert.Equal(t, models.StateFlagged, applied.state)
	// A gated approval is never promoted into public; the file stays put.
	assert.Equal(t, models.TierOriginals, applied.tier)
	assert.True(t, applied.humanReview)
}

func TestCallbackServiceApprovalGateViolations(t *testing.T) {
	f := newCallbackFixture(analyzingAsset())

	err := f.svc.HandleVerdict(context.Background(), dto.VerdictRequest{
		TrackingID:       "trk-1",
		ModerationStatus: models.StateApprovedBlurred,
		ModerationScore:  10,
		RiskLevel:        models.RiskLow,
		ViolationTypes:   []string{"weapons"},
	})
	require.NoError(t, err)

	require.Len(t, f.assets.applied, 1)
	assert.Equal(t, models.StateFlagged, f.assets.applied[0].state)
	assert.True(t, f.assets.applied[0].humanReview)
}

func TestCallbackServiceQuarantineForcesReview(t *testing.T) {
	f := newCallbackFixture(analyzingAsset())

	err := f.svc.HandleVerdict(context.Background(), dto.VerdictRequest{
		TrackingID:       "trk-1",
		ModerationStatus: models.StateQuarantined,
		ModerationScore:  95,
		RiskLevel:        models.RiskHigh,
	})
	require.NoError(t, err)

	require.Len(t, f.assets.applied, 1)
	assert.Equal(t, models.TierQuarantine, f.assets.applied[0].tier)
	assert.True(t, f.assets.applied[0].humanReview)
}

func TestCallbackServiceUnknownTracking(t *testing.T) {
	f := newCallbackFixture(nil)

	err := f.svc.HandleVerdict(context.Background(), dto.VerdictRequest{
		TrackingID:       "trk-missing",
		TenantSlug:       "acme",
		ModerationStatus: models.StateApproved,
	})
	require.ErrorIs(t, err, appErrors.ErrUnknownTracking)
	assert.Empty(t, f.assets.applied)

	require.Len(t, f.logRepo.entries, 1)
	assert.Equal(t, models.LogCategoryError, f.logRepo.entries[0].Category)
}

func TestCallbackServiceUnrecognizedStatus(t *testing.T) {
	f := newCallbackFixture(analyzingAsset())

	err := f.svc.HandleVerdict(context.Background(), dto.VerdictRequest{
		TrackingID:       "trk-1",
		ModerationStatus: "pending_review",
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))
	assert.Empty(t, f.assets.applied)
}

func TestCallbackServiceDuplicateVerdictNoop(t *testing.T) {
	asset := analyzingAsset()
	asset.State = models.StateApproved
	asset.StorageTier = models.TierPublic
	f := newCallbackFixture(asset)

	err := f.svc.HandleVerdict(context.Background(), dto.VerdictRequest{
		TrackingID:       "trk-1",
		ModerationStatus: models.StateApproved,
		ModerationScore:  15,
	})
	require.NoError(t, err)
	assert.Empty(t, f.assets.applied)
	assert.Empty(t, f.mover.calls)
	assert.Empty(t, f.notifRepo.created)
	// Short-circuited before the dedupe cache.
	assert.Empty(t, f.cache.keys)
}

func TestCallbackServiceTerminalStateNotReversed(t *testing.T) {
	asset := analyzingAsset()
	asset.State = models.StateRejected
	asset.StorageTier = models.TierRejected
	f := newCallbackFixture(asset)

	err := f.svc.HandleVerdict(context.Background(), dto.VerdictRequest{
		TrackingID:       "trk-1",
		ModerationStatus: models.StateApproved,
		ModerationScore:  10,
		RiskLevel:        models.RiskLow,
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))

	// The rejection stands: no state change, no file move, no notification.
	assert.Empty(t, f.assets.applied)
	assert.Empty(t, f.mover.calls)
	assert.Empty(t, f.notifRepo.created)

	require.Len(t, f.logRepo.entries, 1)
	assert.Equal(t, models.LogCategoryError, f.logRepo.entries[0].Category)
	assert.Equal(t, string(models.StateRejected), f.logRepo.entries[0].Details["currentState"])
}

func TestCallbackServiceCacheSuppressesRedelivery(t *testing.T) {
	f := newCallbackFixture(analyzingAsset())
	f.cache.claimed = false

	err := f.svc.HandleVerdict(context.Background(), dto.VerdictRequest{
		TrackingID:       "trk-1",
		ModerationStatus: models.StateApproved,
		ModerationScore:  15,
	})
	require.NoError(t, err)
	assert.Empty(t, f.assets.applied)
	require.Len(t, f.cache.keys, 1)
	assert.Equal(t, "verdict:trk-1:approved", f.cache.keys[0])
}

func TestCallbackServiceCacheFailureDoesNotBlock(t *testing.T) {
	f := newCallbackFixture(analyzingAsset())
	f.cache.claimed = false
	f.cache.err = assert.AnError

	err := f.svc.HandleVerdict(context.Background(), dto.VerdictRequest{
		TrackingID:       "trk-1",
		ModerationStatus: models.StateApproved,
		ModerationScore:  15,
	})
	require.NoError(t, err)
	assert.Len(t, f.assets.applied, 1)
}

func TestCallbackServiceMoveFailureDefersTransition(t *testing.T) {
	f := newCallbackFixture(analyzingAsset())
	f.mover.result = MoveResult{Success: false, Error: "source file does not exist"}

	err := f.svc.HandleVerdict(context.Background(), dto.VerdictRequest{
		TrackingID:       "trk-1",
		ModerationStatus: models.StateRejected,
		ModerationScore:  85,
		RiskLevel:        models.RiskHigh,
	})
	require.NoError(t, err)

	// State already transitioned, but the notification waits for the replay.
	assert.Len(t, f.assets.applied, 1)
	assert.Empty(t, f.notifRepo.created)

	require.Len(t, f.retries.ops, 1)
	op := f.retries.ops[0]
	assert.Equal(t, models.RetryOpModerationCallback, op.Type)
	assert.Equal(t, "trk-1", op.TrackingID)
	assert.Equal(t, models.PriorityMedium, op.Priority)
	assert.Equal(t, string(models.StateRejected), op.Payload["moderationStatus"])
	assert.Equal(t, string(models.TierOriginals), op.Payload["fromTier"])
}

func TestCallbackServiceReplayVerdict(t *testing.T) {
	f := newCallbackFixture(analyzingAsset())

	err := f.svc.ReplayVerdict(context.Background(), models.RetryOperation{
		TrackingID: "trk-1",
		TenantSlug: "acme",
		Payload: models.RetryPayload{
			"moderationStatus": string(models.StateRejected),
			"moderationScore":  85.0,
			"riskLevel":        string(models.RiskHigh),
			"fromTier":         string(models.TierOriginals),
		},
	})
	require.NoError(t, err)

	require.Len(t, f.assets.applied, 1)
	assert.Equal(t, models.StateRejected, f.assets.applied[0].state)
	require.Len(t, f.mover.calls, 1)
	assert.Equal(t, models.TierOriginals, f.mover.calls[0].fromTier)
	assert.Equal(t, models.TierRejected, f.mover.calls[0].target)
	// The deferred notification goes out once the replay lands.
	require.Len(t, f.notifRepo.created, 1)
	assert.Equal(t, models.NotifModerationResult, f.notifRepo.created[0].Type)
}

func TestCallbackServiceReplayFailureReturnsError(t *testing.T) {
	f := newCallbackFixture(analyzingAsset())
	f.mover.result = MoveResult{Success: false, Error: "still missing"}

	err := f.svc.ReplayVerdict(context.Background(), models.RetryOperation{
		TrackingID: "trk-1",
		Payload: models.RetryPayload{
			"moderationStatus": string(models.StateRejected),
			"fromTier":         string(models.TierOriginals),
		},
	})
	require.Error(t, err)
	assert.Empty(t, f.notifRepo.created)
}
