package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/media-moderation-api/internal/models"
	"github.com/noah-isme/media-moderation-api/internal/service"
)

type verdictStoreFake struct {
	asset   *models.MediaAsset
	applied int
}

func (f *verdictStoreFake) GetByTrackingID(ctx context.Context, trackingID string) (*models.MediaAsset, error) {
	if f.asset != nil && f.asset.TrackingID == trackingID {
		a := *f.asset
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (f *verdictStoreFake) ApplyVerdict(ctx context.Context, id string, state models.ModerationState, tier models.StorageTier, score float64, risk models.RiskLevel, humanReview bool, verdictAt time.Time) error {
	f.applied++
	return nil
}

type moverFake struct{}

func (moverFake) MoveFile(ctx context.Context, asset *models.MediaAsset, target models.StorageTier) (service.MoveResult, error) {
	return service.MoveResult{Success: true}, nil
}

type enqueuerFake struct{}

func (enqueuerFake) Enqueue(ctx context.Context, op *models.RetryOperation) (string, error) {
	return op.ID, nil
}

type notifStoreFake struct{}

func (notifStoreFake) Create(ctx context.Context, n *models.Notification) error { return nil }
func (notifStoreFake) CountByType(ctx context.Context, tenantSlug string) (map[models.NotificationType]int, error) {
	return nil, nil
}
func (notifStoreFake) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type logStoreFake struct{}

func (logStoreFake) Create(ctx context.Context, entry *models.MediaLogEntry) error { return nil }
func (logStoreFake) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func newCallbackHandler(store *verdictStoreFake) *CallbackHandler {
	notifier := service.NewNotificationService(notifStoreFake{}, nil, nil, nil, zap.NewNop(), service.NotificationServiceConfig{HourlyCap: 100})
	medialog := service.NewMediaLogService(logStoreFake{}, zap.NewNop(), 0)
	callbacks := service.NewCallbackService(store, nil, moverFake{}, enqueuerFake{}, notifier, medialog, nil, zap.NewNop(), 30)
	return NewCallbackHandler(callbacks)
}

func postVerdict(t *testing.T, handler *CallbackHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodPost, "/moderation/callback", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	handler.Verdict(c)
	return w
}

func TestCallbackHandlerVerdict(t *testing.T) {
	store := &verdictStoreFake{asset: &models.MediaAsset{
		ID:          "asset-1",
		TenantSlug:  "acme",
		Filename:    "pic.jpg",
		TrackingID:  "trk-1",
		State:       models.StateAnalyzing,
		StorageTier: models.TierOriginals,
	}}

	w := postVerdict(t, newCallbackHandler(store),
		`{"trackingId":"trk-1","moderationStatus":"approved","moderationScore":12,"riskLevel":"low"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"received":true`)
	assert.Equal(t, 1, store.applied)
}

func TestCallbackHandlerVerdictInvalidBody(t *testing.T) {
	store := &verdictStoreFake{}

	w := postVerdict(t, newCallbackHandler(store), `{"trackingId":"trk-1"`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, store.applied)
}

func TestCallbackHandlerVerdictMissingStatus(t *testing.T) {
	w := postVerdict(t, newCallbackHandler(&verdictStoreFake{}), `{"trackingId":"trk-1"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallbackHandlerVerdictUnknownTracking(t *testing.T) {
	w := postVerdict(t, newCallbackHandler(&verdictStoreFake{}),
		`{"trackingId":"trk-missing","moderationStatus":"approved"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}
