package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/media-moderation-api/internal/models"
)

func TestEscalationServiceWebhookDelivery(t *testing.T) {
	received := make(chan []byte, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := NewEscalationService(zap.NewNop(), EscalationConfig{
		WebhookEnabled: true,
		WebhookURL:     server.URL,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.QueueWebhook(models.Notification{
		ID:       "n-1",
		Type:     models.NotifSystemAlert,
		Message:  "retry operation abandoned",
		Priority: models.NotifPriorityHigh,
	})

	select {
	case body := <-received:
		var n models.Notification
		require.NoError(t, json.Unmarshal(body, &n))
		assert.Equal(t, "n-1", n.ID)
		assert.Equal(t, models.NotifSystemAlert, n.Type)
	case <-time.After(3 * time.Second):
		t.Fatal("webhook was not delivered")
	}
}

func TestEscalationServiceDisabledChannelsNoop(t *testing.T) {
	svc := NewEscalationService(zap.NewNop(), EscalationConfig{})

	// Channels disabled: nothing is enqueued even before Start.
	svc.QueueEmail(models.Notification{ID: "n-1"})
	svc.QueueWebhook(models.Notification{ID: "n-1"})
	assert.Zero(t, svc.queue.Depth())
}

func TestEscalationServiceEmailNeedsRecipients(t *testing.T) {
	svc := NewEscalationService(zap.NewNop(), EscalationConfig{EmailEnabled: true})

	svc.QueueEmail(models.Notification{ID: "n-1"})
	assert.Zero(t, svc.queue.Depth())
}
