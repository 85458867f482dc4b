// Package event mirrors delivered notifications onto a NATS JetStream subject
// so external consumers (audit trails, dashboards) can follow the pipeline
// without polling the database.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/noah-isme/media-moderation-api/internal/models"
)

// Publisher streams pipeline notifications to interested consumers.
type Publisher interface {
	PublishNotification(ctx context.Context, n models.Notification) error
	Close() error
}

// Envelope wraps every published event.
type Envelope struct {
	Type          string      `json:"type"`
	Version       string      `json:"version"`
	OccurredAt    time.Time   `json:"occurredAt"`
	CorrelationID string      `json:"correlationId"`
	Payload       interface{} `json:"payload"`
}

type noop struct{}

func (noop) PublishNotification(ctx context.Context, n models.Notification) error { return nil }
func (noop) Close() error                                                         { return nil }

type natsPub struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
	logger  *zap.Logger
}

// NewPublisher connects to NATS when a URL is configured. An empty URL or a
// failed connection yields a no-op publisher so the pipeline runs without an
// event stream.
func NewPublisher(url, subject string, logger *zap.Logger) Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if url == "" {
		return noop{}
	}
	if subject == "" {
		subject = "moderation.notifications"
	}
	nc, err := nats.Connect(url)
	if err != nil {
		logger.Sugar().Warnw("nats connect failed, events disabled", "error", err)
		return noop{}
	}
	js, err := nc.JetStream()
	if err != nil {
		logger.Sugar().Warnw("jetstream context failed, events disabled", "error", err)
		nc.Close()
		return noop{}
	}
	if _, err := js.AddStream(&nats.StreamConfig{
		Name:      "MODERATION_NOTIFICATIONS",
		Subjects:  []string{subject},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Discard:   nats.DiscardOld,
		Storage:   nats.FileStorage,
	}); err != nil {
		logger.Sugar().Warnw("jetstream stream init failed, events disabled", "error", err)
		nc.Close()
		return noop{}
	}
	return &natsPub{nc: nc, js: js, subject: subject, logger: logger}
}

// PublishNotification wraps the notification in the event envelope and writes
// it to the stream.
func (p *natsPub) PublishNotification(ctx context.Context, n models.Notification) error {
	envelope := Envelope{
		Type:          fmt.Sprintf("moderation.notification.%s", n.Type),
		Version:       "1.0.0",
		OccurredAt:    time.Now().UTC(),
		CorrelationID: uuid.NewString(),
		Payload:       n,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}
	if _, err := p.js.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish notification event: %w", err)
	}
	return nil
}

// Close terminates the NATS connection.
func (p *natsPub) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}
