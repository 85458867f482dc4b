package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/media-moderation-api/internal/models"
	"github.com/noah-isme/media-moderation-api/pkg/jobs"
)

const (
	escalationJobEmail   = "email"
	escalationJobWebhook = "webhook"
)

// EscalationConfig configures the out-of-band delivery channels.
type EscalationConfig struct {
	EmailEnabled   bool
	WebhookEnabled bool
	EmailFrom      string
	Recipients     []string
	SMTPAddr       string
	WebhookURL     string
	HTTPTimeout    time.Duration
}

// EscalationService delivers high-priority notifications to email and webhook
// channels. Delivery rides a background queue so the notification send
// pipeline never blocks on SMTP or HTTP; failures are logged and swallowed.
type EscalationService struct {
	queue  *jobs.Queue
	client *http.Client
	logger *zap.Logger
	cfg    EscalationConfig
}

// NewEscalationService constructs the service and its delivery queue.
func NewEscalationService(logger *zap.Logger, cfg EscalationConfig) *EscalationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	s := &EscalationService{
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		logger: logger,
		cfg:    cfg,
	}
	s.queue = jobs.NewQueue("escalation", s.process, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 64,
		MaxRetries: 3,
		RetryDelay: 5 * time.Second,
		Logger:     logger,
	})
	return s
}

// Start begins background delivery.
func (s *EscalationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *EscalationService) Stop() {
	s.queue.Stop()
}

// QueueEmail enqueues an email delivery when the channel is enabled.
func (s *EscalationService) QueueEmail(n models.Notification) {
	if !s.cfg.EmailEnabled || len(s.cfg.Recipients) == 0 {
		return
	}
	if err := s.queue.Enqueue(jobs.Job{ID: n.ID, Type: escalationJobEmail, Payload: n}); err != nil {
		s.logger.Sugar().Warnw("email escalation enqueue failed", "notification_id", n.ID, "error", err)
	}
}

// QueueWebhook enqueues a webhook delivery when the channel is enabled.
func (s *EscalationService) QueueWebhook(n models.Notification) {
	if !s.cfg.WebhookEnabled || s.cfg.WebhookURL == "" {
		return
	}
	if err := s.queue.Enqueue(jobs.Job{ID: n.ID, Type: escalationJobWebhook, Payload: n}); err != nil {
		s.logger.Sugar().Warnw("webhook escalation enqueue failed", "notification_id", n.ID, "error", err)
	}
}

func (s *EscalationService) process(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.Notification)
	if !ok {
		s.logger.Sugar().Errorw("escalation job carries unexpected payload", "job_id", job.ID)
		return nil
	}
	switch job.Type {
	case escalationJobEmail:
		return s.sendEmail(n)
	case escalationJobWebhook:
		return s.sendWebhook(ctx, n)
	default:
		s.logger.Sugar().Errorw("unknown escalation job type", "type", job.Type)
		return nil
	}
}

func (s *EscalationService) sendEmail(n models.Notification) error {
	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(n.Priority)), n.Type)
	var body bytes.Buffer
	fmt.Fprintf(&body, "From: %s\r\n", s.cfg.EmailFrom)
	fmt.Fprintf(&body, "To: %s\r\n", strings.Join(s.cfg.Recipients, ", "))
	fmt.Fprintf(&body, "Subject: %s\r\n\r\n", subject)
	fmt.Fprintf(&body, "%s\r\n\r\ntenant: %s\r\nasset: %s\r\npriority: %s\r\n",
		n.Message, n.TenantSlug, n.AssetID, n.Priority)

	if err := smtp.SendMail(s.cfg.SMTPAddr, nil, s.cfg.EmailFrom, s.cfg.Recipients, body.Bytes()); err != nil {
		return fmt.Errorf("send escalation email: %w", err)
	}
	return nil
}

func (s *EscalationService) sendWebhook(ctx context.Context, n models.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}
	return nil
}
