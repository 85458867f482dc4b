package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ClassifierClient submits assets for asynchronous content analysis. The
// verdict arrives later on the callback endpoint, never on this call.
type ClassifierClient interface {
	SubmitForAnalysis(ctx context.Context, req ClassifierRequest) error
}

// ClassifierRequest is the analysis submission envelope.
type ClassifierRequest struct {
	TrackingID  string `json:"trackingId"`
	TenantSlug  string `json:"tenantSlug"`
	Filename    string `json:"filename"`
	ContextType string `json:"contextType,omitempty"`
	CallbackURL string `json:"callbackUrl"`
}

// HTTPClassifierClient talks to the external classifier over HTTP.
type HTTPClassifierClient struct {
	baseURL     string
	callbackURL string
	client      *http.Client
	logger      *zap.Logger
}

// NewHTTPClassifierClient constructs the client with a bounded request timeout.
func NewHTTPClassifierClient(baseURL, callbackURL string, timeout time.Duration, logger *zap.Logger) *HTTPClassifierClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClassifierClient{
		baseURL:     baseURL,
		callbackURL: callbackURL,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// SubmitForAnalysis posts the asset reference to the classifier's analyze
// endpoint. Any transport error or non-2xx status is returned to the caller
// so the submission can be parked on the retry queue.
func (c *HTTPClassifierClient) SubmitForAnalysis(ctx context.Context, req ClassifierRequest) error {
	if req.CallbackURL == "" {
		req.CallbackURL = c.callbackURL
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal classifier request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build classifier request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("classifier request: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}
	c.logger.Sugar().Debugw("asset submitted for analysis",
		"tracking_id", req.TrackingID, "tenant", req.TenantSlug)
	return nil
}
