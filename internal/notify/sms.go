package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// HTTPGatewaySmsSender delivers SMS through a generic HTTP gateway (a
// carrier or aggregator's REST API, configured per-tenant by base URL and
// API key). No SMS-specific vendor SDK is grounded in the example corpus,
// so this follows HTTPWebhookSender's delivery shape — a single synchronous
// POST per call, failures surfaced as plain errors for the worker runtime's
// own retry/backoff to handle — rather than bundling a carrier SDK.
type HTTPGatewaySmsSender struct {
	Client *http.Client
	BaseURL string
	APIKey  string
}

// NewHTTPGatewaySmsSender builds a sender against baseURL with the given
// per-call timeout.
func NewHTTPGatewaySmsSender(baseURL, apiKey string, timeout time.Duration) *HTTPGatewaySmsSender {
	return &HTTPGatewaySmsSender{Client: &http.Client{Timeout: timeout}, BaseURL: baseURL, APIKey: apiKey}
}

type smsGatewayRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// Send POSTs a {to, body} JSON payload to BaseURL+"/messages", treating
// any non-2xx status as a failure.
func (s *HTTPGatewaySmsSender) Send(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(smsGatewayRequest{To: to, Body: body})
	if err != nil {
		return err
	}

	endpoint, err := url.JoinPath(s.BaseURL, "messages")
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: sms gateway delivery failed: HTTP %d", resp.StatusCode)
	}
	return nil
}

// NoopSmsSender logs SMS sends to zap instead of delivering them, mirroring
// NoopMailSender for the case where no gateway is configured.
type NoopSmsSender struct {
	logger *zap.Logger
}

// NewNoopSmsSender creates a NoopSmsSender backed by logger.
func NewNoopSmsSender(logger *zap.Logger) *NoopSmsSender {
	return &NoopSmsSender{logger: logger}
}

// Send logs the SMS and returns nil.
func (n *NoopSmsSender) Send(_ context.Context, to, body string) error {
	n.logger.Info("sms (noop — not sent)", zap.String("to", to), zap.String("body", body))
	return nil
}
