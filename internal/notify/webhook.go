package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPWebhookSender is the production WebhookSender: a single signed POST
// per call, headers matching spec.md §4.8 (X-LoanServe-Signature,
// User-Agent: LoanServe-Remittance/1.0).
// Grounded on internal/webhooks.Service.doDelivery, generalized from a
// fire-and-forget goroutine to a single synchronous delivery the worker
// runtime retries (§4.1's retry/backoff replaces the teacher's in-method
// fixed delay schedule).
type HTTPWebhookSender struct {
	Client *http.Client
}

// NewHTTPWebhookSender builds a sender with the given per-call timeout.
func NewHTTPWebhookSender(timeout time.Duration) *HTTPWebhookSender {
	return &HTTPWebhookSender{Client: &http.Client{Timeout: timeout}}
}

// Deliver POSTs body to url with an X-LoanServe-Signature header computed
// from secret, treating any non-2xx status as a failure.
func (s *HTTPWebhookSender) Deliver(ctx context.Context, url, secret string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-LoanServe-Signature", SignPayload(body, secret))
	req.Header.Set("User-Agent", "LoanServe-Remittance/1.0")

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook delivery failed: HTTP %d", resp.StatusCode)
	}
	return nil
}
