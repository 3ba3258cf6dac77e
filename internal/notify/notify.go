// Package notify implements the Notification Worker (C11): ordinary
// self-healing worker.Handler implementations that consume outbox events
// and deliver email/SMS/webhook notifications, each idempotent on the
// outbox message's MessageID (spec.md §4.7).
//
// Grounded on internal/webhooks.Service.deliver/doDelivery (signed POST
// delivery with a per-attempt delivery record), generalized from "fan out
// to N webhook subscriptions" to "deliver one message to one recipient on
// one channel, with a durable idempotency record instead of an in-process
// goroutine fan-out".
package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
	"github.com/cschwartz85032/loanserve-sub007/internal/errkind"
	"github.com/cschwartz85032/loanserve-sub007/internal/worker"
)

// MailSender delivers an email message.
type MailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SmsSender delivers an SMS message.
type SmsSender interface {
	Send(ctx context.Context, to, body string) error
}

// NotificationRepo records delivery idempotency/audit rows.
type NotificationRepo interface {
	// FindByMessageID returns the existing record for messageId, or
	// (nil, nil) if none exists yet.
	FindByMessageID(ctx context.Context, tenantID, messageID string) (*domain.NotificationRecord, error)
	Create(ctx context.Context, rec *domain.NotificationRecord) error
}

// Event is the JSON shape published to the outbox's notification topics
// (email-requested, sms-requested, task-assigned, …).
type Event struct {
	MessageID string            `json:"messageId"`
	Channel   domain.NotificationChannel `json:"channel"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject,omitempty"`
	Body      string            `json:"body"`
	WebhookURL    string        `json:"webhookUrl,omitempty"`
	WebhookSecret string        `json:"webhookSecret,omitempty"`
}

// Handler implements worker.Handler, dispatching an Event to the channel
// it names.
type Handler struct {
	Mail     MailSender
	SMS      SmsSender
	Webhooks WebhookSender
	Records  NotificationRepo
	Clock    func() time.Time
}

// WebhookSender performs a single signed webhook delivery.
type WebhookSender interface {
	Deliver(ctx context.Context, url, secret string, body []byte) error
}

// Name implements worker.Handler.
func (h *Handler) Name() string { return "notify" }

// Execute implements worker.Handler.
func (h *Handler) Execute(ctx context.Context, item *domain.WorkItem, executionID string) worker.Result {
	var event Event
	if err := json.Unmarshal(item.Payload, &event); err != nil {
		return worker.Result{Success: false, ShouldRetry: false, Err: errkind.NewValidation(fmt.Errorf("notify: malformed event: %w", err))}
	}
	if event.MessageID == "" {
		return worker.Result{Success: false, ShouldRetry: false, Err: errkind.NewValidation(fmt.Errorf("notify: missing messageId"))}
	}

	existing, err := h.Records.FindByMessageID(ctx, item.TenantID, event.MessageID)
	if err != nil {
		return worker.Result{Success: false, ShouldRetry: true, Err: errkind.NewTransient(err)}
	}
	if existing != nil {
		// Already delivered (or already recorded as a terminal failure) by
		// an earlier attempt on this same messageId — no-op.
		return worker.Result{Success: true}
	}

	deliverErr := h.deliver(ctx, event)

	rec := &domain.NotificationRecord{
		ID: uuid.New().String(), TenantID: item.TenantID, MessageID: event.MessageID,
		Channel: event.Channel, Recipient: event.Recipient, Success: deliverErr == nil,
		DeliveredAt: h.now(),
	}
	if deliverErr != nil {
		rec.ErrorMessage = deliverErr.Error()
	}
	if err := h.Records.Create(ctx, rec); err != nil {
		return worker.Result{Success: false, ShouldRetry: true, Err: errkind.NewTransient(err)}
	}

	if deliverErr != nil {
		return worker.Result{Success: false, ShouldRetry: errkind.Retryable(deliverErr), Err: deliverErr}
	}
	return worker.Result{Success: true}
}

func (h *Handler) deliver(ctx context.Context, event Event) error {
	switch event.Channel {
	case domain.ChannelEmail:
		if h.Mail == nil {
			return errkind.NewValidation(fmt.Errorf("notify: no mail sender configured"))
		}
		if err := h.Mail.Send(ctx, event.Recipient, event.Subject, event.Body); err != nil {
			return errkind.NewTransient(err)
		}
		return nil
	case domain.ChannelSMS:
		if h.SMS == nil {
			return errkind.NewValidation(fmt.Errorf("notify: no sms sender configured"))
		}
		if err := h.SMS.Send(ctx, event.Recipient, event.Body); err != nil {
			return errkind.NewTransient(err)
		}
		return nil
	case domain.ChannelWebhook:
		if h.Webhooks == nil || event.WebhookURL == "" {
			return errkind.NewValidation(fmt.Errorf("notify: no webhook target configured"))
		}
		if err := h.Webhooks.Deliver(ctx, event.WebhookURL, event.WebhookSecret, []byte(event.Body)); err != nil {
			return errkind.NewTransient(err)
		}
		return nil
	default:
		return errkind.NewValidation(fmt.Errorf("notify: unknown channel %q", event.Channel))
	}
}

func (h *Handler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now().UTC()
}

// SignPayload computes the HMAC-SHA256 signature used by both the
// notification worker's webhook channel and the Remittance Engine's
// payout webhook (spec.md §4.8 "X-LoanServe-Signature = SHA256(JSON(body))
// keyed by webhook_secret").
func SignPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
