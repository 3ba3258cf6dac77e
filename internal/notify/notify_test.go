package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

type fakeMail struct {
	sent int
	err  error
}

func (m *fakeMail) Send(ctx context.Context, to, subject, body string) error {
	m.sent++
	return m.err
}

type fakeWebhookSender struct {
	delivered int
	err       error
	lastURL   string
	lastSecret string
	lastBody  []byte
}

func (w *fakeWebhookSender) Deliver(ctx context.Context, url, secret string, body []byte) error {
	w.delivered++
	w.lastURL, w.lastSecret, w.lastBody = url, secret, body
	return w.err
}

func newHandler(mail MailSender, webhooks WebhookSender) (*Handler, *MemoryNotificationRepo) {
	repo := NewMemoryNotificationRepo()
	clockFn := func() time.Time { return time.Unix(1_700_000_000, 0).UTC() }
	return &Handler{Mail: mail, Webhooks: webhooks, Records: repo, Clock: clockFn}, repo
}

func workItem(t *testing.T, event Event) *domain.WorkItem {
	t.Helper()
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return &domain.WorkItem{ID: "wi-1", TenantID: "tenant-1", Type: "notify", Payload: raw, MaxAttempts: 3}
}

func TestHandler_Execute_EmailDelivers(t *testing.T) {
	mail := &fakeMail{}
	h, repo := newHandler(mail, nil)

	item := workItem(t, Event{MessageID: "msg-1", Channel: domain.ChannelEmail, Recipient: "a@example.com", Body: "hi"})
	result := h.Execute(context.Background(), item, "exec-1")

	require.True(t, result.Success)
	require.Equal(t, 1, mail.sent)
	rec, err := repo.FindByMessageID(context.Background(), "tenant-1", "msg-1")
	require.NoError(t, err)
	require.True(t, rec.Success)
}

func TestHandler_Execute_IdempotentOnMessageID(t *testing.T) {
	mail := &fakeMail{}
	h, _ := newHandler(mail, nil)

	item := workItem(t, Event{MessageID: "msg-1", Channel: domain.ChannelEmail, Recipient: "a@example.com", Body: "hi"})
	r1 := h.Execute(context.Background(), item, "exec-1")
	require.True(t, r1.Success)

	r2 := h.Execute(context.Background(), item, "exec-2")
	require.True(t, r2.Success)
	require.Equal(t, 1, mail.sent, "replay must not re-send")
}

func TestHandler_Execute_MailFailureIsRetryable(t *testing.T) {
	mail := &fakeMail{err: errors.New("smtp down")}
	h, _ := newHandler(mail, nil)

	item := workItem(t, Event{MessageID: "msg-2", Channel: domain.ChannelEmail, Recipient: "a@example.com", Body: "hi"})
	result := h.Execute(context.Background(), item, "exec-1")

	require.False(t, result.Success)
	require.True(t, result.ShouldRetry)
}

func TestHandler_Execute_WebhookChannelSignsAndDelivers(t *testing.T) {
	wh := &fakeWebhookSender{}
	h, _ := newHandler(nil, wh)

	item := workItem(t, Event{
		MessageID: "msg-3", Channel: domain.ChannelWebhook, Recipient: "investor-1",
		WebhookURL: "https://example.com/hook", WebhookSecret: "topsecret", Body: `{"event":"remittance.payout.sent"}`,
	})
	result := h.Execute(context.Background(), item, "exec-1")

	require.True(t, result.Success)
	require.Equal(t, 1, wh.delivered)
	require.Equal(t, "https://example.com/hook", wh.lastURL)
	require.Equal(t, "topsecret", wh.lastSecret, "the sender must receive the event's signing secret")
}

func TestHandler_Execute_MalformedEventIsNonRetryable(t *testing.T) {
	h, _ := newHandler(&fakeMail{}, nil)
	item := &domain.WorkItem{ID: "wi-4", TenantID: "tenant-1", Type: "notify", Payload: []byte("not json"), MaxAttempts: 3}
	result := h.Execute(context.Background(), item, "exec-1")
	require.False(t, result.Success)
	require.False(t, result.ShouldRetry)
}

func TestSignPayload_IsDeterministicHMAC(t *testing.T) {
	sig1 := SignPayload([]byte(`{"a":1}`), "secret")
	sig2 := SignPayload([]byte(`{"a":1}`), "secret")
	require.Equal(t, sig1, sig2)

	sig3 := SignPayload([]byte(`{"a":2}`), "secret")
	require.NotEqual(t, sig1, sig3)
}
