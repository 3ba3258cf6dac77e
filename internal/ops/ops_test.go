package ops

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

type fakeDLQStore struct {
	items      []*domain.WorkItem
	replayErr  error
	replayed   *domain.WorkItem
}

func (f *fakeDLQStore) List(ctx context.Context) ([]*domain.WorkItem, error) {
	return f.items, nil
}

func (f *fakeDLQStore) Replay(ctx context.Context, workItemID string, resetAttempts bool) (*domain.WorkItem, error) {
	if f.replayErr != nil {
		return nil, f.replayErr
	}
	return f.replayed, nil
}

type fakeRequeuer struct {
	enqueued []*domain.WorkItem
}

func (f *fakeRequeuer) Enqueue(ctx context.Context, item *domain.WorkItem) error {
	f.enqueued = append(f.enqueued, item)
	return nil
}

type fakeAuditSink struct {
	emitted []string
}

func (f *fakeAuditSink) Emit(ctx context.Context, tenantID, eventType, actorType, actorID, resourceURN string, payload any) (*domain.AuditEvent, error) {
	f.emitted = append(f.emitted, eventType)
	return &domain.AuditEvent{}, nil
}

func (f *fakeAuditSink) ListByResource(ctx context.Context, tenantID, resourceURN string, limit int) ([]*domain.AuditEvent, error) {
	return []*domain.AuditEvent{{ID: uuid.New(), ResourceURN: resourceURN}}, nil
}

func (f *fakeAuditSink) ListByType(ctx context.Context, tenantID, eventType string, since time.Time, limit int) ([]*domain.AuditEvent, error) {
	return []*domain.AuditEvent{{ID: uuid.New(), EventType: eventType}}, nil
}

var errNotFound = errors.New("work item not found")

func zapNop() *zap.Logger {
	return zap.NewNop()
}

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	rg := router.Group("/ops")
	h.Register(rg)
	return router
}

func TestHandler_ListDLQ_ReturnsItems(t *testing.T) {
	dlq := &fakeDLQStore{items: []*domain.WorkItem{{ID: "wi-1", Type: "intake"}}}
	h := &Handler{DLQ: dlq, Logger: zapNop()}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/ops/dlq", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "wi-1")
}

func TestHandler_ReplayDLQ_RequeuesAndAudits(t *testing.T) {
	dlq := &fakeDLQStore{replayed: &domain.WorkItem{ID: "wi-1", TenantID: "tenant-a", Type: "intake"}}
	requeue := &fakeRequeuer{}
	sink := &fakeAuditSink{}
	h := &Handler{DLQ: dlq, Requeue: requeue, Audit: sink, Logger: zapNop()}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/ops/dlq/wi-1/replay", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, requeue.enqueued, 1)
	require.Equal(t, "wi-1", requeue.enqueued[0].ID)
}

func TestHandler_ReplayDLQ_NotFoundWhenMissing(t *testing.T) {
	dlq := &fakeDLQStore{replayErr: errNotFound}
	h := &Handler{DLQ: dlq, Logger: zapNop()}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/ops/dlq/missing/replay", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_RunRemittance_RejectsMissingFields(t *testing.T) {
	h := &Handler{Logger: zapNop()}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/ops/remittance/run", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_RunExport_RejectsMissingFields(t *testing.T) {
	h := &Handler{Logger: zapNop()}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/ops/export/run", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_AuditByResource_ReturnsEvents(t *testing.T) {
	sink := &fakeAuditSink{}
	h := &Handler{Audit: sink, Logger: zapNop()}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/ops/audit/resource/urn:loan:123", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "urn:loan:123")
}

func TestHandler_AuditByType_RejectsBadSince(t *testing.T) {
	sink := &fakeAuditSink{}
	h := &Handler{Audit: sink, Logger: zapNop()}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/ops/audit/type/WORKER.WORK_FAILED?since=not-a-date", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
