package vendorhealth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

type memoryAuditSink struct {
	mu     sync.Mutex
	events []string
}

func (s *memoryAuditSink) Emit(ctx context.Context, tenantID, eventType, actorType, actorID, resourceURN string, payload any) (*domain.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, eventType)
	return &domain.AuditEvent{}, nil
}

func (s *memoryAuditSink) ListByResource(ctx context.Context, tenantID, resourceURN string, limit int) ([]*domain.AuditEvent, error) {
	return nil, nil
}

func (s *memoryAuditSink) ListByType(ctx context.Context, tenantID, eventType string, since time.Time, limit int) ([]*domain.AuditEvent, error) {
	return nil, nil
}

func (s *memoryAuditSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestChecker_CheckAll_HealthyTargetNeverDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := &memoryAuditSink{}
	checker := New([]Target{{Vendor: "HOI", BaseURL: srv.URL}}, Config{FailThreshold: 2}, sink, nil)

	checker.CheckAll(context.Background())
	checker.CheckAll(context.Background())

	require.Equal(t, 0, sink.count())
	require.Equal(t, 0, checker.failCounts["HOI"])
}

func TestChecker_CheckAll_DegradesAtFailThresholdThenRecovers(t *testing.T) {
	var failing bool
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if failing {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := &memoryAuditSink{}
	checker := New([]Target{{Vendor: "FLOOD", BaseURL: srv.URL}}, Config{FailThreshold: 2}, sink, nil)

	mu.Lock()
	failing = true
	mu.Unlock()

	checker.CheckAll(context.Background())
	require.Equal(t, 0, sink.count(), "below threshold: no degraded event yet")

	checker.CheckAll(context.Background())
	require.Equal(t, 1, sink.count(), "exactly at threshold: one degraded event")

	checker.CheckAll(context.Background())
	require.Equal(t, 1, sink.count(), "stays degraded without re-emitting every probe")

	mu.Lock()
	failing = false
	mu.Unlock()

	checker.CheckAll(context.Background())
	require.Equal(t, 0, checker.failCounts["FLOOD"], "recovered clears the consecutive-failure count")
}

func TestChecker_ProbeEndpoint_FallsBackFromHeadToGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	checker := New([]Target{{Vendor: "TITLE", BaseURL: srv.URL}}, Config{}, nil, nil)
	require.True(t, checker.probeEndpoint(context.Background(), srv.URL))
}
