package audit

import (
	"context"
	"sync"
	"time"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

// MemorySink is an in-process Sink for tests, mirroring trustledger.MemoryLedger.
type MemorySink struct {
	mu     sync.Mutex
	events []*domain.AuditEvent
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Emit implements Sink.
func (s *MemorySink) Emit(_ context.Context, tenantID, eventType, actorType, actorID, resourceURN string, payload any) (*domain.AuditEvent, error) {
	e := newEvent(tenantID, eventType, actorType, actorID, resourceURN, payload)
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return e, nil
}

// ListByResource implements Sink.
func (s *MemorySink) ListByResource(_ context.Context, tenantID, resourceURN string, limit int) ([]*domain.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.AuditEvent
	for i := len(s.events) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		e := s.events[i]
		if e.TenantID == tenantID && e.ResourceURN == resourceURN {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListByType implements Sink.
func (s *MemorySink) ListByType(_ context.Context, tenantID, eventType string, since time.Time, limit int) ([]*domain.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.AuditEvent
	for i := len(s.events) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		e := s.events[i]
		if e.TenantID == tenantID && e.EventType == eventType && !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns every event recorded, oldest first. Test-only convenience.
func (s *MemorySink) All() []*domain.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.AuditEvent, len(s.events))
	copy(out, s.events)
	return out
}
