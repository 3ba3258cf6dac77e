package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemorySink_ListByResource(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()

	_, err := sink.Emit(ctx, "tenant-1", EventAuthorityDecision, "worker", "intake", "urn:loan:abc", map[string]string{"key": "loan_amount"})
	require.NoError(t, err)
	_, err = sink.Emit(ctx, "tenant-1", EventWorkStarted, "worker", "intake", "urn:loan:xyz", nil)
	require.NoError(t, err)

	events, err := sink.ListByResource(ctx, "tenant-1", "urn:loan:abc", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, EventAuthorityDecision, events[0].EventType)
}

func TestMemorySink_ListByType(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := sink.Emit(ctx, "tenant-1", EventWorkDLQ, "worker", "intake", "urn:loan:abc", nil)
		require.NoError(t, err)
	}

	events, err := sink.ListByType(ctx, "tenant-1", EventWorkDLQ, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
}
