package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryDocStore_PutGetExists(t *testing.T) {
	s := NewMemoryDocStore()
	ctx := context.Background()

	ok, err := s.Exists(ctx, "tenants/t1/loans/l1/documents/doc-1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Put(ctx, "tenants/t1/loans/l1/documents/doc-1", []byte("hello")))

	ok, err = s.Exists(ctx, "tenants/t1/loans/l1/documents/doc-1")
	require.NoError(t, err)
	require.True(t, ok)

	data, err := s.Get(ctx, "tenants/t1/loans/l1/documents/doc-1")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)
}

func TestMemoryDocStore_GetMissingErrors(t *testing.T) {
	s := NewMemoryDocStore()
	_, err := s.Get(context.Background(), "missing")
	require.Error(t, err)
}

func TestMemoryBroker_PublishFansOutToSubscribers(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	ch1, err := b.Subscribe(ctx, "topic-a")
	require.NoError(t, err)
	ch2, err := b.Subscribe(ctx, "topic-a")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "topic-a", []byte("msg")))

	require.Equal(t, []byte("msg"), <-ch1)
	require.Equal(t, []byte("msg"), <-ch2)
}

func TestSHA256Hex(t *testing.T) {
	require.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		SHA256Hex([]byte("hello")))
}
