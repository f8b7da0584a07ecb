package memory

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airuntime/core/chat"
)

func setupTestCache(t *testing.T, size int) (*miniredis.Miniredis, *Cache) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	return mr, NewCache(mr.Addr(), size)
}

func TestCache_AddAndGetAll(t *testing.T) {
	mr, c := setupTestCache(t, 10)
	defer mr.Close()
	ctx := context.Background()
	tenant := Tenant{UserID: "u1", ConversationID: "c1"}

	require.NoError(t, c.Add(ctx, tenant, chat.Message{Role: chat.RoleUser, Text: "hi"}))
	entries, err := c.GetAll(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hi", entries[0].Message.Text)
}

func TestCache_EvictsBeyondSize(t *testing.T) {
	mr, c := setupTestCache(t, 2)
	defer mr.Close()
	ctx := context.Background()
	tenant := Tenant{UserID: "u1", ConversationID: "c1"}

	require.NoError(t, c.Add(ctx, tenant, chat.Message{Role: chat.RoleUser, Text: "one"}))
	require.NoError(t, c.Add(ctx, tenant, chat.Message{Role: chat.RoleUser, Text: "two"}))
	require.NoError(t, c.Add(ctx, tenant, chat.Message{Role: chat.RoleUser, Text: "three"}))

	entries, err := c.GetAll(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "two", entries[0].Message.Text)
	assert.Equal(t, "three", entries[1].Message.Text)
}

func TestCache_ClearRemovesKey(t *testing.T) {
	mr, c := setupTestCache(t, 10)
	defer mr.Close()
	ctx := context.Background()
	tenant := Tenant{UserID: "u1", ConversationID: "c1"}

	require.NoError(t, c.Add(ctx, tenant, chat.Message{Role: chat.RoleUser, Text: "hi"}))
	require.NoError(t, c.Clear(ctx, tenant))

	entries, err := c.GetAll(ctx, tenant)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCache_MetadataRoundTrip(t *testing.T) {
	mr, c := setupTestCache(t, 10)
	defer mr.Close()
	ctx := context.Background()
	tenant := Tenant{UserID: "u1", ConversationID: "c1"}

	c.SetMetadata(ctx, tenant, "topic", "refunds")
	v, ok := c.GetMetadata(ctx, tenant, "topic")
	require.True(t, ok)
	assert.Equal(t, "refunds", v)
}

func TestCache_WithTTLAndPrefix(t *testing.T) {
	mr, c := setupTestCache(t, 10)
	defer mr.Close()
	c.WithPrefix("custom:").WithTTL(0)
	assert.Equal(t, "custom:", c.prefix)
}
