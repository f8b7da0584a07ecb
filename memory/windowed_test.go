package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airuntime/core/chat"
)

func TestWindowed_EvictsOldestButKeepsSystem(t *testing.T) {
	w := NewWindowed(2)
	ctx := context.Background()
	tenant := Tenant{UserID: "u1", ConversationID: "c1"}

	require.NoError(t, w.Add(ctx, tenant, chat.Message{Role: chat.RoleSystem, Text: "be helpful"}))
	require.NoError(t, w.Add(ctx, tenant, chat.Message{Role: chat.RoleUser, Text: "one"}))
	require.NoError(t, w.Add(ctx, tenant, chat.Message{Role: chat.RoleUser, Text: "two"}))
	require.NoError(t, w.Add(ctx, tenant, chat.Message{Role: chat.RoleUser, Text: "three"}))

	entries, err := w.GetAll(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, chat.RoleSystem, entries[0].Message.Role)
	assert.Equal(t, "two", entries[1].Message.Text)
	assert.Equal(t, "three", entries[2].Message.Text)
}

func TestWindowed_TenantIsolation(t *testing.T) {
	w := NewWindowed(10)
	ctx := context.Background()
	a := Tenant{UserID: "alice", ConversationID: "c1"}
	b := Tenant{UserID: "bob", ConversationID: "c1"}

	require.NoError(t, w.Add(ctx, a, chat.Message{Role: chat.RoleUser, Text: "alice msg"}))
	require.NoError(t, w.Add(ctx, b, chat.Message{Role: chat.RoleUser, Text: "bob msg"}))

	aEntries, err := w.GetAll(ctx, a)
	require.NoError(t, err)
	require.Len(t, aEntries, 1)
	assert.Equal(t, "alice msg", aEntries[0].Message.Text)

	bEntries, err := w.GetAll(ctx, b)
	require.NoError(t, err)
	require.Len(t, bEntries, 1)
	assert.Equal(t, "bob msg", bEntries[0].Message.Text)
}

func TestWindowed_ExportImportRoundTrip(t *testing.T) {
	w := NewWindowed(10)
	ctx := context.Background()
	tenant := Tenant{UserID: "u1", ConversationID: "c1"}

	require.NoError(t, w.Add(ctx, tenant, chat.Message{Role: chat.RoleUser, Text: "hi"}))
	require.NoError(t, w.Add(ctx, tenant, chat.Message{Role: chat.RoleAssistant, Text: "hello"}))

	exported, err := w.Export(ctx, tenant)
	require.NoError(t, err)

	w2 := NewWindowed(10)
	require.NoError(t, w2.Import(ctx, tenant, exported))

	reimported, err := w2.GetAll(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, exported, reimported)
}

func TestWindowed_MetadataPerTenant(t *testing.T) {
	w := NewWindowed(10)
	ctx := context.Background()
	a := Tenant{UserID: "a", ConversationID: "c"}
	b := Tenant{UserID: "b", ConversationID: "c"}

	w.SetMetadata(ctx, a, "topic", "billing")
	_, ok := w.GetMetadata(ctx, b, "topic")
	assert.False(t, ok)

	v, ok := w.GetMetadata(ctx, a, "topic")
	require.True(t, ok)
	assert.Equal(t, "billing", v)
}
