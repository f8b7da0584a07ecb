package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airuntime/core/chat"
)

func TestContext_StartEndSpan_RecordsToStore(t *testing.T) {
	store := NewMemoryStore(0)
	actx := NewContext(store)
	ctx := context.Background()

	_, span := actx.StartSpan(ctx, SpanModel, "chat")
	actx.EndSpan(span, "hello", chat.TokenUsage{TotalTokens: 42}, nil)

	spans, err := store.Query(ctx, Query{TraceID: actx.TraceID()})
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, SpanModel, spans[0].Type)
	assert.Equal(t, "hello", spans[0].Output)
	assert.Equal(t, 42, spans[0].Tokens.TotalTokens)
	assert.False(t, spans[0].Duration() < 0)
}

func TestContext_NestedSpans_ParentLinkage(t *testing.T) {
	actx := NewContext(NewMemoryStore(0))
	ctx := context.Background()

	parentCtx, parent := actx.StartSpan(ctx, SpanAgent, "run")
	_, child := actx.StartSpan(parentCtx, SpanTool, "get_weather")
	actx.EndSpan(child, "85", chat.TokenUsage{}, nil)
	actx.EndSpan(parent, "done", chat.TokenUsage{}, nil)

	assert.Equal(t, parent.SpanID, child.ParentSpanID)
	assert.Equal(t, parent.TraceID, child.TraceID)
}

func TestMemoryStore_EvictsOldestPastCapacity(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Write(ctx, &Span{SpanID: string(rune('a' + i)), TraceID: "t"}))
	}
	spans, err := store.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, spans, 2)
	assert.Equal(t, "b", spans[0].SpanID)
	assert.Equal(t, "c", spans[1].SpanID)
}

func TestSanitize_RedactsKeysAndTruncates(t *testing.T) {
	cfg := DefaultSanitizeConfig()
	cfg.MaxInputSize = 5
	span := &Span{
		Input: map[string]any{"apiKey": "sk-123", "question": "hello world"},
	}
	out := Sanitize(span, cfg)
	in := out.Input.(map[string]any)
	assert.Equal(t, "[REDACTED]", in["apiKey"])
	assert.Equal(t, "hello...(truncated)", in["question"])
}

func TestConfig_EnabledPrecedence(t *testing.T) {
	t.Setenv(EnvEnabledVar, "false")
	enabled := true
	cfg := Config{ModuleEnabled: false, SettingsEnabled: &enabled}
	assert.True(t, cfg.Enabled(), "settings layer must win over env")

	cfg2 := Config{ModuleEnabled: false}
	assert.False(t, cfg2.Enabled(), "env layer must win over module default")
}

func TestFileStore_WriteAndQuery(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir + "/audit.ndjson")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Write(ctx, &Span{SpanID: "s1", TraceID: "t1", Type: SpanTool, Operation: "search"}))
	require.NoError(t, store.Write(ctx, &Span{SpanID: "s2", TraceID: "t2", Type: SpanModel, Operation: "chat"}))

	spans, err := store.Query(ctx, Query{TraceID: "t1"})
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, "s1", spans[0].SpanID)
}
