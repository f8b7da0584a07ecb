package runnable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransform_RunAppliesFunction(t *testing.T) {
	tr := NewTransform(func(ctx context.Context, input any) (any, error) {
		return input.(string) + "!", nil
	})

	out, err := tr.Run(context.Background(), "hi", nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "hi!", out)
}

func TestTransform_StreamEmitsSingleDoneChunk(t *testing.T) {
	tr := NewTransform(func(ctx context.Context, input any) (any, error) {
		return 42, nil
	})

	var chunks []StreamChunk
	err := tr.Stream(context.Background(), func(c StreamChunk) { chunks = append(chunks, c) }, nil, nil, Options{})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].Done)
	assert.Equal(t, 42, chunks[0].Raw)
}

func TestNewExpressionTransform_EvaluatesAgainstMapInput(t *testing.T) {
	tr, err := NewExpressionTransform("score > 0.5 && label == 'good'")
	require.NoError(t, err)

	out, err := tr.Run(context.Background(), map[string]any{"score": 0.8, "label": "good"}, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = tr.Run(context.Background(), map[string]any{"score": 0.2, "label": "good"}, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, false, out)
}

func TestNewExpressionTransform_NonMapInputExposedAsInput(t *testing.T) {
	tr, err := NewExpressionTransform("input + 1")
	require.NoError(t, err)

	out, err := tr.Run(context.Background(), 41.0, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 42.0, out)
}

func TestNewExpressionTransform_InvalidExpression(t *testing.T) {
	_, err := NewExpressionTransform("((")
	assert.Error(t, err)
}
