package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/enrichit/ai/mock"
)

func TestChecker_Run(t *testing.T) {
	checker := NewChecker(&mock.Embedder{Dimensions: 16}, &mock.Completer{})

	result, err := checker.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 16, result.EmbeddingDimensions)
	assert.Equal(t, "OK", result.CompletionPreview)
}

func TestChecker_EmbedderFailure(t *testing.T) {
	embedder := &mock.Embedder{
		EmbedTextFunc: func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("connection refused")
		},
	}
	checker := NewChecker(embedder, &mock.Completer{})

	_, err := checker.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding check failed")
}

func TestChecker_CompleterFailure(t *testing.T) {
	completer := &mock.Completer{
		CompleteFunc: func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("model not found")
		},
	}
	checker := NewChecker(&mock.Embedder{}, completer)

	_, err := checker.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "completion check failed")
}
