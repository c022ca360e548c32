package mock

import (
	"context"
	"hash/fnv"
)

// Embedder is a test double for ai.Embedder.
// It allows custom behavior injection via EmbedTextFunc; without it,
// it returns a deterministic vector derived from the input text.
type Embedder struct {
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	// Dimensions of the default vectors. Defaults to 8.
	Dimensions int
}

// EmbedText generates a vector embedding for a single text string.
func (m *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}

	dim := m.Dimensions
	if dim <= 0 {
		dim = 8
	}

	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := range vector {
		seed = seed*1664525 + 1013904223
		vector[i] = float32(seed%1000) / 1000.0
	}
	return vector, nil
}

// Completer is a test double for ai.Completer.
type Completer struct {
	CompleteFunc func(ctx context.Context, prompt string) (string, error)
}

// Complete returns the model's response to a single prompt.
func (m *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}
	return "OK", nil
}
