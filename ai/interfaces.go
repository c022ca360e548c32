package ai

import "context"

// Embedder generates vector embeddings from text.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Completer answers one-shot prompts with a chat model.
// Implementations must be thread-safe for concurrent use.
type Completer interface {
	// Complete returns the model's response to a single prompt.
	Complete(ctx context.Context, prompt string) (string, error)
}
