package ai

import (
	"context"
	"fmt"
	"log/slog"
)

// Checker confirms the configured models answer minimal synchronous
// requests before any money is spent on a batch.
type Checker struct {
	embedder  Embedder
	completer Completer
	logger    *slog.Logger
}

// NewChecker creates a checker over the given services.
func NewChecker(embedder Embedder, completer Completer) *Checker {
	return &Checker{
		embedder:  embedder,
		completer: completer,
		logger:    slog.Default().With("component", "access-check"),
	}
}

// CheckResult reports what each probe observed.
type CheckResult struct {
	EmbeddingDimensions int
	CompletionPreview   string
}

const checkPrompt = "Reply with the single word OK."

// Run probes both services with a trivial request.
func (c *Checker) Run(ctx context.Context) (*CheckResult, error) {
	vector, err := c.embedder.EmbedText(ctx, "access check")
	if err != nil {
		return nil, fmt.Errorf("embedding check failed: %w", err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("embedding check returned an empty vector")
	}

	response, err := c.completer.Complete(ctx, checkPrompt)
	if err != nil {
		return nil, fmt.Errorf("completion check failed: %w", err)
	}
	if response == "" {
		return nil, fmt.Errorf("completion check returned an empty response")
	}

	preview := response
	if len(preview) > 60 {
		preview = preview[:60]
	}
	c.logger.Info("access check passed", "dimensions", len(vector), "response", preview)
	return &CheckResult{
		EmbeddingDimensions: len(vector),
		CompletionPreview:   preview,
	}, nil
}
