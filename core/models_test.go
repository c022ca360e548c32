package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromContent_Deterministic(t *testing.T) {
	a := IDFromContent("the same document text")
	b := IDFromContent("the same document text")
	c := IDFromContent("a different document text")

	assert.Equal(t, a, b, "same content should yield the same ID")
	assert.NotEqual(t, a, c, "different content should yield a different ID")
	assert.NotZero(t, a)
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		input string
		want  Kind
		ok    bool
	}{
		{"summary", KindSummary, true},
		{"summaries", KindSummary, true},
		{"embedding", KindEmbedding, true},
		{"embeddings", KindEmbedding, true},
		{"  Summary ", KindSummary, true},
		{"vector", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		kind, err := ParseKind(tt.input)
		if tt.ok {
			require.NoError(t, err, "input %q", tt.input)
			assert.Equal(t, tt.want, kind)
		} else {
			assert.ErrorIs(t, err, ErrInvalidKind, "input %q", tt.input)
		}
	}
}

func TestJobState_CanTransition(t *testing.T) {
	allowed := []struct{ from, to JobState }{
		{StateBuilt, StateSubmitted},
		{StateSubmitted, StateInProgress},
		{StateSubmitted, StateCompleted},
		{StateSubmitted, StateFailed},
		{StateSubmitted, StateExpired},
		{StateSubmitted, StateCancelled},
		{StateInProgress, StateCompleted},
		{StateInProgress, StateFailed},
		{StateInProgress, StateExpired},
		{StateInProgress, StateCancelled},
		{StateCompleted, StateMerged},
	}
	for _, tt := range allowed {
		assert.True(t, tt.from.CanTransition(tt.to), "%s -> %s should be allowed", tt.from, tt.to)
	}

	denied := []struct{ from, to JobState }{
		{StateBuilt, StateMerged},
		{StateBuilt, StateInProgress},
		{StateBuilt, StateCompleted},
		{StateBuilt, StateCancelled},
		{StateSubmitted, StateBuilt},
		{StateInProgress, StateSubmitted},
		{StateCompleted, StateFailed},
		{StateCompleted, StateInProgress},
		{StateMerged, StateCompleted},
		{StateFailed, StateSubmitted},
		{StateExpired, StateCompleted},
		{StateCancelled, StateInProgress},
	}
	for _, tt := range denied {
		assert.False(t, tt.from.CanTransition(tt.to), "%s -> %s should be denied", tt.from, tt.to)
	}
}

func TestJobState_Terminal(t *testing.T) {
	for _, s := range []JobState{StateMerged, StateFailed, StateExpired, StateCancelled} {
		assert.True(t, s.Terminal(), "%s should be terminal", s)
	}
	for _, s := range []JobState{StateBuilt, StateSubmitted, StateInProgress, StateCompleted} {
		assert.False(t, s.Terminal(), "%s should not be terminal", s)
	}
}

func TestCustomID_RoundTrip(t *testing.T) {
	id := IDFromContent("round trip document")

	customID := CustomID(id, KindEmbedding)
	gotID, gotKind, err := ParseCustomID(customID)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, KindEmbedding, gotKind)

	// Same inputs always yield the same key.
	assert.Equal(t, customID, CustomID(id, KindEmbedding))
}

func TestParseCustomID_Invalid(t *testing.T) {
	for _, input := range []string{
		"",
		"doc:123",
		"doc:123:summary:extra",
		"row:123:summary",
		"doc:notanumber:summary",
		"doc:123:unknown",
	} {
		_, _, err := ParseCustomID(input)
		assert.ErrorIs(t, err, ErrInvalidCustomID, "input %q", input)
	}
}

func TestDocument_Enriched(t *testing.T) {
	doc := &Document{
		Summary:      "a summary",
		SummaryModel: "gpt-4o-mini",
		Vector:       []float32{0.1, 0.2},
	}

	assert.True(t, doc.Enriched(KindSummary, "gpt-4o-mini"))
	assert.False(t, doc.Enriched(KindSummary, "gpt-4o"), "other model should count as unenriched")
	assert.False(t, doc.Enriched(KindEmbedding, "text-embedding-3-small"), "vector from unknown model")

	doc.EmbeddingModel = "text-embedding-3-small"
	assert.True(t, doc.Enriched(KindEmbedding, "text-embedding-3-small"))

	empty := &Document{}
	assert.False(t, empty.Enriched(KindSummary, "gpt-4o-mini"))
	assert.False(t, empty.Enriched(KindEmbedding, "text-embedding-3-small"))
}
