package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/enrichit/core"
)

func TestDocumentSerialization(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	doc := &core.Document{
		Id:             core.IDFromContent("serialization test"),
		Title:          "A title",
		Contents:       "Document body with some length to it.",
		PublishedAt:    now.Add(-24 * time.Hour),
		InsertedAt:     now,
		UpdatedAt:      now,
		Summary:        "A short summary.",
		SummaryModel:   "gpt-4o-mini",
		SummarizedAt:   now,
		Vector:         []float32{0.25, -0.5, 1.0},
		EmbeddingModel: "text-embedding-3-small",
		EmbeddedAt:     now,
	}

	decoded, err := UnmarshalDocument(MarshalDocument(doc))
	require.NoError(t, err)
	assert.Equal(t, doc.Id, decoded.Id)
	assert.Equal(t, doc.Title, decoded.Title)
	assert.Equal(t, doc.Contents, decoded.Contents)
	assert.True(t, doc.PublishedAt.Equal(decoded.PublishedAt))
	assert.True(t, doc.InsertedAt.Equal(decoded.InsertedAt))
	assert.Equal(t, doc.Summary, decoded.Summary)
	assert.Equal(t, doc.SummaryModel, decoded.SummaryModel)
	assert.Equal(t, doc.Vector, decoded.Vector)
	assert.Equal(t, doc.EmbeddingModel, decoded.EmbeddingModel)
}

func TestDocumentSerialization_ZeroEnrichments(t *testing.T) {
	doc := &core.Document{
		Id:         42,
		Contents:   "bare document",
		InsertedAt: time.Now().UTC(),
	}

	decoded, err := UnmarshalDocument(MarshalDocument(doc))
	require.NoError(t, err)
	assert.Empty(t, decoded.Summary)
	assert.Empty(t, decoded.Vector)
	assert.True(t, decoded.SummarizedAt.IsZero(), "zero timestamp should survive the round trip")
	assert.True(t, decoded.EmbeddedAt.IsZero())
}

func TestBatchJobSerialization(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	job := &core.BatchJob{
		Id:                 "job-123",
		Kind:               core.KindEmbedding,
		Model:              "text-embedding-3-small",
		State:              core.StateCompleted,
		ArtifactPath:       "artifacts/embedding-001.jsonl",
		VendorBatchID:      "batch_abc",
		VendorInputFileID:  "file_in",
		VendorOutputFileID: "file_out",
		VendorErrorFileID:  "file_err",
		RequestCount:       100,
		CompletedCount:     98,
		FailedCount:        2,
		CreatedAt:          now.Add(-2 * time.Hour),
		SubmittedAt:        now.Add(-time.Hour),
		CompletedAt:        now,
	}

	decoded, err := UnmarshalBatchJob(MarshalBatchJob(job))
	require.NoError(t, err)
	assert.Equal(t, job.Id, decoded.Id)
	assert.Equal(t, job.Kind, decoded.Kind)
	assert.Equal(t, job.State, decoded.State)
	assert.Equal(t, job.ArtifactPath, decoded.ArtifactPath)
	assert.Equal(t, job.VendorBatchID, decoded.VendorBatchID)
	assert.Equal(t, job.RequestCount, decoded.RequestCount)
	assert.Equal(t, job.CompletedCount, decoded.CompletedCount)
	assert.Equal(t, job.FailedCount, decoded.FailedCount)
	assert.True(t, job.SubmittedAt.Equal(decoded.SubmittedAt))
	assert.True(t, decoded.MergedAt.IsZero())
}

func TestUnmarshalDocument_Corrupt(t *testing.T) {
	_, err := UnmarshalDocument([]byte{0xff})
	assert.Error(t, err)
}
