package storage

import (
	"context"

	"github.com/poiesic/enrichit/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the repository and releases resources.
	Close() error
}

// DocumentRepository provides operations for the enrichment target store.
type DocumentRepository interface {
	Repository

	// AddDocuments adds one or more documents to storage.
	// For documents with ID=0, derives the ID from content.
	// Sets InsertedAt/UpdatedAt timestamps.
	// Returns the documents with IDs and timestamps populated.
	AddDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error)

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// GetDocuments retrieves multiple documents by their IDs.
	// Returns only the documents that exist (no error for missing ones).
	GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error)

	// ListNeedingEnrichment returns documents lacking the target enrichment
	// for the given kind and model, newest first. A document enriched by a
	// different model is included. limit <= 0 means no cap.
	ListNeedingEnrichment(ctx context.Context, kind core.Kind, model string, limit int) ([]*core.Document, error)

	// ApplyEnrichment upserts an enrichment outcome into its document,
	// keyed by (document id, kind). The write is idempotent: applying the
	// same enrichment twice leaves storage identical. Any recorded failure
	// detail for the kind is cleared. Returns whether the document changed.
	// Returns ErrNotFound if the document doesn't exist.
	ApplyEnrichment(ctx context.Context, e *core.Enrichment) (bool, error)

	// MarkEnrichmentFailed records a vendor-reported per-record failure
	// against the document, without touching any existing enrichment.
	// Returns ErrNotFound if the document doesn't exist.
	MarkEnrichmentFailed(ctx context.Context, id core.ID, kind core.Kind, detail string) error

	// CountDocuments returns the total number of stored documents.
	CountDocuments(ctx context.Context) (int, error)
}

// JobRepository is the job store: the persistent record of every batch
// job and its lifecycle state. Every mutation is a named operation that
// validates the transition against the closed state graph; callers never
// write job fields directly.
type JobRepository interface {
	Repository

	// CreateJob registers a freshly built job. The job enters BUILT with a
	// generated internal ID and CreatedAt set. Kind, Model, ArtifactPath
	// and RequestCount must be populated by the caller.
	CreateJob(ctx context.Context, job *core.BatchJob) (*core.BatchJob, error)

	// RecordSubmission records the vendor-assigned identifiers after the
	// vendor accepted the job, transitioning BUILT -> SUBMITTED and
	// setting SubmittedAt. Returns ErrInvalidTransition from any other state.
	RecordSubmission(ctx context.Context, id, vendorBatchID, vendorInputFileID string) error

	// UpdateStatus applies a vendor-observed (or locally forced) state
	// together with the vendor's request counts. Re-asserting the current
	// state refreshes counts without a transition; anything else must be a
	// valid edge of the state graph. Sets CompletedAt when entering
	// COMPLETED.
	UpdateStatus(ctx context.Context, id string, state core.JobState, counts core.RequestCounts) error

	// RecordOutputFiles records the vendor's output/error file IDs on a
	// COMPLETED job.
	RecordOutputFiles(ctx context.Context, id, outputFileID, errorFileID string) error

	// MarkMerged transitions COMPLETED -> MERGED, recording merge tallies
	// and MergedAt. This is the only operation that may enter MERGED.
	MarkMerged(ctx context.Context, id string, counts core.MergeCounts) error

	// GetJob retrieves a job by internal ID.
	// Returns ErrNotFound if the job doesn't exist.
	GetJob(ctx context.Context, id string) (*core.BatchJob, error)

	// ListJobs returns every stored job, newest first.
	ListJobs(ctx context.Context) ([]*core.BatchJob, error)

	// ListActive returns jobs not yet in a terminal state, newest first.
	ListActive(ctx context.Context) ([]*core.BatchJob, error)
}
