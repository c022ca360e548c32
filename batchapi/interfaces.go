package batchapi

import (
	"context"
	"io"
)

// Client is the vendor batch API surface the pipeline depends on.
// Implementations must be thread-safe for concurrent use.
type Client interface {
	// UploadFile uploads a request artifact to the vendor's file store and
	// returns the vendor-assigned file ID.
	UploadFile(ctx context.Context, name string, contents io.Reader) (string, error)

	// CreateBatch creates a batch job over a previously uploaded input
	// file, targeting the given endpoint.
	CreateBatch(ctx context.Context, inputFileID string, endpoint Endpoint) (*Batch, error)

	// GetBatch retrieves the current state of a batch job.
	GetBatch(ctx context.Context, batchID string) (*Batch, error)

	// CancelBatch asks the vendor to cancel a running batch job and
	// returns its state after the request.
	CancelBatch(ctx context.Context, batchID string) (*Batch, error)

	// DownloadFile streams the contents of a vendor file (line-delimited
	// JSON for batch outputs). The caller must close the reader.
	DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error)
}
