package batchapi

import "errors"

var (
	// ErrAPIKeyRequired indicates the client was configured without credentials.
	ErrAPIKeyRequired = errors.New("batchapi: API key is required")

	// ErrFileNotFound indicates the vendor does not know the requested file.
	ErrFileNotFound = errors.New("batchapi: file not found")

	// ErrBatchNotFound indicates the vendor does not know the requested batch.
	ErrBatchNotFound = errors.New("batchapi: batch not found")
)
