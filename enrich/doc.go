// Package enrich implements the batch enrichment pipeline: building
// JSONL request artifacts from documents that lack a summary or
// embedding, submitting them to the vendor's asynchronous batch API,
// polling the resulting jobs to a terminal state, and merging completed
// results back into document storage.
//
// The four stages are independent components sharing a persistent job
// store; each can be run on its own or sequenced by Pipeline. All
// vendor interaction goes through the injected batchapi.Client.
package enrich
