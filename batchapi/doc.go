// Package batchapi models the vendor's asynchronous batch API as an
// injected capability: upload a request artifact, create a batch job
// over it, poll the job, download result artifacts, cancel.
//
// The pipeline depends only on the Client interface so the vendor can be
// substituted with a fake in tests. The openai subpackage implements the
// interface against the OpenAI Files and Batches endpoints; the mock
// subpackage provides a scriptable in-memory double.
package batchapi
