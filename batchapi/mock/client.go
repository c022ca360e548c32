package mock

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"strings"
	"sync"

	"github.com/poiesic/enrichit/batchapi"
)

// Client is a test double for batchapi.Client.
// It allows custom behavior injection via function fields; without them
// it behaves as a deterministic in-memory vendor: uploaded artifacts are
// retained, created batches walk through StatusScript on successive
// GetBatch calls and then complete, producing an output artifact with
// one ok result per request (and an error artifact for requests listed
// in FailRequests).
type Client struct {
	// UploadFileFunc is called by UploadFile if set.
	UploadFileFunc func(ctx context.Context, name string, contents io.Reader) (string, error)

	// CreateBatchFunc is called by CreateBatch if set.
	CreateBatchFunc func(ctx context.Context, inputFileID string, endpoint batchapi.Endpoint) (*batchapi.Batch, error)

	// GetBatchFunc is called by GetBatch if set.
	GetBatchFunc func(ctx context.Context, batchID string) (*batchapi.Batch, error)

	// CancelBatchFunc is called by CancelBatch if set.
	CancelBatchFunc func(ctx context.Context, batchID string) (*batchapi.Batch, error)

	// DownloadFileFunc is called by DownloadFile if set.
	DownloadFileFunc func(ctx context.Context, fileID string) (io.ReadCloser, error)

	// StatusScript are the statuses GetBatch reports on successive calls
	// before the batch finalizes. Empty means finalize on the first call.
	StatusScript []string

	// FinalStatus is the status a batch finalizes with. Defaults to
	// "completed".
	FinalStatus string

	// FailRequests maps custom_id to an error message; those requests are
	// written to the error artifact instead of the output artifact.
	FailRequests map[string]string

	mu       sync.Mutex
	files    map[string][]byte
	batches  map[string]*batchState
	fileSeq  int
	batchSeq int
}

type batchState struct {
	batch     batchapi.Batch
	scriptPos int
	finalized bool
}

var _ batchapi.Client = (*Client)(nil)

// NewClient creates a mock vendor client with default behavior.
func NewClient() *Client {
	return &Client{
		files:   make(map[string][]byte),
		batches: make(map[string]*batchState),
	}
}

// UploadFile retains the artifact in memory and returns a file ID.
func (c *Client) UploadFile(ctx context.Context, name string, contents io.Reader) (string, error) {
	if c.UploadFileFunc != nil {
		return c.UploadFileFunc(ctx, name, contents)
	}

	data, err := io.ReadAll(contents)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fileSeq++
	fileID := fmt.Sprintf("file-mock-%d", c.fileSeq)
	c.files[fileID] = data
	return fileID, nil
}

// CreateBatch registers a new batch in "validating" status.
func (c *Client) CreateBatch(ctx context.Context, inputFileID string, endpoint batchapi.Endpoint) (*batchapi.Batch, error) {
	if c.CreateBatchFunc != nil {
		return c.CreateBatchFunc(ctx, inputFileID, endpoint)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.files[inputFileID]; !ok {
		return nil, batchapi.ErrFileNotFound
	}

	c.batchSeq++
	state := &batchState{
		batch: batchapi.Batch{
			ID:          fmt.Sprintf("batch-mock-%d", c.batchSeq),
			Status:      batchapi.StatusValidating,
			Endpoint:    endpoint,
			InputFileID: inputFileID,
		},
	}
	c.batches[state.batch.ID] = state

	snapshot := state.batch
	return &snapshot, nil
}

// GetBatch advances the batch through StatusScript and finalizes it.
func (c *Client) GetBatch(ctx context.Context, batchID string) (*batchapi.Batch, error) {
	if c.GetBatchFunc != nil {
		return c.GetBatchFunc(ctx, batchID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.batches[batchID]
	if !ok {
		return nil, batchapi.ErrBatchNotFound
	}

	if !state.finalized {
		if state.scriptPos < len(c.StatusScript) {
			state.batch.Status = c.StatusScript[state.scriptPos]
			state.scriptPos++
		} else {
			c.finalize(state)
		}
	}

	snapshot := state.batch
	return &snapshot, nil
}

// CancelBatch marks the batch cancelled.
func (c *Client) CancelBatch(ctx context.Context, batchID string) (*batchapi.Batch, error) {
	if c.CancelBatchFunc != nil {
		return c.CancelBatchFunc(ctx, batchID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.batches[batchID]
	if !ok {
		return nil, batchapi.ErrBatchNotFound
	}
	state.batch.Status = batchapi.StatusCancelled
	state.finalized = true

	snapshot := state.batch
	return &snapshot, nil
}

// DownloadFile returns a retained artifact.
func (c *Client) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	if c.DownloadFileFunc != nil {
		return c.DownloadFileFunc(ctx, fileID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.files[fileID]
	if !ok {
		return nil, batchapi.ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// FileContents returns a retained artifact's bytes for test assertions.
func (c *Client) FileContents(fileID string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.files[fileID]
	return data, ok
}

// finalize transitions the batch to its final status and, when that is
// "completed", synthesizes output and error artifacts from the uploaded
// requests. Must be called with the lock held.
func (c *Client) finalize(state *batchState) {
	state.finalized = true

	final := c.FinalStatus
	if final == "" {
		final = batchapi.StatusCompleted
	}
	state.batch.Status = final
	if final != batchapi.StatusCompleted {
		return
	}

	input := c.files[state.batch.InputFileID]
	var output, errOutput bytes.Buffer
	completed, failed := 0, 0

	scanner := bufio.NewScanner(bytes.NewReader(input))
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var req struct {
			CustomID string `json:"custom_id"`
			URL      string `json:"url"`
		}
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}

		if msg, fail := c.FailRequests[req.CustomID]; fail {
			failed++
			fmt.Fprintf(&errOutput, `{"custom_id":%q,"response":null,"error":{"code":"mock_error","message":%q}}`+"\n", req.CustomID, msg)
			continue
		}

		completed++
		body := resultBody(req.CustomID, req.URL)
		fmt.Fprintf(&output, `{"custom_id":%q,"response":{"status_code":200,"body":%s},"error":null}`+"\n", req.CustomID, body)
	}

	state.batch.RequestCounts = batchapi.RequestCounts{
		Total:     completed + failed,
		Completed: completed,
		Failed:    failed,
	}

	c.fileSeq++
	outID := fmt.Sprintf("file-mock-%d", c.fileSeq)
	c.files[outID] = output.Bytes()
	state.batch.OutputFileID = outID

	if failed > 0 {
		c.fileSeq++
		errID := fmt.Sprintf("file-mock-%d", c.fileSeq)
		c.files[errID] = errOutput.Bytes()
		state.batch.ErrorFileID = errID
	}
}

// resultBody builds a deterministic response body for a request.
func resultBody(customID, url string) string {
	if strings.Contains(url, "embeddings") {
		vec := deterministicVector(customID, 8)
		parts := make([]string, len(vec))
		for i, v := range vec {
			parts[i] = fmt.Sprintf("%.4f", v)
		}
		return fmt.Sprintf(`{"data":[{"embedding":[%s]}]}`, strings.Join(parts, ","))
	}
	return fmt.Sprintf(`{"choices":[{"message":{"content":"Mock summary for %s."}}]}`, customID)
}

// deterministicVector derives a stable pseudo-random vector from a key.
func deterministicVector(key string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	seed := h.Sum32()

	vec := make([]float32, dim)
	for i := range vec {
		seed = seed*1664525 + 1013904223 // LCG constants
		vec[i] = float32(seed%1000) / 1000.0
	}
	return vec
}
