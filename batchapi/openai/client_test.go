package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/enrichit/batchapi"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) batchapi.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"})
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, batchapi.ErrAPIKeyRequired)
}

func TestClient_UploadFile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/files", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "batch", r.FormValue("purpose"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "requests.jsonl", header.Filename)

		contents, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Contains(t, string(contents), "custom_id")

		json.NewEncoder(w).Encode(map[string]string{"id": "file-abc"})
	})

	fileID, err := client.UploadFile(context.Background(), "requests.jsonl",
		strings.NewReader(`{"custom_id":"doc:1:summary"}`+"\n"))
	require.NoError(t, err)
	assert.Equal(t, "file-abc", fileID)
}

func TestClient_CreateBatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/batches", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "file-abc", payload["input_file_id"])
		assert.Equal(t, "/v1/embeddings", payload["endpoint"])
		assert.Equal(t, "24h", payload["completion_window"])

		json.NewEncoder(w).Encode(map[string]any{
			"id":            "batch-1",
			"status":        "validating",
			"endpoint":      "/v1/embeddings",
			"input_file_id": "file-abc",
		})
	})

	batch, err := client.CreateBatch(context.Background(), "file-abc", batchapi.EndpointEmbeddings)
	require.NoError(t, err)
	assert.Equal(t, "batch-1", batch.ID)
	assert.Equal(t, batchapi.StatusValidating, batch.Status)
	assert.Equal(t, "file-abc", batch.InputFileID)
}

func TestClient_GetBatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/batches/batch-1", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]any{
			"id":             "batch-1",
			"status":         "completed",
			"output_file_id": "file-out",
			"error_file_id":  "file-err",
			"request_counts": map[string]int{"total": 10, "completed": 9, "failed": 1},
		})
	})

	batch, err := client.GetBatch(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, batchapi.StatusCompleted, batch.Status)
	assert.Equal(t, "file-out", batch.OutputFileID)
	assert.Equal(t, "file-err", batch.ErrorFileID)
	assert.Equal(t, 10, batch.RequestCounts.Total)
	assert.Equal(t, 9, batch.RequestCounts.Completed)
	assert.Equal(t, 1, batch.RequestCounts.Failed)
}

func TestClient_CancelBatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/batches/batch-1/cancel", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]any{"id": "batch-1", "status": "cancelling"})
	})

	batch, err := client.CancelBatch(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, batchapi.StatusCancelling, batch.Status)
}

func TestClient_DownloadFile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/file-out/content", r.URL.Path)
		io.WriteString(w, `{"custom_id":"doc:1:summary"}`+"\n")
	})

	reader, err := client.DownloadFile(context.Background(), "file-out")
	require.NoError(t, err)
	defer reader.Close()

	contents, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "doc:1:summary")
}

func TestClient_DownloadFileOutlivesTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"custom_id":"doc:1:summary"}`+"\n")
		w.(http.Flusher).Flush()
		time.Sleep(150 * time.Millisecond)
		io.WriteString(w, `{"custom_id":"doc:2:summary"}`+"\n")
	}))
	t.Cleanup(server.Close)

	// The API timeout is far shorter than the download takes.
	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "test-key", Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	reader, err := client.DownloadFile(context.Background(), "file-out")
	require.NoError(t, err)
	defer reader.Close()

	contents, err := io.ReadAll(reader)
	require.NoError(t, err, "a result download must not be cut off by the API timeout")
	assert.Contains(t, string(contents), "doc:2:summary")
}

func TestClient_DecodesErrorEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"rate limit exceeded","type":"requests","code":"rate_limit_exceeded"}}`)
	})

	_, err := client.GetBatch(context.Background(), "batch-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limit exceeded")
}
