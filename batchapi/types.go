package batchapi

import "time"

// Endpoint is the vendor endpoint a batch executes its requests against.
type Endpoint string

const (
	// EndpointChatCompletions runs chat-completion requests (summaries).
	EndpointChatCompletions Endpoint = "/v1/chat/completions"
	// EndpointEmbeddings runs embedding requests.
	EndpointEmbeddings Endpoint = "/v1/embeddings"
)

// Vendor batch status strings, reported verbatim by GetBatch.
const (
	StatusValidating = "validating"
	StatusInProgress = "in_progress"
	StatusFinalizing = "finalizing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusExpired    = "expired"
	StatusCancelling = "cancelling"
	StatusCancelled  = "cancelled"
)

// RequestCounts are the vendor's per-request tallies for a batch.
type RequestCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Batch is the vendor's view of one batch job.
type Batch struct {
	ID            string        `json:"id"`
	Status        string        `json:"status"`
	Endpoint      Endpoint      `json:"endpoint"`
	InputFileID   string        `json:"input_file_id"`
	OutputFileID  string        `json:"output_file_id"`
	ErrorFileID   string        `json:"error_file_id"`
	RequestCounts RequestCounts `json:"request_counts"`
	CreatedAt     time.Time     `json:"-"`
}
