package enrich

import (
	"encoding/json"
	"fmt"

	"github.com/poiesic/enrichit/batchapi"
	"github.com/poiesic/enrichit/core"
)

// RequestLine is one JSONL line of a request artifact, in the vendor's
// batch input format.
type RequestLine struct {
	CustomID string          `json:"custom_id"`
	Method   string          `json:"method"`
	URL      string          `json:"url"`
	Body     json.RawMessage `json:"body"`
}

// ResultLine is one JSONL line of a batch output or error artifact.
// Exactly one of Response and Error is set.
type ResultLine struct {
	CustomID string          `json:"custom_id"`
	Response *ResultResponse `json:"response"`
	Error    *ResultError    `json:"error"`
}

// ResultResponse carries the vendor's per-request HTTP outcome.
type ResultResponse struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
}

// ResultError is the vendor's per-request failure detail.
type ResultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Detail renders the failure for storage against the source document.
func (e *ResultError) Detail() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// endpointFor maps an enrichment kind to the vendor endpoint its
// requests run against.
func endpointFor(kind core.Kind) batchapi.Endpoint {
	if kind == core.KindSummary {
		return batchapi.EndpointChatCompletions
	}
	return batchapi.EndpointEmbeddings
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatBody struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type embeddingBody struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// newRequestLine builds the artifact line for one document. The custom
// ID is deterministic, so rebuilding the same selection yields
// byte-identical correlation keys.
func newRequestLine(doc *core.Document, kind core.Kind, config *Config) (RequestLine, error) {
	var (
		body any
		err  error
	)
	switch kind {
	case core.KindSummary:
		body = chatBody{
			Model: config.SummaryModel,
			Messages: []chatMessage{
				{Role: "system", Content: config.SummaryPrompt},
				{Role: "user", Content: doc.Contents},
			},
			MaxTokens: config.SummaryMaxTokens,
		}
	case core.KindEmbedding:
		body = embeddingBody{
			Model: config.EmbeddingModel,
			Input: doc.Contents,
		}
	default:
		return RequestLine{}, fmt.Errorf("%w: %d", core.ErrInvalidKind, int(kind))
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return RequestLine{}, err
	}
	return RequestLine{
		CustomID: core.CustomID(doc.Id, kind),
		Method:   "POST",
		URL:      string(endpointFor(kind)),
		Body:     encoded,
	}, nil
}

// parseResultLine decodes one output/error artifact line.
func parseResultLine(line []byte) (*ResultLine, error) {
	var result ResultLine
	if err := json.Unmarshal(line, &result); err != nil {
		return nil, fmt.Errorf("malformed result line: %w", err)
	}
	if result.CustomID == "" {
		return nil, fmt.Errorf("malformed result line: missing custom_id")
	}
	return &result, nil
}

// summaryFromResult extracts the generated summary from a chat
// completion response body.
func summaryFromResult(body json.RawMessage) (string, error) {
	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("decode summary response: %w", err)
	}
	if len(response.Choices) == 0 || response.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("summary response has no content")
	}
	return response.Choices[0].Message.Content, nil
}

// embeddingFromResult extracts the vector from an embeddings response body.
func embeddingFromResult(body json.RawMessage) ([]float32, error) {
	var response struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(response.Data) == 0 || len(response.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding response has no vector")
	}
	return response.Data[0].Embedding, nil
}
