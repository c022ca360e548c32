// Copyright 2026 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/poiesic/enrichit/batchapi"
)

// Client implements batchapi.Client against the OpenAI Files and Batches
// endpoints.
type Client struct {
	baseURL          string
	apiKey           string
	completionWindow string
	httpClient       *http.Client
	// downloadClient carries no Timeout: http.Client.Timeout covers the
	// whole body read, which would cut off large artifact downloads.
	// Downloads are bounded by the request context instead.
	downloadClient *http.Client
	logger         *slog.Logger
}

var _ batchapi.Client = (*Client)(nil)

// Config holds connection settings for the OpenAI batch API.
type Config struct {
	// BaseURL is the API root. Defaults to https://api.openai.com/v1.
	BaseURL string

	// APIKey authenticates every request. Required.
	APIKey string

	// CompletionWindow is the processing window requested for new batches.
	// Defaults to "24h", the only window the vendor currently offers.
	CompletionWindow string

	// Timeout bounds individual API calls, body read included. Artifact
	// downloads are exempt and bounded by the request context instead.
	// Defaults to 2 minutes.
	Timeout time.Duration
}

// NewClient creates a vendor client from the configuration.
//
// Returns batchapi.Client interface to enforce abstraction.
func NewClient(config Config) (batchapi.Client, error) {
	if config.APIKey == "" {
		return nil, batchapi.ErrAPIKeyRequired
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.CompletionWindow == "" {
		config.CompletionWindow = "24h"
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}

	return &Client{
		baseURL:          strings.TrimSuffix(config.BaseURL, "/"),
		apiKey:           config.APIKey,
		completionWindow: config.CompletionWindow,
		httpClient:       &http.Client{Timeout: config.Timeout},
		downloadClient:   &http.Client{},
		logger:           slog.Default().With("component", "openai-batch"),
	}, nil
}

// fileObject is the vendor's file-upload response.
type fileObject struct {
	ID string `json:"id"`
}

// batchObject is the vendor's batch representation on the wire.
type batchObject struct {
	ID            string                 `json:"id"`
	Status        string                 `json:"status"`
	Endpoint      string                 `json:"endpoint"`
	InputFileID   string                 `json:"input_file_id"`
	OutputFileID  string                 `json:"output_file_id"`
	ErrorFileID   string                 `json:"error_file_id"`
	RequestCounts batchapi.RequestCounts `json:"request_counts"`
	CreatedAt     int64                  `json:"created_at"`
}

func (o *batchObject) toBatch() *batchapi.Batch {
	return &batchapi.Batch{
		ID:            o.ID,
		Status:        o.Status,
		Endpoint:      batchapi.Endpoint(o.Endpoint),
		InputFileID:   o.InputFileID,
		OutputFileID:  o.OutputFileID,
		ErrorFileID:   o.ErrorFileID,
		RequestCounts: o.RequestCounts,
		CreatedAt:     time.Unix(o.CreatedAt, 0).UTC(),
	}
}

// apiError is the vendor's error envelope.
type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// UploadFile uploads a request artifact with purpose=batch.
func (c *Client) UploadFile(ctx context.Context, name string, contents io.Reader) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("purpose", "batch"); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, contents); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var file fileObject
	if err := c.do(req, &file); err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}

	c.logger.Debug("uploaded batch input file", "name", name, "fileID", file.ID)
	return file.ID, nil
}

// CreateBatch creates a batch job over an uploaded input file.
func (c *Client) CreateBatch(ctx context.Context, inputFileID string, endpoint batchapi.Endpoint) (*batchapi.Batch, error) {
	payload := map[string]any{
		"input_file_id":     inputFileID,
		"endpoint":          string(endpoint),
		"completion_window": c.completionWindow,
		"metadata": map[string]string{
			"source": "enrichit",
		},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/batches", bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var batch batchObject
	if err := c.do(req, &batch); err != nil {
		return nil, fmt.Errorf("create batch for file %s: %w", inputFileID, err)
	}

	c.logger.Debug("created batch", "batchID", batch.ID, "status", batch.Status)
	return batch.toBatch(), nil
}

// GetBatch retrieves the current state of a batch job.
func (c *Client) GetBatch(ctx context.Context, batchID string) (*batchapi.Batch, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/batches/"+batchID, nil)
	if err != nil {
		return nil, err
	}

	var batch batchObject
	if err := c.do(req, &batch); err != nil {
		return nil, fmt.Errorf("get batch %s: %w", batchID, err)
	}
	return batch.toBatch(), nil
}

// CancelBatch asks the vendor to cancel a running batch job.
func (c *Client) CancelBatch(ctx context.Context, batchID string) (*batchapi.Batch, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/batches/"+batchID+"/cancel", nil)
	if err != nil {
		return nil, err
	}

	var batch batchObject
	if err := c.do(req, &batch); err != nil {
		return nil, fmt.Errorf("cancel batch %s: %w", batchID, err)
	}
	return batch.toBatch(), nil
}

// DownloadFile streams a vendor file's contents. The caller must close
// the returned reader.
func (c *Client) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files/"+fileID+"/content", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", fileID, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, fmt.Errorf("download file %s: %w", fileID, decodeError(resp))
	}
	return resp.Body, nil
}

// do sends an authenticated request and decodes a JSON response into out.
func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeError turns a non-2xx response into an error, preferring the
// vendor's error envelope over the raw body.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))

	var envelope apiError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return fmt.Errorf("vendor API %d (%s): %s", resp.StatusCode, envelope.Error.Type, envelope.Error.Message)
	}
	return fmt.Errorf("vendor API %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
