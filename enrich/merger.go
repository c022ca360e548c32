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


package enrich

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/poiesic/enrichit/core"
	"github.com/poiesic/enrichit/storage"
)

// Merger reconciles a COMPLETED job's results into document storage.
// Ok results upsert the enrichment idempotently; vendor-reported
// per-request failures are recorded against the source document and do
// not block the merge. Duplicate or foreign custom IDs are integrity
// errors that abort the merge.
type Merger struct {
	documents storage.DocumentRepository
	jobs      storage.JobRepository
	client    downloader
	config    Config
	logger    *slog.Logger

	// progress receives per-result merge progress, stderr by default.
	progress io.Writer
}

// downloader is the slice of batchapi.Client the merger needs.
type downloader interface {
	DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// MergeStats summarize one merge.
type MergeStats struct {
	Processed int // result records handled, ok and failed alike
	Merged    int // enrichments upserted into documents
	Failed    int // per-document failures recorded
}

// NewMerger creates a merger over the repositories and vendor client.
func NewMerger(documents storage.DocumentRepository, jobs storage.JobRepository, client downloader, config Config) *Merger {
	return &Merger{
		documents: documents,
		jobs:      jobs,
		client:    client,
		config:    config,
		logger:    slog.Default().With("component", "merger"),
		progress:  os.Stderr,
	}
}

// reportEvery keeps progress output to roughly one line per percent.
func reportEvery(total int) int {
	if total < 100 {
		return 1
	}
	return total / 100
}

// MergeJob merges one job's results. force permits re-merging a MERGED
// job; because upserts are idempotent this leaves storage unchanged
// unless the underlying documents were modified in between.
func (m *Merger) MergeJob(ctx context.Context, id string, force bool) (*MergeStats, error) {
	job, err := m.jobs.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	remerge := false
	switch job.State {
	case core.StateCompleted:
	case core.StateMerged:
		if !force {
			return nil, fmt.Errorf("%w: job %s already MERGED (use force to re-merge)", ErrNotMergeable, id)
		}
		remerge = true
	default:
		return nil, fmt.Errorf("%w: job %s is %s", ErrNotMergeable, id, job.State)
	}

	expected, err := m.loadRequestIDs(job)
	if err != nil {
		return nil, err
	}

	stats := &MergeStats{}
	seen := make(map[string]bool, len(expected))

	tracker := NewProgressTracker(m.progress, job.RequestCount, reportEvery(job.RequestCount))
	tracker.Start()

	if job.VendorOutputFileID != "" {
		if err := m.mergeFile(ctx, job, job.VendorOutputFileID, expected, seen, stats, tracker); err != nil {
			return stats, err
		}
	}
	if job.VendorErrorFileID != "" {
		if err := m.mergeFile(ctx, job, job.VendorErrorFileID, expected, seen, stats, tracker); err != nil {
			return stats, err
		}
	}

	if stats.Processed != job.RequestCount {
		return stats, fmt.Errorf("%w: job %s processed %d of %d requests",
			ErrCountMismatch, id, stats.Processed, job.RequestCount)
	}
	tracker.Finish()

	if !remerge {
		if err := m.jobs.MarkMerged(ctx, id, core.MergeCounts{Merged: stats.Merged, Failed: stats.Failed}); err != nil {
			return stats, fmt.Errorf("mark job %s merged: %w", id, err)
		}
	}

	m.logger.Info("merged job", "jobID", id, "merged", stats.Merged, "failed", stats.Failed,
		"remerge", remerge, "elapsed", tracker.Elapsed())
	return stats, nil
}

// MergeCompleted merges every COMPLETED job of the given kind, aborting
// on the first failure.
func (m *Merger) MergeCompleted(ctx context.Context, kind core.Kind) (*MergeStats, error) {
	jobs, err := m.jobs.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	total := &MergeStats{}
	for _, job := range jobs {
		if job.State != core.StateCompleted || job.Kind != kind {
			continue
		}
		stats, err := m.MergeJob(ctx, job.Id, false)
		if stats != nil {
			total.Processed += stats.Processed
			total.Merged += stats.Merged
			total.Failed += stats.Failed
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// loadRequestIDs reads the job's artifact and returns the set of custom
// IDs it requested. The artifact is the job's frozen request manifest.
func (m *Merger) loadRequestIDs(job *core.BatchJob) (map[string]bool, error) {
	file, err := os.Open(job.ArtifactPath)
	if err != nil {
		return nil, fmt.Errorf("open artifact %s: %w", job.ArtifactPath, err)
	}
	defer file.Close()

	expected := make(map[string]bool, job.RequestCount)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var request struct {
			CustomID string `json:"custom_id"`
		}
		if err := json.Unmarshal(line, &request); err != nil {
			return nil, fmt.Errorf("malformed artifact line in %s: %w", job.ArtifactPath, err)
		}
		expected[request.CustomID] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", job.ArtifactPath, err)
	}
	return expected, nil
}

// mergeFile downloads one result artifact and applies every line.
func (m *Merger) mergeFile(ctx context.Context, job *core.BatchJob, fileID string, expected, seen map[string]bool, stats *MergeStats, tracker *ProgressTracker) error {
	reader, err := m.client.DownloadFile(ctx, fileID)
	if err != nil {
		return fmt.Errorf("download results %s: %w", fileID, err)
	}
	defer reader.Close()

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		result, err := parseResultLine(line)
		if err != nil {
			return fmt.Errorf("job %s file %s: %w", job.Id, fileID, err)
		}
		if err := m.applyResult(ctx, job, result, expected, seen, stats); err != nil {
			return err
		}
		tracker.Increment(1)
	}
	return scanner.Err()
}

// applyResult handles one result record against the job's request set.
func (m *Merger) applyResult(ctx context.Context, job *core.BatchJob, result *ResultLine, expected, seen map[string]bool, stats *MergeStats) error {
	if !expected[result.CustomID] {
		return fmt.Errorf("%w: job %s, custom ID %q", ErrUnknownCustomID, job.Id, result.CustomID)
	}
	if seen[result.CustomID] {
		return fmt.Errorf("%w: job %s, custom ID %q", ErrDuplicateResult, job.Id, result.CustomID)
	}
	seen[result.CustomID] = true
	stats.Processed++

	docID, kind, err := core.ParseCustomID(result.CustomID)
	if err != nil {
		return fmt.Errorf("job %s: %w", job.Id, err)
	}
	if kind != job.Kind {
		return fmt.Errorf("%w: job %s (%s), custom ID %q", ErrUnknownCustomID, job.Id, job.Kind, result.CustomID)
	}

	if result.Error != nil || result.Response == nil || result.Response.StatusCode != http.StatusOK {
		detail := "vendor returned no response"
		if result.Error != nil {
			detail = result.Error.Detail()
		} else if result.Response != nil {
			detail = fmt.Sprintf("vendor returned status %d", result.Response.StatusCode)
		}
		if err := m.documents.MarkEnrichmentFailed(ctx, docID, kind, detail); err != nil {
			return fmt.Errorf("record failure for document %d: %w", docID, err)
		}
		stats.Failed++
		return nil
	}

	enrichment := &core.Enrichment{
		DocumentID: docID,
		Kind:       kind,
		Model:      job.Model,
	}
	switch kind {
	case core.KindSummary:
		summary, err := summaryFromResult(result.Response.Body)
		if err != nil {
			return fmt.Errorf("job %s, custom ID %q: %w", job.Id, result.CustomID, err)
		}
		enrichment.Summary = summary
	case core.KindEmbedding:
		vector, err := embeddingFromResult(result.Response.Body)
		if err != nil {
			return fmt.Errorf("job %s, custom ID %q: %w", job.Id, result.CustomID, err)
		}
		enrichment.Vector = vector
	}

	if _, err := m.documents.ApplyEnrichment(ctx, enrichment); err != nil {
		return fmt.Errorf("apply enrichment to document %d: %w", docID, err)
	}
	stats.Merged++
	return nil
}
