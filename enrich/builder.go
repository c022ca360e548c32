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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/enrichit/core"
	"github.com/poiesic/enrichit/storage"
)

// Builder selects documents lacking the target enrichment, writes JSONL
// request artifacts under both size caps, and registers one BUILT job
// per artifact. It never mutates documents.
type Builder struct {
	documents storage.DocumentRepository
	jobs      storage.JobRepository
	config    Config
	logger    *slog.Logger
}

// NewBuilder creates a builder over the given repositories.
func NewBuilder(documents storage.DocumentRepository, jobs storage.JobRepository, config Config) *Builder {
	return &Builder{
		documents: documents,
		jobs:      jobs,
		config:    config,
		logger:    slog.Default().With("component", "builder"),
	}
}

// BuildResult summarizes one build run.
type BuildResult struct {
	Jobs             []*core.BatchJob
	Eligible         int // documents that produced a request
	Skipped          int // empty, too-short or oversized documents
	EstimatedTokens  int
	ProjectedCostUSD float64
}

// Run builds artifacts for every eligible document of the given kind.
// A run with nothing to do returns an empty result and no error.
func (b *Builder) Run(ctx context.Context, kind core.Kind) (*BuildResult, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %d", core.ErrInvalidKind, int(kind))
	}
	model := b.config.ModelFor(kind)

	docs, err := b.documents.ListNeedingEnrichment(ctx, kind, model, b.config.RowLimit)
	if err != nil {
		return nil, fmt.Errorf("list documents needing %s: %w", kind, err)
	}

	result := &BuildResult{}
	var lines [][]byte
	for _, doc := range docs {
		contents := strings.TrimSpace(doc.Contents)
		if len(contents) < b.config.MinDocumentChars {
			result.Skipped++
			continue
		}

		request, err := newRequestLine(doc, kind, &b.config)
		if err != nil {
			return nil, fmt.Errorf("build request for document %d: %w", doc.Id, err)
		}
		encoded, err := json.Marshal(request)
		if err != nil {
			return nil, err
		}
		if len(encoded)+1 > b.config.MaxRequestBytes {
			b.logger.Warn("skipping oversized document", "documentID", doc.Id, "requestBytes", len(encoded))
			result.Skipped++
			continue
		}

		lines = append(lines, encoded)
		result.Eligible++
		result.EstimatedTokens += estimateTokens(doc.Contents)
	}

	result.ProjectedCostUSD = projectedCostUSD(kind, model, result.EstimatedTokens, result.Eligible, b.config.SummaryMaxTokens)
	if b.config.BudgetUSD > 0 && result.ProjectedCostUSD > b.config.BudgetUSD {
		return result, fmt.Errorf("%w: projected $%.4f, budget $%.4f",
			ErrBudgetExceeded, result.ProjectedCostUSD, b.config.BudgetUSD)
	}

	if len(lines) == 0 {
		b.logger.Info("no documents need enrichment", "kind", kind.String(), "skipped", result.Skipped)
		return result, nil
	}

	if err := os.MkdirAll(b.config.ArtifactDir, 0o755); err != nil {
		return result, fmt.Errorf("create artifact dir: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102T150405")
	var (
		buffer bytes.Buffer
		count  int
		seq    int
	)
	flush := func() error {
		if count == 0 {
			return nil
		}
		seq++
		path := filepath.Join(b.config.ArtifactDir, fmt.Sprintf("%s-%s-%03d.jsonl", kind, stamp, seq))
		if err := os.WriteFile(path, buffer.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write artifact %s: %w", path, err)
		}

		job, err := b.jobs.CreateJob(ctx, &core.BatchJob{
			Kind:         kind,
			Model:        model,
			ArtifactPath: path,
			RequestCount: count,
		})
		if err != nil {
			return fmt.Errorf("register job for %s: %w", path, err)
		}

		b.logger.Info("built artifact", "jobID", job.Id, "path", path, "requests", count, "bytes", buffer.Len())
		result.Jobs = append(result.Jobs, job)
		buffer.Reset()
		count = 0
		return nil
	}

	for _, line := range lines {
		if count >= b.config.MaxRequestsPerArtifact ||
			int64(buffer.Len()+len(line)+1) > b.config.MaxArtifactBytes {
			if err := flush(); err != nil {
				return result, err
			}
		}
		buffer.Write(line)
		buffer.WriteByte('\n')
		count++
	}
	if err := flush(); err != nil {
		return result, err
	}

	b.logger.Info("build finished",
		"kind", kind.String(),
		"jobs", len(result.Jobs),
		"eligible", result.Eligible,
		"skipped", result.Skipped,
		"estimatedTokens", result.EstimatedTokens,
		"projectedCostUSD", fmt.Sprintf("%.4f", result.ProjectedCostUSD))
	return result, nil
}
