package enrich

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/enrichit/batchapi"
	"github.com/poiesic/enrichit/core"
	"github.com/poiesic/enrichit/storage"
)

// Pipeline sequences the four stages for one enrichment kind:
// Build, Submit, Poll to quiescence, then Merge every COMPLETED job.
// Each stage also picks up leftovers from interrupted earlier runs, so
// a crashed run is resumed by running the pipeline again.
type Pipeline struct {
	builder   *Builder
	submitter *Submitter
	poller    *Poller
	merger    *Merger
	logger    *slog.Logger
}

// NewPipeline wires the stages over shared repositories and one vendor client.
func NewPipeline(documents storage.DocumentRepository, jobs storage.JobRepository, client batchapi.Client, config Config) *Pipeline {
	return &Pipeline{
		builder:   NewBuilder(documents, jobs, config),
		submitter: NewSubmitter(jobs, client, config),
		poller:    NewPoller(jobs, client, config),
		merger:    NewMerger(documents, jobs, client, config),
		logger:    slog.Default().With("component", "pipeline"),
	}
}

// RunSummary reports what one full pipeline run did.
type RunSummary struct {
	Build     *BuildResult
	Submitted int
	Merge     *MergeStats
}

// Run drives the full lifecycle for one kind. The first unrecovered
// stage error aborts the run with whatever summary was accumulated.
func (p *Pipeline) Run(ctx context.Context, kind core.Kind) (*RunSummary, error) {
	summary := &RunSummary{}

	build, err := p.builder.Run(ctx, kind)
	summary.Build = build
	if err != nil {
		return summary, fmt.Errorf("build stage: %w", err)
	}

	submitted, err := p.submitter.Run(ctx, kind)
	summary.Submitted = len(submitted)
	if err != nil {
		return summary, fmt.Errorf("submit stage: %w", err)
	}

	if err := p.poller.Run(ctx); err != nil {
		return summary, fmt.Errorf("poll stage: %w", err)
	}

	merge, err := p.merger.MergeCompleted(ctx, kind)
	summary.Merge = merge
	if err != nil {
		return summary, fmt.Errorf("merge stage: %w", err)
	}

	p.logger.Info("pipeline finished",
		"kind", kind.String(),
		"built", len(build.Jobs),
		"submitted", summary.Submitted,
		"merged", merge.Merged,
		"mergeFailed", merge.Failed)
	return summary, nil
}
