package enrich

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/poiesic/enrichit/batchapi"
	"github.com/poiesic/enrichit/core"
	"github.com/poiesic/enrichit/storage"
)

// Submitter uploads built artifacts and creates one vendor batch per
// artifact. A job only advances to SUBMITTED once the vendor accepted
// it; any earlier failure leaves the job BUILT and wholly retryable.
type Submitter struct {
	jobs   storage.JobRepository
	client batchapi.Client
	config Config
	logger *slog.Logger
}

// NewSubmitter creates a submitter over the job store and vendor client.
func NewSubmitter(jobs storage.JobRepository, client batchapi.Client, config Config) *Submitter {
	return &Submitter{
		jobs:   jobs,
		client: client,
		config: config,
		logger: slog.Default().With("component", "submitter"),
	}
}

// Run submits every BUILT job of the given kind and returns the jobs it
// submitted. The first failed submission aborts the run; already
// submitted jobs keep their progress.
func (s *Submitter) Run(ctx context.Context, kind core.Kind) ([]*core.BatchJob, error) {
	active, err := s.jobs.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}

	var submitted []*core.BatchJob
	for _, job := range active {
		if job.State != core.StateBuilt || job.Kind != kind {
			continue
		}
		if err := s.SubmitJob(ctx, job); err != nil {
			return submitted, err
		}
		submitted = append(submitted, job)
	}
	return submitted, nil
}

// SubmitJob uploads one job's artifact and registers the vendor batch.
func (s *Submitter) SubmitJob(ctx context.Context, job *core.BatchJob) error {
	if job.State != core.StateBuilt {
		return fmt.Errorf("%w: job %s is %s, want BUILT", storage.ErrInvalidTransition, job.Id, job.State)
	}

	file, err := os.Open(job.ArtifactPath)
	if err != nil {
		return fmt.Errorf("open artifact %s: %w", job.ArtifactPath, err)
	}
	defer file.Close()

	var inputFileID string
	err = RetryWithBackoff(ctx, func() error {
		// Rewind so a retried upload sends the whole artifact.
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return err
		}
		id, err := s.client.UploadFile(ctx, filepath.Base(job.ArtifactPath), file)
		if err != nil {
			return err
		}
		inputFileID = id
		return nil
	}, s.config.MaxRetries, s.config.RetryDelay)
	if err != nil {
		return fmt.Errorf("upload artifact for job %s: %w", job.Id, err)
	}

	var batch *batchapi.Batch
	err = RetryWithBackoff(ctx, func() error {
		b, err := s.client.CreateBatch(ctx, inputFileID, endpointFor(job.Kind))
		if err != nil {
			return err
		}
		batch = b
		return nil
	}, s.config.MaxRetries, s.config.RetryDelay)
	if err != nil {
		return fmt.Errorf("create vendor batch for job %s: %w", job.Id, err)
	}

	if err := s.jobs.RecordSubmission(ctx, job.Id, batch.ID, inputFileID); err != nil {
		return fmt.Errorf("record submission of job %s: %w", job.Id, err)
	}

	job.State = core.StateSubmitted
	job.VendorBatchID = batch.ID
	job.VendorInputFileID = inputFileID

	s.logger.Info("submitted job", "jobID", job.Id, "vendorBatchID", batch.ID, "requests", job.RequestCount)
	return nil
}
