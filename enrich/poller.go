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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/enrichit/batchapi"
	"github.com/poiesic/enrichit/core"
	"github.com/poiesic/enrichit/storage"
)

// Poller tracks SUBMITTED and IN_PROGRESS jobs against the vendor. Each
// pass fetches every watched job's batch status on a bounded worker
// pool, maps it into the job state set and applies at most one
// transition per job. Between passes the delay backs off exponentially
// and resets whenever a pass observed a change.
type Poller struct {
	jobs   storage.JobRepository
	client batchapi.Client
	config Config
	logger *slog.Logger

	// now is swappable for deadline tests.
	now func() time.Time
}

// NewPoller creates a poller over the job store and vendor client.
func NewPoller(jobs storage.JobRepository, client batchapi.Client, config Config) *Poller {
	return &Poller{
		jobs:   jobs,
		client: client,
		config: config,
		logger: slog.Default().With("component", "poller"),
		now:    time.Now,
	}
}

// PollStats summarize one poll pass.
type PollStats struct {
	Polled    int // jobs whose vendor status was checked
	Changed   int // jobs that transitioned or refreshed counts
	Remaining int // jobs still awaiting a terminal or COMPLETED state
}

// mapVendorStatus maps a vendor batch status onto the job state graph.
// Statuses outside the documented set are an anomaly, never coerced.
func mapVendorStatus(status string) (core.JobState, error) {
	switch status {
	case batchapi.StatusValidating, batchapi.StatusInProgress, batchapi.StatusFinalizing, batchapi.StatusCancelling:
		return core.StateInProgress, nil
	case batchapi.StatusCompleted:
		return core.StateCompleted, nil
	case batchapi.StatusFailed:
		return core.StateFailed, nil
	case batchapi.StatusExpired:
		return core.StateExpired, nil
	case batchapi.StatusCancelled:
		return core.StateCancelled, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownVendorStatus, status)
	}
}

// Run polls until no watched job remains, the context ends, or a pass
// fails outright. Individual job anomalies are logged and retried on
// the next pass rather than aborting the loop.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.config.PollInterval
	for {
		stats, err := p.PollOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if stats == nil {
				// The pass itself failed before any job was checked.
				return fmt.Errorf("poll pass: %w", err)
			}
			p.logger.Error("poll pass reported anomalies", "error", err)
		}
		if stats.Remaining == 0 {
			return nil
		}

		if stats.Changed > 0 {
			interval = p.config.PollInterval
		} else {
			interval *= 2
			if interval > p.config.PollMaxInterval {
				interval = p.config.PollMaxInterval
			}
		}

		p.logger.Debug("waiting before next poll pass", "interval", interval, "remaining", stats.Remaining)
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// PollOnce runs a single pass over the watched jobs. It is the unit of
// work for scheduled-cadence operation.
func (p *Poller) PollOnce(ctx context.Context) (*PollStats, error) {
	active, err := p.jobs.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}

	var watched []*core.BatchJob
	for _, job := range active {
		if job.State == core.StateSubmitted || job.State == core.StateInProgress {
			watched = append(watched, job)
		}
	}

	stats := &PollStats{Polled: len(watched)}
	if len(watched) == 0 {
		return stats, nil
	}

	pool, err := ants.NewPool(p.config.PollConcurrency)
	if err != nil {
		return nil, fmt.Errorf("create poll pool: %w", err)
	}
	defer pool.Release()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		anomalies []error
	)
	for _, job := range watched {
		job := job
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			changed, final, err := p.pollJob(ctx, job)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				anomalies = append(anomalies, fmt.Errorf("job %s: %w", job.Id, err))
			}
			if changed {
				stats.Changed++
			}
			if final == core.StateSubmitted || final == core.StateInProgress {
				stats.Remaining++
			}
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			anomalies = append(anomalies, submitErr)
			mu.Unlock()
		}
	}
	wg.Wait()

	return stats, errors.Join(anomalies...)
}

// pollJob checks one job against the vendor and applies any transition.
// Returns whether anything changed and the job's state after the check.
func (p *Poller) pollJob(ctx context.Context, job *core.BatchJob) (bool, core.JobState, error) {
	if !job.SubmittedAt.IsZero() && p.now().Sub(job.SubmittedAt) > p.config.PollTimeout {
		p.logger.Warn("job exceeded poll timeout, expiring locally",
			"jobID", job.Id, "submittedAt", job.SubmittedAt, "timeout", p.config.PollTimeout)
		if err := p.jobs.UpdateStatus(ctx, job.Id, core.StateExpired, core.RequestCounts{}); err != nil {
			return false, job.State, err
		}
		return true, core.StateExpired, nil
	}

	batch, err := p.client.GetBatch(ctx, job.VendorBatchID)
	if err != nil {
		return false, job.State, fmt.Errorf("get vendor batch %s: %w", job.VendorBatchID, err)
	}

	state, err := mapVendorStatus(batch.Status)
	if err != nil {
		return false, job.State, err
	}

	counts := core.RequestCounts{
		Total:     batch.RequestCounts.Total,
		Completed: batch.RequestCounts.Completed,
		Failed:    batch.RequestCounts.Failed,
	}

	if state == job.State {
		// Same state; refresh counts if the vendor's tallies moved.
		if counts.Completed == job.CompletedCount && counts.Failed == job.FailedCount {
			return false, state, nil
		}
		if err := p.jobs.UpdateStatus(ctx, job.Id, state, counts); err != nil {
			return false, state, err
		}
		job.CompletedCount = counts.Completed
		job.FailedCount = counts.Failed
		return true, state, nil
	}

	if err := p.jobs.UpdateStatus(ctx, job.Id, state, counts); err != nil {
		return false, job.State, fmt.Errorf("update status to %s: %w", state, err)
	}
	if state == core.StateCompleted {
		if err := p.jobs.RecordOutputFiles(ctx, job.Id, batch.OutputFileID, batch.ErrorFileID); err != nil {
			return true, state, fmt.Errorf("record output files: %w", err)
		}
	}

	p.logger.Info("job state changed", "jobID", job.Id, "from", job.State.String(), "to", state.String())
	job.State = state
	return true, state, nil
}

// Cancel cancels a submitted or in-progress job at the vendor and
// records the local CANCELLED state.
func (p *Poller) Cancel(ctx context.Context, id string) error {
	job, err := p.jobs.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.State != core.StateSubmitted && job.State != core.StateInProgress {
		return fmt.Errorf("%w: job %s is %s", storage.ErrInvalidTransition, id, job.State)
	}

	if job.VendorBatchID != "" {
		if _, err := p.client.CancelBatch(ctx, job.VendorBatchID); err != nil {
			return fmt.Errorf("cancel vendor batch %s: %w", job.VendorBatchID, err)
		}
	}
	return p.jobs.UpdateStatus(ctx, id, core.StateCancelled, core.RequestCounts{})
}
