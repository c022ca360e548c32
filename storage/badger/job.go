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


package badger

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/enrichit/core"
	"github.com/poiesic/enrichit/storage"
)

// JobRepository implements storage.JobRepository for BadgerDB.
//
// Every named update runs as one read-validate-write BadgerDB
// transaction. Badger's conflict detection fails a commit whose read set
// was changed concurrently, which gives each job a compare-and-set: two
// pollers racing on the same job cannot both apply a stale transition.
type JobRepository struct {
	backend *Backend
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) (*JobRepository, error) {
	return &JobRepository{backend: backend}, nil
}

// Close releases repository resources.
func (r *JobRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *JobRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// CreateJob registers a freshly built job in state BUILT.
func (r *JobRepository) CreateJob(ctx context.Context, job *core.BatchJob) (*core.BatchJob, error) {
	if job.Id == "" {
		job.Id = uuid.NewString()
	}
	job.State = core.StateBuilt
	job.CreatedAt = time.Now().UTC()

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if err := core.ValidateBatchJob(job); err != nil {
			return err
		}

		key := makeJobKey(job.Id)
		if _, err := tx.Get(key); err == nil {
			return fmt.Errorf("%w: job %s", storage.ErrDuplicateKey, job.Id)
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		if err := tx.Set(key, storage.MarshalBatchJob(job)); err != nil {
			return err
		}
		if err := tx.Set(makeJobActiveKey(job.Id), []byte(job.Id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return nil, err
	}
	return job, nil
}

// RecordSubmission transitions BUILT -> SUBMITTED and stores the
// vendor-assigned identifiers.
func (r *JobRepository) RecordSubmission(ctx context.Context, id, vendorBatchID, vendorInputFileID string) error {
	return r.update(id, func(job *core.BatchJob) error {
		if !job.State.CanTransition(core.StateSubmitted) {
			return fmt.Errorf("%w: %s -> %s (job %s)", storage.ErrInvalidTransition, job.State, core.StateSubmitted, id)
		}
		job.State = core.StateSubmitted
		job.VendorBatchID = vendorBatchID
		job.VendorInputFileID = vendorInputFileID
		job.SubmittedAt = time.Now().UTC()
		return nil
	})
}

// UpdateStatus applies an observed state together with vendor counts.
// Re-asserting the current state only refreshes the counts.
func (r *JobRepository) UpdateStatus(ctx context.Context, id string, state core.JobState, counts core.RequestCounts) error {
	if !state.Valid() {
		return fmt.Errorf("%w: %d", core.ErrInvalidJobState, int(state))
	}

	return r.update(id, func(job *core.BatchJob) error {
		if state != job.State {
			if !job.State.CanTransition(state) {
				return fmt.Errorf("%w: %s -> %s (job %s)", storage.ErrInvalidTransition, job.State, state, id)
			}
			job.State = state
			if state == core.StateCompleted {
				job.CompletedAt = time.Now().UTC()
			}
		}
		job.CompletedCount = counts.Completed
		job.FailedCount = counts.Failed
		if counts.Total > 0 {
			job.RequestCount = counts.Total
		}
		return nil
	})
}

// RecordOutputFiles stores the vendor's result artifact identifiers on a
// COMPLETED job.
func (r *JobRepository) RecordOutputFiles(ctx context.Context, id, outputFileID, errorFileID string) error {
	return r.update(id, func(job *core.BatchJob) error {
		if job.State != core.StateCompleted {
			return fmt.Errorf("%w: output files require COMPLETED, job %s is %s", storage.ErrInvalidTransition, id, job.State)
		}
		job.VendorOutputFileID = outputFileID
		job.VendorErrorFileID = errorFileID
		return nil
	})
}

// MarkMerged transitions COMPLETED -> MERGED with merge tallies.
func (r *JobRepository) MarkMerged(ctx context.Context, id string, counts core.MergeCounts) error {
	return r.update(id, func(job *core.BatchJob) error {
		if !job.State.CanTransition(core.StateMerged) {
			return fmt.Errorf("%w: %s -> %s (job %s)", storage.ErrInvalidTransition, job.State, core.StateMerged, id)
		}
		job.State = core.StateMerged
		job.MergedCount = counts.Merged
		job.MergeFailedCount = counts.Failed
		job.MergedAt = time.Now().UTC()
		return nil
	})
}

// GetJob retrieves a job by internal ID.
func (r *JobRepository) GetJob(ctx context.Context, id string) (*core.BatchJob, error) {
	var result *core.BatchJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readJob(tx, makeJobKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// ListJobs returns every stored job, newest first.
func (r *JobRepository) ListJobs(ctx context.Context) ([]*core.BatchJob, error) {
	var results []*core.BatchJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var job *core.BatchJob
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				job, err = storage.UnmarshalBatchJob(val)
				return err
			}); err != nil {
				return err
			}
			results = append(results, job)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	sortJobsNewestFirst(results)
	return results, nil
}

// ListActive returns jobs not yet in a terminal state, newest first.
func (r *JobRepository) ListActive(ctx context.Context) ([]*core.BatchJob, error) {
	var results []*core.BatchJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobActivePrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var id string
			if err := iter.Item().Value(func(val []byte) error {
				id = string(val)
				return nil
			}); err != nil {
				return err
			}

			job, err := r.readJob(tx, makeJobKey(id))
			if err != nil {
				return err
			}
			if job != nil {
				results = append(results, job)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	sortJobsNewestFirst(results)
	return results, nil
}

// update runs a read-validate-write cycle on one job. The mutation fn
// must either return an error or leave the job in a storable state; the
// active index is maintained when the job enters a terminal state.
func (r *JobRepository) update(id string, fn func(job *core.BatchJob) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeJobKey(id)
		job, err := r.readJob(tx, key)
		if err != nil {
			return err
		}
		if job == nil {
			return storage.ErrNotFound
		}

		wasTerminal := job.State.Terminal()
		if err := fn(job); err != nil {
			return err
		}
		if wasTerminal {
			// fn validated the transition and terminal states have none,
			// so reaching here means fn mutated without transitioning.
			return fmt.Errorf("%w: job %s is terminal (%s)", storage.ErrInvalidTransition, id, job.State)
		}

		if err := tx.Set(key, storage.MarshalBatchJob(job)); err != nil {
			return err
		}
		if job.State.Terminal() {
			if err := tx.Delete(makeJobActiveKey(id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// readJob reads and unmarshals a job, returning nil if absent.
func (r *JobRepository) readJob(tx *badger.Txn, key []byte) (*core.BatchJob, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var job *core.BatchJob
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		job, unmarshalErr = storage.UnmarshalBatchJob(val)
		return unmarshalErr
	})
	return job, err
}

func sortJobsNewestFirst(jobs []*core.BatchJob) {
	slices.SortFunc(jobs, func(a, b *core.BatchJob) int {
		switch {
		case a.CreatedAt.After(b.CreatedAt):
			return -1
		case a.CreatedAt.Before(b.CreatedAt):
			return 1
		default:
			return 0
		}
	})
}
