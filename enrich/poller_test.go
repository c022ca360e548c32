package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/enrichit/batchapi"
	"github.com/poiesic/enrichit/batchapi/mock"
	"github.com/poiesic/enrichit/core"
	"github.com/poiesic/enrichit/storage"
)

// buildAndSubmit stores count documents, builds one job and submits it
// through the given mock client.
func buildAndSubmit(t *testing.T, docs storage.DocumentRepository, jobs storage.JobRepository, client *mock.Client, config Config) *core.BatchJob {
	t.Helper()
	ctx := context.Background()

	addTestDocuments(t, docs, 2)
	built, err := NewBuilder(docs, jobs, config).Run(ctx, core.KindSummary)
	require.NoError(t, err)
	require.Len(t, built.Jobs, 1)

	submitted, err := NewSubmitter(jobs, client, config).Run(ctx, core.KindSummary)
	require.NoError(t, err)
	require.Len(t, submitted, 1)
	return submitted[0]
}

func TestPoller_PollOnce_Transitions(t *testing.T) {
	docs, jobs := setupRepos(t)
	ctx := context.Background()
	config := testConfig(t)

	client := mock.NewClient()
	client.StatusScript = []string{batchapi.StatusInProgress}
	job := buildAndSubmit(t, docs, jobs, client, config)

	poller := NewPoller(jobs, client, config)

	// First pass observes in_progress.
	stats, err := poller.PollOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Polled)
	assert.Equal(t, 1, stats.Changed)
	assert.Equal(t, 1, stats.Remaining)

	stored, err := jobs.GetJob(ctx, job.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StateInProgress, stored.State)

	// Second pass sees the batch finalize.
	stats, err = poller.PollOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Changed)
	assert.Equal(t, 0, stats.Remaining)

	stored, err = jobs.GetJob(ctx, job.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StateCompleted, stored.State)
	assert.NotEmpty(t, stored.VendorOutputFileID, "output files recorded on completion")
	assert.Equal(t, 2, stored.CompletedCount)
	assert.False(t, stored.CompletedAt.IsZero())
}

func TestPoller_Run_ToQuiescence(t *testing.T) {
	docs, jobs := setupRepos(t)
	ctx := context.Background()
	config := testConfig(t)

	client := mock.NewClient()
	client.StatusScript = []string{batchapi.StatusValidating, batchapi.StatusInProgress, batchapi.StatusFinalizing}
	job := buildAndSubmit(t, docs, jobs, client, config)

	require.NoError(t, NewPoller(jobs, client, config).Run(ctx))

	stored, err := jobs.GetJob(ctx, job.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StateCompleted, stored.State)
}

func TestPoller_VendorFailure(t *testing.T) {
	docs, jobs := setupRepos(t)
	ctx := context.Background()
	config := testConfig(t)

	client := mock.NewClient()
	client.FinalStatus = batchapi.StatusFailed
	job := buildAndSubmit(t, docs, jobs, client, config)

	stats, err := NewPoller(jobs, client, config).PollOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Remaining)

	stored, err := jobs.GetJob(ctx, job.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StateFailed, stored.State)

	active, err := jobs.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active, "a failed job leaves the active set")
}

func TestPoller_UnknownStatusIsAnAnomaly(t *testing.T) {
	docs, jobs := setupRepos(t)
	ctx := context.Background()
	config := testConfig(t)

	client := mock.NewClient()
	job := buildAndSubmit(t, docs, jobs, client, config)

	client.GetBatchFunc = func(ctx context.Context, batchID string) (*batchapi.Batch, error) {
		return &batchapi.Batch{ID: batchID, Status: "paused"}, nil
	}

	stats, err := NewPoller(jobs, client, config).PollOnce(ctx)
	assert.ErrorIs(t, err, ErrUnknownVendorStatus)
	assert.Equal(t, 0, stats.Changed)

	stored, err := jobs.GetJob(ctx, job.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StateSubmitted, stored.State, "an unknown status is never coerced")
}

func TestPoller_LocalExpiry(t *testing.T) {
	docs, jobs := setupRepos(t)
	ctx := context.Background()
	config := testConfig(t)

	client := mock.NewClient()
	job := buildAndSubmit(t, docs, jobs, client, config)

	poller := NewPoller(jobs, client, config)
	poller.now = func() time.Time {
		return time.Now().Add(config.PollTimeout + time.Hour)
	}

	stats, err := poller.PollOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Changed)
	assert.Equal(t, 0, stats.Remaining)

	stored, err := jobs.GetJob(ctx, job.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StateExpired, stored.State)
}

// unavailableJobs fails every active-set listing, as a job store does
// while its database is down.
type unavailableJobs struct {
	storage.JobRepository
}

func (u *unavailableJobs) ListActive(ctx context.Context) ([]*core.BatchJob, error) {
	return nil, errors.New("database io failure")
}

func TestPoller_RunSurfacesStoreFailure(t *testing.T) {
	_, jobs := setupRepos(t)
	config := testConfig(t)

	poller := NewPoller(&unavailableJobs{JobRepository: jobs}, mock.NewClient(), config)

	err := poller.Run(context.Background())
	require.Error(t, err, "a failing job store is a stage failure, not a panic")
	assert.Contains(t, err.Error(), "database io failure")

	stats, err := poller.PollOnce(context.Background())
	assert.Error(t, err)
	assert.Nil(t, stats)
}

func TestPoller_Cancel(t *testing.T) {
	docs, jobs := setupRepos(t)
	ctx := context.Background()
	config := testConfig(t)

	client := mock.NewClient()
	job := buildAndSubmit(t, docs, jobs, client, config)

	poller := NewPoller(jobs, client, config)
	require.NoError(t, poller.Cancel(ctx, job.Id))

	stored, err := jobs.GetJob(ctx, job.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StateCancelled, stored.State)

	// Cancelling again is an invalid transition.
	err = poller.Cancel(ctx, job.Id)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)
}
