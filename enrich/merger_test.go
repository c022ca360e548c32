package enrich

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/enrichit/batchapi/mock"
	"github.com/poiesic/enrichit/core"
	"github.com/poiesic/enrichit/storage"
)

// completeJob drives count documents through build, submit and poll on
// the mock client, returning the COMPLETED job and the documents.
func completeJob(t *testing.T, docs storage.DocumentRepository, jobs storage.JobRepository, client *mock.Client, config Config, kind core.Kind, count int) (*core.BatchJob, []*core.Document) {
	t.Helper()
	ctx := context.Background()

	added := addTestDocuments(t, docs, count)

	built, err := NewBuilder(docs, jobs, config).Run(ctx, kind)
	require.NoError(t, err)
	require.Len(t, built.Jobs, 1)

	_, err = NewSubmitter(jobs, client, config).Run(ctx, kind)
	require.NoError(t, err)
	require.NoError(t, NewPoller(jobs, client, config).Run(ctx))

	job, err := jobs.GetJob(ctx, built.Jobs[0].Id)
	require.NoError(t, err)
	require.Equal(t, core.StateCompleted, job.State)
	return job, added
}

func TestMerger_MergeSummaries(t *testing.T) {
	docs, jobs := setupRepos(t)
	ctx := context.Background()
	config := testConfig(t)
	client := mock.NewClient()

	job, added := completeJob(t, docs, jobs, client, config, core.KindSummary, 3)

	stats, err := NewMerger(docs, jobs, client, config).MergeJob(ctx, job.Id, false)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 3, stats.Merged)
	assert.Equal(t, 0, stats.Failed)

	for _, doc := range added {
		stored, err := docs.GetDocument(ctx, doc.Id)
		require.NoError(t, err)
		assert.NotEmpty(t, stored.Summary)
		assert.Equal(t, config.SummaryModel, stored.SummaryModel)
		assert.False(t, stored.SummarizedAt.IsZero())
	}

	merged, err := jobs.GetJob(ctx, job.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StateMerged, merged.State)
	assert.Equal(t, 3, merged.MergedCount)
	assert.False(t, merged.MergedAt.IsZero())
}

func TestMerger_MergeEmbeddings(t *testing.T) {
	docs, jobs := setupRepos(t)
	ctx := context.Background()
	config := testConfig(t)
	client := mock.NewClient()

	job, added := completeJob(t, docs, jobs, client, config, core.KindEmbedding, 2)

	_, err := NewMerger(docs, jobs, client, config).MergeJob(ctx, job.Id, false)
	require.NoError(t, err)

	for _, doc := range added {
		stored, err := docs.GetDocument(ctx, doc.Id)
		require.NoError(t, err)
		assert.NotEmpty(t, stored.Vector)
		assert.Equal(t, config.EmbeddingModel, stored.EmbeddingModel)
	}
}

func TestMerger_ReportsProgress(t *testing.T) {
	docs, jobs := setupRepos(t)
	ctx := context.Background()
	config := testConfig(t)
	client := mock.NewClient()

	job, _ := completeJob(t, docs, jobs, client, config, core.KindSummary, 3)

	var out bytes.Buffer
	merger := NewMerger(docs, jobs, client, config)
	merger.progress = &out

	_, err := merger.MergeJob(ctx, job.Id, false)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Merged: 3/3")
}

func TestMerger_VendorFailuresDoNotBlockMerge(t *testing.T) {
	docs, jobs := setupRepos(t)
	ctx := context.Background()
	config := testConfig(t)

	added := addTestDocuments(t, docs, 2)

	client := mock.NewClient()
	failing := core.CustomID(added[0].Id, core.KindSummary)
	client.FailRequests = map[string]string{failing: "context length exceeded"}

	built, err := NewBuilder(docs, jobs, config).Run(ctx, core.KindSummary)
	require.NoError(t, err)
	_, err = NewSubmitter(jobs, client, config).Run(ctx, core.KindSummary)
	require.NoError(t, err)
	require.NoError(t, NewPoller(jobs, client, config).Run(ctx))

	stats, err := NewMerger(docs, jobs, client, config).MergeJob(ctx, built.Jobs[0].Id, false)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Merged)
	assert.Equal(t, 1, stats.Failed)

	failed, err := docs.GetDocument(ctx, added[0].Id)
	require.NoError(t, err)
	assert.Empty(t, failed.Summary)
	assert.Contains(t, failed.SummaryError, "context length exceeded")

	ok, err := docs.GetDocument(ctx, added[1].Id)
	require.NoError(t, err)
	assert.NotEmpty(t, ok.Summary)

	// The job still reaches MERGED; failures are per-document.
	job, err := jobs.GetJob(ctx, built.Jobs[0].Id)
	require.NoError(t, err)
	assert.Equal(t, core.StateMerged, job.State)
	assert.Equal(t, 1, job.MergeFailedCount)
}

func TestMerger_ForcedRemergeIsIdempotent(t *testing.T) {
	docs, jobs := setupRepos(t)
	ctx := context.Background()
	config := testConfig(t)
	client := mock.NewClient()

	job, added := completeJob(t, docs, jobs, client, config, core.KindSummary, 2)
	merger := NewMerger(docs, jobs, client, config)

	_, err := merger.MergeJob(ctx, job.Id, false)
	require.NoError(t, err)

	before := make(map[core.ID]*core.Document)
	for _, doc := range added {
		stored, err := docs.GetDocument(ctx, doc.Id)
		require.NoError(t, err)
		before[doc.Id] = stored
	}

	// Un-forced re-merge is refused.
	_, err = merger.MergeJob(ctx, job.Id, false)
	assert.ErrorIs(t, err, ErrNotMergeable)

	// Forced re-merge leaves storage identical.
	stats, err := merger.MergeJob(ctx, job.Id, true)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)

	for id, prev := range before {
		stored, err := docs.GetDocument(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, prev.Summary, stored.Summary)
		assert.True(t, prev.UpdatedAt.Equal(stored.UpdatedAt), "idempotent re-apply must not touch the document")
	}
}

func TestMerger_DuplicateCustomID(t *testing.T) {
	docs, jobs := setupRepos(t)
	ctx := context.Background()
	config := testConfig(t)
	client := mock.NewClient()

	job, added := completeJob(t, docs, jobs, client, config, core.KindSummary, 1)

	line := fmt.Sprintf(`{"custom_id":%q,"response":{"status_code":200,"body":{"choices":[{"message":{"content":"dup"}}]}},"error":null}`,
		core.CustomID(added[0].Id, core.KindSummary))
	client.DownloadFileFunc = func(ctx context.Context, fileID string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(line + "\n" + line + "\n")), nil
	}

	_, err := NewMerger(docs, jobs, client, config).MergeJob(ctx, job.Id, false)
	assert.ErrorIs(t, err, ErrDuplicateResult)

	// The job is left COMPLETED for inspection.
	stored, err := jobs.GetJob(ctx, job.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StateCompleted, stored.State)
}

func TestMerger_UnknownCustomID(t *testing.T) {
	docs, jobs := setupRepos(t)
	ctx := context.Background()
	config := testConfig(t)
	client := mock.NewClient()

	job, _ := completeJob(t, docs, jobs, client, config, core.KindSummary, 1)

	line := `{"custom_id":"doc:999999:summary","response":{"status_code":200,"body":{"choices":[{"message":{"content":"stray"}}]}},"error":null}`
	client.DownloadFileFunc = func(ctx context.Context, fileID string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(line + "\n")), nil
	}

	_, err := NewMerger(docs, jobs, client, config).MergeJob(ctx, job.Id, false)
	assert.ErrorIs(t, err, ErrUnknownCustomID)
}

func TestMerger_CountMismatchLeavesJobCompleted(t *testing.T) {
	docs, jobs := setupRepos(t)
	ctx := context.Background()
	config := testConfig(t)
	client := mock.NewClient()

	job, added := completeJob(t, docs, jobs, client, config, core.KindSummary, 2)

	// Return results for only one of the two requests.
	line := fmt.Sprintf(`{"custom_id":%q,"response":{"status_code":200,"body":{"choices":[{"message":{"content":"only one"}}]}},"error":null}`,
		core.CustomID(added[0].Id, core.KindSummary))
	client.DownloadFileFunc = func(ctx context.Context, fileID string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(line + "\n")), nil
	}

	stats, err := NewMerger(docs, jobs, client, config).MergeJob(ctx, job.Id, false)
	assert.ErrorIs(t, err, ErrCountMismatch)
	assert.Equal(t, 1, stats.Processed)

	stored, err := jobs.GetJob(ctx, job.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StateCompleted, stored.State)
}

func TestMerger_RejectsUnmergeableStates(t *testing.T) {
	docs, jobs := setupRepos(t)
	ctx := context.Background()
	config := testConfig(t)
	client := mock.NewClient()

	addTestDocuments(t, docs, 1)
	built, err := NewBuilder(docs, jobs, config).Run(ctx, core.KindSummary)
	require.NoError(t, err)

	merger := NewMerger(docs, jobs, client, config)
	_, err = merger.MergeJob(ctx, built.Jobs[0].Id, false)
	assert.ErrorIs(t, err, ErrNotMergeable, "a BUILT job has nothing to merge")
}
