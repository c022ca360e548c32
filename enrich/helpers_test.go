package enrich

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/poiesic/enrichit/core"
	"github.com/poiesic/enrichit/storage"
	"github.com/poiesic/enrichit/storage/badger"
)

func setupRepos(t *testing.T) (storage.DocumentRepository, storage.JobRepository) {
	t.Helper()
	docs, jobs, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		docs.Close()
		jobs.Close()
		backend.Close()
	})
	return docs, jobs
}

func testConfig(t *testing.T) Config {
	t.Helper()
	config := DefaultConfig()
	config.ArtifactDir = t.TempDir()
	config.MaxRetries = 2
	config.RetryDelay = 10 * time.Millisecond
	config.PollInterval = 10 * time.Millisecond
	config.PollMaxInterval = 50 * time.Millisecond
	config.PollConcurrency = 2
	return config
}

// addTestDocuments stores count documents long enough to clear the
// minimum-length filter and returns them.
func addTestDocuments(t *testing.T, docs storage.DocumentRepository, count int) []*core.Document {
	t.Helper()
	ctx := context.Background()

	records := make([]*core.Document, count)
	for i := range records {
		records[i] = &core.Document{
			Title: fmt.Sprintf("Document %d", i),
			Contents: fmt.Sprintf(
				"Document number %d carries enough prose to clear the minimum content length filter comfortably.", i),
			PublishedAt: time.Now().UTC().Add(-time.Duration(count-i) * time.Hour),
		}
	}
	added, err := docs.AddDocuments(ctx, records...)
	require.NoError(t, err)
	require.Len(t, added, count)
	return added
}
