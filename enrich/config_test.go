package enrich

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())

	assert.Equal(t, 20000, config.MaxRequestsPerArtifact)
	assert.Equal(t, int64(100*1024*1024), config.MaxArtifactBytes)
	assert.Equal(t, 26*time.Hour, config.PollTimeout)
}

func TestLoadConfig_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enrichit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"summary_model: gpt-4o\nmax_requests_per_artifact: 500\npoll_interval: 5s\n"), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", config.SummaryModel)
	assert.Equal(t, 500, config.MaxRequestsPerArtifact)
	assert.Equal(t, 5*time.Second, config.PollInterval)

	// Untouched fields keep their defaults.
	assert.Equal(t, "text-embedding-3-small", config.EmbeddingModel)
	assert.Equal(t, 26*time.Hour, config.PollTimeout)
}

func TestLoadConfig_EmptyPathReturnsDefaults(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	broken := func(mutate func(*Config)) error {
		config := DefaultConfig()
		mutate(&config)
		return config.Validate()
	}

	assert.ErrorIs(t, broken(func(c *Config) { c.SummaryModel = "" }), ErrInvalidConfig)
	assert.ErrorIs(t, broken(func(c *Config) { c.EmbeddingModel = "" }), ErrInvalidConfig)
	assert.ErrorIs(t, broken(func(c *Config) { c.ArtifactDir = "" }), ErrInvalidConfig)
	assert.ErrorIs(t, broken(func(c *Config) { c.MaxRequestsPerArtifact = 0 }), ErrInvalidConfig)
	assert.ErrorIs(t, broken(func(c *Config) { c.MaxRequestBytes = 0 }), ErrInvalidConfig)
	assert.ErrorIs(t, broken(func(c *Config) { c.MaxArtifactBytes = 10 }), ErrInvalidConfig)
	assert.ErrorIs(t, broken(func(c *Config) { c.PollMaxInterval = time.Millisecond }), ErrInvalidConfig)
	assert.ErrorIs(t, broken(func(c *Config) { c.PollConcurrency = 0 }), ErrInvalidConfig)
}
