package enrich

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/enrichit/core"
)

// Config carries every tunable of the pipeline. It is an explicit value
// passed into the stage constructors; nothing reads process-global state.
type Config struct {
	// SummaryModel is the chat model used for summary requests.
	SummaryModel string `yaml:"summary_model"`

	// EmbeddingModel is the model used for embedding requests.
	EmbeddingModel string `yaml:"embedding_model"`

	// ArtifactDir is where request artifacts are written.
	ArtifactDir string `yaml:"artifact_dir"`

	// MaxRequestsPerArtifact caps the request lines per artifact.
	MaxRequestsPerArtifact int `yaml:"max_requests_per_artifact"`

	// MaxArtifactBytes caps the byte size of one artifact.
	MaxArtifactBytes int64 `yaml:"max_artifact_bytes"`

	// MaxRequestBytes caps one encoded request line. Documents whose
	// request exceeds it are skipped at build time.
	MaxRequestBytes int `yaml:"max_request_bytes"`

	// MinDocumentChars is the minimum content length worth enriching.
	MinDocumentChars int `yaml:"min_document_chars"`

	// RowLimit caps eligible documents per build. 0 means no cap.
	RowLimit int `yaml:"row_limit"`

	// BudgetUSD aborts a build whose projected cost exceeds it. 0 disables
	// the check.
	BudgetUSD float64 `yaml:"budget_usd"`

	// MaxRetries and RetryDelay shape RetryWithBackoff around vendor calls.
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`

	// PollInterval is the initial delay between poll passes. It doubles on
	// quiet passes up to PollMaxInterval and resets when anything changed.
	PollInterval    time.Duration `yaml:"poll_interval"`
	PollMaxInterval time.Duration `yaml:"poll_max_interval"`

	// PollTimeout expires jobs locally when the vendor never reaches a
	// terminal status. Slightly above the vendor's 24h completion window.
	PollTimeout time.Duration `yaml:"poll_timeout"`

	// PollConcurrency bounds concurrent vendor status fetches per pass.
	PollConcurrency int `yaml:"poll_concurrency"`

	// SummaryMaxTokens caps the generated summary length.
	SummaryMaxTokens int `yaml:"summary_max_tokens"`

	// SummaryPrompt is the system prompt for summary requests.
	SummaryPrompt string `yaml:"summary_prompt"`
}

// DefaultSummaryPrompt instructs the model tersely; the per-document
// content arrives as the user message.
const DefaultSummaryPrompt = "Summarize the following document in two or three plain sentences. " +
	"State only what the document says. Do not add opinions or preamble."

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		SummaryModel:           "gpt-4o-mini",
		EmbeddingModel:         "text-embedding-3-small",
		ArtifactDir:            "artifacts",
		MaxRequestsPerArtifact: 20000,
		MaxArtifactBytes:       100 * 1024 * 1024,
		MaxRequestBytes:        1024 * 1024,
		MinDocumentChars:       50,
		MaxRetries:             3,
		RetryDelay:             time.Second,
		PollInterval:           60 * time.Second,
		PollMaxInterval:        15 * time.Minute,
		PollTimeout:            26 * time.Hour,
		PollConcurrency:        4,
		SummaryMaxTokens:       180,
		SummaryPrompt:          DefaultSummaryPrompt,
	}
}

// LoadConfig reads a yaml file and merges it over the defaults.
// An empty path returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("parse config %s: %w", path, err)
	}
	return config, nil
}

// Validate checks the configuration bounds.
func (c *Config) Validate() error {
	if c.SummaryModel == "" {
		return fmt.Errorf("%w: summary_model is required", ErrInvalidConfig)
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("%w: embedding_model is required", ErrInvalidConfig)
	}
	if c.ArtifactDir == "" {
		return fmt.Errorf("%w: artifact_dir is required", ErrInvalidConfig)
	}
	if c.MaxRequestsPerArtifact <= 0 {
		return fmt.Errorf("%w: max_requests_per_artifact must be positive", ErrInvalidConfig)
	}
	if c.MaxArtifactBytes <= 0 {
		return fmt.Errorf("%w: max_artifact_bytes must be positive", ErrInvalidConfig)
	}
	if c.MaxRequestBytes <= 0 || int64(c.MaxRequestBytes) > c.MaxArtifactBytes {
		return fmt.Errorf("%w: max_request_bytes must be positive and fit one artifact", ErrInvalidConfig)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("%w: max_retries must be positive", ErrInvalidConfig)
	}
	if c.PollInterval <= 0 || c.PollMaxInterval < c.PollInterval {
		return fmt.Errorf("%w: poll intervals must be positive and ordered", ErrInvalidConfig)
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("%w: poll_timeout must be positive", ErrInvalidConfig)
	}
	if c.PollConcurrency <= 0 {
		return fmt.Errorf("%w: poll_concurrency must be positive", ErrInvalidConfig)
	}
	if c.SummaryMaxTokens <= 0 {
		return fmt.Errorf("%w: summary_max_tokens must be positive", ErrInvalidConfig)
	}
	return nil
}

// ModelFor returns the configured model for an enrichment kind.
func (c *Config) ModelFor(kind core.Kind) string {
	if kind == core.KindSummary {
		return c.SummaryModel
	}
	return c.EmbeddingModel
}
