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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/enrichit"
	"github.com/poiesic/enrichit/ai"
	aiopenai "github.com/poiesic/enrichit/ai/openai"
	"github.com/poiesic/enrichit/batchapi"
	"github.com/poiesic/enrichit/batchapi/openai"
	"github.com/poiesic/enrichit/core"
	"github.com/poiesic/enrichit/enrich"
)

func main() {
	app := &cli.App{
		Name:  "enrichit",
		Usage: "Batch enrichment pipeline for stored documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "db",
				Aliases:  []string{"d"},
				Usage:    "Path to BadgerDB database directory",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to yaml pipeline configuration",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Vendor API key",
				EnvVars: []string{"OPENAI_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "api-base",
				Usage:   "Vendor API base URL",
				Value:   "https://api.openai.com/v1",
				EnvVars: []string{"OPENAI_BASE_URL"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Build request artifacts and register jobs",
				Action: buildCommand,
				Flags: []cli.Flag{
					kindFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Cap the number of eligible documents",
					},
					&cli.Float64Flag{
						Name:  "budget",
						Usage: "Abort when the projected cost (USD) exceeds this",
					},
				},
			},
			{
				Name:   "submit",
				Usage:  "Submit built jobs to the vendor",
				Action: submitCommand,
				Flags: []cli.Flag{
					kindFlag(),
					&cli.StringFlag{
						Name:  "job",
						Usage: "Submit only this job ID",
					},
				},
			},
			{
				Name:   "poll",
				Usage:  "Poll submitted jobs until all settle",
				Action: pollCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "once",
						Usage: "Run a single poll pass and exit",
					},
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "Initial delay between poll passes",
					},
					&cli.DurationFlag{
						Name:  "max-interval",
						Usage: "Upper bound for the poll backoff",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Expire jobs locally after this long since submission",
					},
				},
			},
			{
				Name:   "merge",
				Usage:  "Merge completed job results into documents",
				Action: mergeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "job",
						Usage: "Merge only this job ID",
					},
					&cli.StringFlag{
						Name:  "kind",
						Usage: "Merge every completed job of this kind (summary or embedding)",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Re-merge an already merged job",
					},
				},
			},
			{
				Name:   "run",
				Usage:  "Run the full build, submit, poll and merge sequence",
				Action: runCommand,
				Flags: []cli.Flag{
					kindFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Cap the number of eligible documents",
					},
					&cli.Float64Flag{
						Name:  "budget",
						Usage: "Abort when the projected cost (USD) exceeds this",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show one job's lifecycle state",
				Action: statusCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "job",
						Usage:    "Job ID",
						Required: true,
					},
				},
			},
			{
				Name:   "jobs",
				Usage:  "List jobs, newest first",
				Action: jobsCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "active",
						Usage: "Only jobs not yet in a terminal state",
					},
				},
			},
			{
				Name:   "cancel",
				Usage:  "Cancel a submitted job at the vendor",
				Action: cancelCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "job",
						Usage:    "Job ID",
						Required: true,
					},
				},
			},
			{
				Name:   "verify",
				Usage:  "Verify API access with minimal synchronous requests",
				Action: verifyCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func kindFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "kind",
		Aliases:  []string{"k"},
		Usage:    "Enrichment kind (summary or embedding)",
		Required: true,
	}
}

// loadConfig merges the yaml file over defaults and applies flag overrides.
func loadConfig(c *cli.Context) (enrich.Config, error) {
	config, err := enrich.LoadConfig(c.String("config"))
	if err != nil {
		return config, err
	}

	if c.IsSet("limit") {
		config.RowLimit = c.Int("limit")
	}
	if c.IsSet("budget") {
		config.BudgetUSD = c.Float64("budget")
	}
	if c.IsSet("interval") {
		config.PollInterval = c.Duration("interval")
	}
	if c.IsSet("max-interval") {
		config.PollMaxInterval = c.Duration("max-interval")
	}
	if c.IsSet("timeout") {
		config.PollTimeout = c.Duration("timeout")
	}

	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

func openStore(c *cli.Context) (*enrichit.Store, error) {
	store, err := enrichit.Open(c.String("db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

func newVendorClient(c *cli.Context) (batchapi.Client, error) {
	return openai.NewClient(openai.Config{
		BaseURL: c.String("api-base"),
		APIKey:  c.String("api-key"),
	})
}

func buildCommand(c *cli.Context) error {
	ctx := context.Background()

	kind, err := core.ParseKind(c.String("kind"))
	if err != nil {
		return err
	}
	config, err := loadConfig(c)
	if err != nil {
		return err
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	builder := enrich.NewBuilder(store.DocumentRepository(), store.JobRepository(), config)
	result, err := builder.Run(ctx, kind)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Built %d job(s): %d eligible, %d skipped\n",
		len(result.Jobs), result.Eligible, result.Skipped)
	fmt.Fprintf(os.Stderr, "Estimated tokens: %d, projected cost: $%.4f\n",
		result.EstimatedTokens, result.ProjectedCostUSD)
	for _, job := range result.Jobs {
		fmt.Fprintf(os.Stderr, "  %s  %s  %d requests\n", job.Id, job.ArtifactPath, job.RequestCount)
	}
	return nil
}

func submitCommand(c *cli.Context) error {
	ctx := context.Background()

	kind, err := core.ParseKind(c.String("kind"))
	if err != nil {
		return err
	}
	config, err := loadConfig(c)
	if err != nil {
		return err
	}
	client, err := newVendorClient(c)
	if err != nil {
		return err
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	submitter := enrich.NewSubmitter(store.JobRepository(), client, config)

	if jobID := c.String("job"); jobID != "" {
		job, err := store.JobRepository().GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if err := submitter.SubmitJob(ctx, job); err != nil {
			return fmt.Errorf("submit failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Submitted %s as vendor batch %s\n", job.Id, job.VendorBatchID)
		return nil
	}

	submitted, err := submitter.Run(ctx, kind)
	if err != nil {
		return fmt.Errorf("submit failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Submitted %d job(s)\n", len(submitted))
	return nil
}

func pollCommand(c *cli.Context) error {
	ctx := context.Background()

	config, err := loadConfig(c)
	if err != nil {
		return err
	}
	client, err := newVendorClient(c)
	if err != nil {
		return err
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	poller := enrich.NewPoller(store.JobRepository(), client, config)

	if c.Bool("once") {
		stats, err := poller.PollOnce(ctx)
		if stats != nil {
			fmt.Fprintf(os.Stderr, "Polled %d job(s): %d changed, %d remaining\n",
				stats.Polled, stats.Changed, stats.Remaining)
		}
		if err != nil {
			return fmt.Errorf("poll failed: %w", err)
		}
		return nil
	}

	if err := poller.Run(ctx); err != nil {
		return fmt.Errorf("poll failed: %w", err)
	}
	fmt.Fprintln(os.Stderr, "All watched jobs settled")
	return nil
}

func mergeCommand(c *cli.Context) error {
	ctx := context.Background()

	config, err := loadConfig(c)
	if err != nil {
		return err
	}
	client, err := newVendorClient(c)
	if err != nil {
		return err
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	merger := enrich.NewMerger(store.DocumentRepository(), store.JobRepository(), client, config)

	if jobID := c.String("job"); jobID != "" {
		stats, err := merger.MergeJob(ctx, jobID, c.Bool("force"))
		if stats != nil {
			fmt.Fprintf(os.Stderr, "Processed %d result(s): %d merged, %d failed\n",
				stats.Processed, stats.Merged, stats.Failed)
		}
		if err != nil {
			return fmt.Errorf("merge failed: %w", err)
		}
		return nil
	}

	kindName := c.String("kind")
	if kindName == "" {
		return fmt.Errorf("either --job or --kind is required")
	}
	kind, err := core.ParseKind(kindName)
	if err != nil {
		return err
	}

	stats, err := merger.MergeCompleted(ctx, kind)
	if stats != nil {
		fmt.Fprintf(os.Stderr, "Processed %d result(s): %d merged, %d failed\n",
			stats.Processed, stats.Merged, stats.Failed)
	}
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}
	return nil
}

func runCommand(c *cli.Context) error {
	ctx := context.Background()

	kind, err := core.ParseKind(c.String("kind"))
	if err != nil {
		return err
	}
	config, err := loadConfig(c)
	if err != nil {
		return err
	}
	client, err := newVendorClient(c)
	if err != nil {
		return err
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.NewPipeline(client, config).Run(ctx, kind)
	if summary != nil && summary.Build != nil {
		fmt.Fprintf(os.Stderr, "Built %d job(s), submitted %d\n", len(summary.Build.Jobs), summary.Submitted)
	}
	if summary != nil && summary.Merge != nil {
		fmt.Fprintf(os.Stderr, "Merged %d result(s), %d failed\n", summary.Merge.Merged, summary.Merge.Failed)
	}
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	ctx := context.Background()

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	job, err := store.JobRepository().GetJob(ctx, c.String("job"))
	if err != nil {
		return err
	}
	printJob(job, true)
	return nil
}

func jobsCommand(c *cli.Context) error {
	ctx := context.Background()

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	var (
		jobs []*core.BatchJob
	)
	if c.Bool("active") {
		jobs, err = store.JobRepository().ListActive(ctx)
	} else {
		jobs, err = store.JobRepository().ListJobs(ctx)
	}
	if err != nil {
		return err
	}

	for _, job := range jobs {
		printJob(job, false)
	}
	fmt.Fprintf(os.Stderr, "%d job(s)\n", len(jobs))
	return nil
}

func cancelCommand(c *cli.Context) error {
	ctx := context.Background()

	config, err := loadConfig(c)
	if err != nil {
		return err
	}
	client, err := newVendorClient(c)
	if err != nil {
		return err
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	poller := enrich.NewPoller(store.JobRepository(), client, config)
	if err := poller.Cancel(ctx, c.String("job")); err != nil {
		return fmt.Errorf("cancel failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Cancelled %s\n", c.String("job"))
	return nil
}

func verifyCommand(c *cli.Context) error {
	ctx := context.Background()

	config, err := loadConfig(c)
	if err != nil {
		return err
	}

	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("api-base")),
		ai.WithAPIKey(c.String("api-key")),
		ai.WithEmbeddingModel(config.EmbeddingModel),
		ai.WithSummaryModel(config.SummaryModel),
	)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	embedder, err := aiopenai.NewEmbedder(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	completer, err := aiopenai.NewCompleter(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create completer: %w", err)
	}

	result, err := ai.NewChecker(embedder, completer).Run(ctx)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Embedding model %s OK (%d dimensions)\n",
		config.EmbeddingModel, result.EmbeddingDimensions)
	fmt.Fprintf(os.Stderr, "Summary model %s OK (%q)\n",
		config.SummaryModel, result.CompletionPreview)
	return nil
}

func printJob(job *core.BatchJob, verbose bool) {
	fmt.Printf("%s  %-9s  %-11s  %s  %d requests\n",
		job.Id, job.Kind.String(), job.State.String(), job.CreatedAt.Format(time.RFC3339), job.RequestCount)
	if !verbose {
		return
	}
	fmt.Printf("  model:         %s\n", job.Model)
	fmt.Printf("  artifact:      %s\n", job.ArtifactPath)
	if job.VendorBatchID != "" {
		fmt.Printf("  vendor batch:  %s\n", job.VendorBatchID)
		fmt.Printf("  input file:    %s\n", job.VendorInputFileID)
	}
	if job.VendorOutputFileID != "" {
		fmt.Printf("  output file:   %s\n", job.VendorOutputFileID)
	}
	if job.VendorErrorFileID != "" {
		fmt.Printf("  error file:    %s\n", job.VendorErrorFileID)
	}
	if job.CompletedCount > 0 || job.FailedCount > 0 {
		fmt.Printf("  counts:        %d completed, %d failed\n", job.CompletedCount, job.FailedCount)
	}
	if !job.SubmittedAt.IsZero() {
		fmt.Printf("  submitted:     %s\n", job.SubmittedAt.Format(time.RFC3339))
	}
	if !job.CompletedAt.IsZero() {
		fmt.Printf("  completed:     %s\n", job.CompletedAt.Format(time.RFC3339))
	}
	if !job.MergedAt.IsZero() {
		fmt.Printf("  merged:        %s (%d merged, %d failed)\n",
			job.MergedAt.Format(time.RFC3339), job.MergedCount, job.MergeFailedCount)
	}
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
