// Package main provides the CLI entry point for the ragbench experiment runner.
//
// ragbench runs the retrieval phase of a RAG experiment and rolls up its cost
// afterwards.
//
// # Basic Usage
//
// Run the retrieval loop for one experiment:
//
//	ragbench retrieve --config experiment.json
//
// Roll up the cost of a finished experiment:
//
//	ragbench costs --experiment-id exp-123
//
// # Environment Variables
//
//   - AWS_REGION: AWS region for Bedrock, DynamoDB, and S3 (default: us-east-1)
//   - OPENSEARCH_HOST: OpenSearch endpoint for the vector index
//   - OPENSEARCH_USERNAME / OPENSEARCH_PASSWORD: OpenSearch credentials
//   - EXPERIMENT_TABLE: DynamoDB table holding experiment records
//   - EXPERIMENT_QUESTION_METRICS_TABLE: DynamoDB table for question metrics
//   - EXPERIMENT_QUESTION_METRICS_INDEX: optional GSI keyed by experiment_id
//   - INFERENCE_SYSTEM_PROMPT: system prompt for the generation stage
//   - OPENAI_API_KEY: enables the OpenAI stage backends
//   - PRICING_PATH: YAML pricing table for the cost model (default: pricing.yaml)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := buildRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ragbench",
		Short: "ragbench - RAG experiment runner",
		Long: `ragbench executes the retrieval phase of a RAG experiment (embed, search,
rerank, generate per question) with batched metrics persistence, then rolls
the recorded token totals and phase durations up into a cost breakdown.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildRetrieveCmd(),
		buildCostsCmd(),
	)

	return rootCmd
}
