// Package runner assembles and drives one retrieval experiment run: it
// builds the stage executors named by the experiment configuration, executes
// the pipeline, and writes the resulting token totals and phase duration back
// onto the experiment record.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/google/uuid"

	"github.com/haasonsaas/ragbench/internal/config"
	"github.com/haasonsaas/ragbench/internal/experiment"
	"github.com/haasonsaas/ragbench/internal/observability"
	"github.com/haasonsaas/ragbench/internal/retry"
	"github.com/haasonsaas/ragbench/internal/stages"
	"github.com/haasonsaas/ragbench/internal/stages/bedrock"
	"github.com/haasonsaas/ragbench/internal/stages/openai"
	"github.com/haasonsaas/ragbench/internal/vectorstore"
)

// Service names an experiment can select for the embed and generate stages.
const (
	ServiceBedrock = "bedrock"
	ServiceOpenAI  = "openai"
)

// LoadExperimentConfig reads an experiment configuration from a JSON file.
func LoadExperimentConfig(path string) (experiment.Config, error) {
	var cfg experiment.Config

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("runner: read experiment config: %w", err)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("runner: parse experiment config: %w", err)
	}

	if cfg.ExperimentID == "" {
		return cfg, fmt.Errorf("runner: experiment_id is required")
	}
	if cfg.IndexID == "" {
		return cfg, fmt.Errorf("runner: index_id is required")
	}
	if cfg.GroundTruthData == "" {
		return cfg, fmt.Errorf("runner: gt_data is required")
	}
	if cfg.KnnNum <= 0 {
		cfg.KnnNum = 5
	}
	if cfg.ExecutionID == "" {
		cfg.ExecutionID = uuid.NewString()
	}
	return cfg, nil
}

// BuildBundle constructs the stage executors for one experiment. The embed
// and generate stages come from the service each names; search always runs
// against OpenSearch; a Bedrock reranker is attached only when the rerank
// model id selects one.
func BuildBundle(ctx context.Context, cfg *config.Config, exp experiment.Config) (stages.Bundle, error) {
	var bundle stages.Bundle

	region := exp.AWSRegion
	if region == "" {
		region = cfg.AWSRegion
	}

	// The Bedrock runtime client is shared across every stage that needs
	// it and only created when one does.
	var runtime *bedrockruntime.Client
	bedrockRuntime := func() (*bedrockruntime.Client, error) {
		if runtime != nil {
			return runtime, nil
		}
		client, err := bedrock.NewRuntimeClient(ctx, bedrock.ClientConfig{Region: region})
		if err != nil {
			return nil, err
		}
		runtime = client
		return runtime, nil
	}

	switch normalizeService(exp.EmbeddingService) {
	case ServiceBedrock:
		client, err := bedrockRuntime()
		if err != nil {
			return bundle, err
		}
		bundle.Embedder = bedrock.NewEmbedder(client, exp.EmbeddingModel, exp.VectorDimension, true)
	case ServiceOpenAI:
		embedder, err := openai.NewEmbedder(cfg.OpenAIAPIKey, exp.EmbeddingModel, false)
		if err != nil {
			return bundle, err
		}
		bundle.Embedder = embedder
	default:
		return bundle, fmt.Errorf("runner: unknown embedding service %q", exp.EmbeddingService)
	}

	searcher, err := vectorstore.New(ctx, vectorstore.Config{
		Host:       cfg.OpenSearchHost,
		Username:   cfg.OpenSearchUsername,
		Password:   cfg.OpenSearchPassword,
		Serverless: cfg.OpenSearchServerless,
		Region:     region,
	})
	if err != nil {
		return bundle, err
	}
	bundle.Searcher = searcher

	switch normalizeService(exp.RetrievalService) {
	case ServiceBedrock:
		client, err := bedrockRuntime()
		if err != nil {
			return bundle, err
		}
		bundle.Generator = bedrock.NewGenerator(client, exp.RetrievalModel, exp.Temperature, retry.ThrottlePolicy())
	case ServiceOpenAI:
		generator, err := openai.NewGenerator(cfg.OpenAIAPIKey, exp.RetrievalModel, exp.Temperature)
		if err != nil {
			return bundle, err
		}
		bundle.Generator = generator
	default:
		return bundle, fmt.Errorf("runner: unknown retrieval service %q", exp.RetrievalService)
	}

	if stages.RerankEnabled(exp.RerankModelID) {
		client, err := bedrockRuntime()
		if err != nil {
			return bundle, err
		}
		bundle.Reranker = bedrock.NewReranker(client, exp.RerankModelID)
	}

	return bundle, nil
}

// normalizeService lowercases a service name, defaulting blank to Bedrock.
func normalizeService(service string) string {
	s := strings.ToLower(strings.TrimSpace(service))
	if s == "" {
		return ServiceBedrock
	}
	return s
}

// pipelineRunner is the pipeline surface the runner drives.
type pipelineRunner interface {
	Execute(ctx context.Context, cfg experiment.Config) (experiment.TokenTotals, error)
}

// experimentUpdater persists run results onto the experiment record.
type experimentUpdater interface {
	Update(ctx context.Context, id string, fields map[string]any) error
}

// Runner executes the retrieval phase of one experiment end to end.
type Runner struct {
	pipeline    pipelineRunner
	experiments experimentUpdater
	logger      *observability.Logger
	now         func() time.Time
}

// New creates a runner over a built pipeline and the experiment store.
func New(pipeline pipelineRunner, experiments experimentUpdater, logger *observability.Logger) *Runner {
	return &Runner{
		pipeline:    pipeline,
		experiments: experiments,
		logger:      logger,
		now:         time.Now,
	}
}

// Run executes the pipeline and records the token totals and the elapsed
// retrieval time on the experiment record. Pipeline setup and flush failures
// propagate without touching the record.
func (r *Runner) Run(ctx context.Context, cfg experiment.Config) (experiment.TokenTotals, error) {
	ctx = observability.AddExecutionID(ctx, cfg.ExecutionID)
	ctx = observability.AddExperimentID(ctx, cfg.ExperimentID)

	start := r.now()
	totals, err := r.pipeline.Execute(ctx, cfg)
	if err != nil {
		return totals, err
	}
	elapsed := int64(r.now().Sub(start) / time.Second)

	fields := map[string]any{
		"retrieval_query_embed_tokens": totals.QueryEmbedTokens,
		"retrieval_input_tokens":       totals.InputTokens,
		"retrieval_output_tokens":      totals.OutputTokens,
		"retrieval_time":               elapsed,
	}
	if err := r.experiments.Update(ctx, cfg.ExperimentID, fields); err != nil {
		return totals, fmt.Errorf("runner: persist run totals: %w", err)
	}

	r.logger.Info(ctx, "retrieval run recorded",
		"retrieval_time_seconds", elapsed,
		"query_embed_tokens", totals.QueryEmbedTokens,
		"input_tokens", totals.InputTokens,
		"output_tokens", totals.OutputTokens,
	)
	return totals, nil
}
