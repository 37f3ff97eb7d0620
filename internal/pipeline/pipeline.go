// Package pipeline runs the per-question retrieval loop of an experiment:
// embed, search, optionally rerank, generate, and record metrics, with
// batched persistence and per-question failure isolation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/ragbench/internal/experiment"
	"github.com/haasonsaas/ragbench/internal/observability"
	"github.com/haasonsaas/ragbench/internal/stages"
)

// BatchSize is the number of buffered metrics records that triggers a flush.
// It matches the metrics store's batch-write limit; the exact value bounds
// memory and write amplification and is not a protocol requirement.
const BatchSize = 25

// GroundTruth loads the ordered question set for an experiment.
type GroundTruth interface {
	Load(ctx context.Context, uri string) ([]experiment.Question, error)
}

// MetricsWriter persists a batch of question metrics records.
type MetricsWriter interface {
	BatchWrite(ctx context.Context, records []experiment.QuestionMetrics) error
}

// Pipeline orchestrates the per-question stage sequence for one experiment.
type Pipeline struct {
	bundle       stages.Bundle
	groundTruth  GroundTruth
	writer       MetricsWriter
	systemPrompt string
	logger       *observability.Logger
	metrics      *observability.Metrics
}

// New creates a pipeline. Reranking is skipped when bundle.Reranker is nil
// or the experiment's rerank model resolves to the disabled sentinel.
func New(bundle stages.Bundle, groundTruth GroundTruth, writer MetricsWriter, systemPrompt string, logger *observability.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		bundle:       bundle,
		groundTruth:  groundTruth,
		writer:       writer,
		systemPrompt: systemPrompt,
		logger:       logger,
		metrics:      metrics,
	}
}

// questionResult carries the outcome of one question through to metrics
// recording. Token counts are zero unless every stage succeeded.
type questionResult struct {
	answer            string
	referenceContexts []string
	queryMetadata     map[string]string
	answerMetadata    map[string]string
	queryEmbedTokens  int64
	inputTokens       int64
	outputTokens      int64
}

// Execute runs the full per-question loop and returns the accumulated token
// totals. It fails only on setup errors (unreachable ground truth, missing
// stage executors) and on metrics-store flush failures; individual question
// failures are isolated, logged, and recorded as empty-result metrics.
// Persisting the returned totals onto the experiment record is the caller's
// responsibility.
func (p *Pipeline) Execute(ctx context.Context, cfg experiment.Config) (experiment.TokenTotals, error) {
	var totals experiment.TokenTotals

	if p.bundle.Embedder == nil || p.bundle.Searcher == nil || p.bundle.Generator == nil {
		return totals, fmt.Errorf("pipeline: embed, search, and generate stages are all required")
	}

	questions, err := p.groundTruth.Load(ctx, cfg.GroundTruthData)
	if err != nil {
		return totals, fmt.Errorf("pipeline: load ground truth: %w", err)
	}
	p.logger.Info(ctx, "processing ground truth questions", "count", len(questions))

	batch := make([]experiment.QuestionMetrics, 0, BatchSize)
	for idx, question := range questions {
		result, err := p.processQuestion(ctx, cfg, question)
		if err != nil {
			// Per-question isolation: a failed question still yields
			// a metrics record with empty fields and zero tokens.
			p.logger.Error(ctx, "question processing failed", "index", idx+1, "error", err)
			p.metrics.QuestionCounter.WithLabelValues("error").Inc()
			result = &questionResult{
				referenceContexts: []string{},
				queryMetadata:     map[string]string{},
				answerMetadata:    map[string]string{},
			}
		} else {
			p.metrics.QuestionCounter.WithLabelValues("success").Inc()
			totals.Add(result.queryEmbedTokens, result.inputTokens, result.outputTokens)
			p.metrics.TokensUsed.WithLabelValues("query_embed").Add(float64(result.queryEmbedTokens))
			p.metrics.TokensUsed.WithLabelValues("input").Add(float64(result.inputTokens))
			p.metrics.TokensUsed.WithLabelValues("output").Add(float64(result.outputTokens))
		}

		batch = append(batch, experiment.QuestionMetrics{
			ID:                uuid.NewString(),
			ExecutionID:       cfg.ExecutionID,
			ExperimentID:      cfg.ExperimentID,
			Question:          question.Question,
			GTAnswer:          question.Answer,
			GeneratedAnswer:   result.answer,
			ReferenceContexts: result.referenceContexts,
			QueryMetadata:     result.queryMetadata,
			AnswerMetadata:    result.answerMetadata,
			CreatedAt:         time.Now().UTC(),
		})

		if len(batch) >= BatchSize {
			if err := p.flush(ctx, batch); err != nil {
				return totals, err
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := p.flush(ctx, batch); err != nil {
			return totals, err
		}
	}

	p.logger.Info(ctx, "retrieval loop completed",
		"questions", len(questions),
		"query_embed_tokens", totals.QueryEmbedTokens,
		"input_tokens", totals.InputTokens,
		"output_tokens", totals.OutputTokens,
	)
	return totals, nil
}

// processQuestion runs the four stages in order for one question.
func (p *Pipeline) processQuestion(ctx context.Context, cfg experiment.Config, question experiment.Question) (*questionResult, error) {
	embedding, err := p.timedEmbed(ctx, question.Question)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	chunks, err := p.timedSearch(ctx, cfg.IndexID, embedding.Vector, cfg.KnnNum)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	if stages.RerankEnabled(cfg.RerankModelID) && p.bundle.Reranker != nil {
		chunks, err = p.timedRerank(ctx, question.Question, chunks)
		if err != nil {
			return nil, fmt.Errorf("rerank: %w", err)
		}
	}

	answer, err := p.timedGenerate(ctx, question.Question, chunks)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	return &questionResult{
		answer:            answer.Text,
		referenceContexts: stages.ReferenceContexts(chunks),
		queryMetadata: map[string]string{
			"inputTokens": fmt.Sprintf("%d", embedding.InputTokens),
		},
		answerMetadata: map[string]string{
			"inputTokens":  fmt.Sprintf("%d", answer.InputTokens),
			"outputTokens": fmt.Sprintf("%d", answer.OutputTokens),
		},
		queryEmbedTokens: embedding.InputTokens,
		inputTokens:      answer.InputTokens,
		outputTokens:     answer.OutputTokens,
	}, nil
}

func (p *Pipeline) flush(ctx context.Context, batch []experiment.QuestionMetrics) error {
	p.logger.Info(ctx, "flushing metrics batch", "size", len(batch))
	if err := p.writer.BatchWrite(ctx, batch); err != nil {
		p.metrics.BatchFlushCounter.WithLabelValues("error").Inc()
		return fmt.Errorf("pipeline: flush metrics batch of %d: %w", len(batch), err)
	}
	p.metrics.BatchFlushCounter.WithLabelValues("success").Inc()
	return nil
}

func (p *Pipeline) timedEmbed(ctx context.Context, text string) (*stages.Embedding, error) {
	start := time.Now()
	defer p.observeStage("embed", start)
	return p.bundle.Embedder.EmbedText(ctx, text)
}

func (p *Pipeline) timedSearch(ctx context.Context, indexID string, vector []float32, k int) ([]stages.RetrievedChunk, error) {
	start := time.Now()
	defer p.observeStage("search", start)
	return p.bundle.Searcher.Search(ctx, indexID, vector, k)
}

func (p *Pipeline) timedRerank(ctx context.Context, query string, chunks []stages.RetrievedChunk) ([]stages.RetrievedChunk, error) {
	start := time.Now()
	defer p.observeStage("rerank", start)
	return p.bundle.Reranker.RerankDocuments(ctx, query, chunks)
}

func (p *Pipeline) timedGenerate(ctx context.Context, query string, chunks []stages.RetrievedChunk) (*stages.Answer, error) {
	start := time.Now()
	defer p.observeStage("generate", start)
	return p.bundle.Generator.GenerateText(ctx, query, chunks, p.systemPrompt)
}

func (p *Pipeline) observeStage(stage string, start time.Time) {
	p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
