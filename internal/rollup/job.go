// Package rollup computes and persists the cost breakdown for a completed
// experiment. It is invoked after the retrieval pipeline has written its
// token totals and phase durations onto the experiment record.
package rollup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/haasonsaas/ragbench/internal/config"
	"github.com/haasonsaas/ragbench/internal/cost"
	"github.com/haasonsaas/ragbench/internal/experiment"
	"github.com/haasonsaas/ragbench/internal/observability"
)

// CheckEnvironment verifies the store configuration the job depends on.
// Failures come back as EnvironmentError so callers report them as a broken
// deployment rather than a bad request.
func CheckEnvironment(cfg *config.Config) error {
	if err := cfg.ValidateStores(); err != nil {
		return &EnvironmentError{Msg: err.Error()}
	}
	return nil
}

// ValidationError reports a bad request from the caller. It maps to a 400
// response.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// EnvironmentError reports missing runtime configuration, distinct from a
// caller mistake. It maps to a 500 response.
type EnvironmentError struct {
	Msg string
}

func (e *EnvironmentError) Error() string { return e.Msg }

// Response is the handler-style result of one rollup run. Body is a JSON
// document: on success {"total_cost", "dynamodb_update_count"}, on failure
// {"error"}.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// experimentStore is the experiment-table surface the job needs.
type experimentStore interface {
	Get(ctx context.Context, id string) (*experiment.Record, bool, error)
	Update(ctx context.Context, id string, fields map[string]any) error
}

// metricsQuerier fetches the per-question metrics for one experiment.
type metricsQuerier interface {
	QueryByExperiment(ctx context.Context, experimentID string) ([]experiment.QuestionMetrics, error)
}

// Job rolls up the cost of one experiment and writes it back to the
// experiment record.
type Job struct {
	experiments experimentStore
	metrics     metricsQuerier
	model       *cost.Model
	logger      *observability.Logger
}

// NewJob wires a rollup job over the experiment and metrics stores.
func NewJob(experiments experimentStore, metrics metricsQuerier, model *cost.Model, logger *observability.Logger) *Job {
	return &Job{experiments: experiments, metrics: metrics, model: model, logger: logger}
}

// Run computes the cost breakdown for experimentID, persists it, and reports
// the outcome as an HTTP-shaped response.
//
// A missing experiment is not an error: the run succeeds with a zero total
// and no update, and the gap is logged as a warning. Store failures and
// configuration problems map to 500, caller mistakes to 400.
func (j *Job) Run(ctx context.Context, experimentID string) Response {
	ctx = observability.AddExperimentID(ctx, experimentID)

	total, updates, err := j.run(ctx, experimentID)
	if err != nil {
		j.logger.Error(ctx, "cost rollup failed", "error", err)
		return errorResponse(err)
	}

	body, err := json.Marshal(successBody{
		TotalCost:   total.String(),
		UpdateCount: updates,
	})
	if err != nil {
		return errorResponse(fmt.Errorf("rollup: encode response: %w", err))
	}
	return Response{StatusCode: http.StatusOK, Body: string(body)}
}

type successBody struct {
	TotalCost   string `json:"total_cost"`
	UpdateCount int    `json:"dynamodb_update_count"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (j *Job) run(ctx context.Context, experimentID string) (decimal.Decimal, int, error) {
	if experimentID == "" {
		return decimal.Zero, 0, &ValidationError{Msg: "experiment id is required"}
	}

	record, found, err := j.experiments.Get(ctx, experimentID)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("rollup: load experiment: %w", err)
	}
	if !found {
		j.logger.Warn(ctx, "experiment not found, reporting zero cost")
		return decimal.Zero, 0, nil
	}

	questionMetrics, err := j.metrics.QueryByExperiment(ctx, experimentID)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("rollup: load question metrics: %w", err)
	}

	models := cost.ModelIDs{
		EmbeddingModel: record.EmbeddingModel,
		RetrievalModel: record.RetrievalModel,
		EvalModel:      record.EvalModel,
	}
	if unknown := j.model.UnknownModels(models); len(unknown) > 0 {
		j.logger.Warn(ctx, "models missing from pricing table, priced at zero",
			"models", strings.Join(unknown, ","),
		)
	}

	durations := cost.StageDurations{
		IndexingSeconds:  record.IndexingTimeSeconds,
		RetrievalSeconds: record.RetrievalTimeSeconds,
		EvalSeconds:      record.EvalTimeSeconds,
	}
	result := j.model.ComputeBreakdown(
		models,
		cost.TokenCounts{
			IndexEmbedTokens: record.IndexEmbedTokens,
			QueryEmbedTokens: record.RetrievalQueryEmbedTokens,
			InputTokens:      record.RetrievalInputTokens,
			OutputTokens:     record.RetrievalOutputTokens,
		},
		durations,
		questionMetrics,
	)

	if err := j.experiments.Update(ctx, experimentID, updateFields(result, durations)); err != nil {
		return decimal.Zero, 0, fmt.Errorf("rollup: persist breakdown: %w", err)
	}

	total := cost.FloatToDecimal(result.Overall.TotalCost())
	j.logger.Info(ctx, "cost rollup complete",
		"total_cost", total.String(),
		"questions", len(questionMetrics),
	)
	return total, 1, nil
}

// updateFields flattens the breakdown and phase durations into
// experiment-record fields. Every float goes through the decimal conversion
// so DynamoDB receives exact numbers.
func updateFields(result cost.Result, durations cost.StageDurations) map[string]any {
	return map[string]any{
		"cost":               cost.FloatToDecimal(result.Overall.TotalCost()),
		"indexing_cost":      cost.FloatToDecimal(result.Indexing.TotalCost()),
		"retrieval_cost":     cost.FloatToDecimal(result.Retrieval.TotalCost()),
		"inference_cost":     cost.FloatToDecimal(result.Inference.TotalCost()),
		"eval_cost":          cost.FloatToDecimal(result.Eval.TotalCost()),
		"indexing_time":      durations.IndexingSeconds,
		"retrieval_time":     durations.RetrievalSeconds,
		"eval_time":          durations.EvalSeconds,
		"total_time":         durations.TotalSeconds(),
		"cost_metadata":      cost.ConvertFloats(map[string]any(result.Overall)),
		"indexing_metadata":  cost.ConvertFloats(map[string]any(result.Indexing)),
		"retrieval_metadata": cost.ConvertFloats(map[string]any(result.Retrieval)),
		"inference_metadata": cost.ConvertFloats(map[string]any(result.Inference)),
		"eval_metadata":      cost.ConvertFloats(map[string]any(result.Eval)),
	}
}

// internalErrorMessage is the only detail a caller sees for a non-validation
// failure; the underlying error is logged, never returned.
const internalErrorMessage = "Internal server error"

func errorResponse(err error) Response {
	status := http.StatusInternalServerError
	msg := internalErrorMessage

	var verr *ValidationError
	var envErr *EnvironmentError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		msg = verr.Error()
	case errors.As(err, &envErr):
		msg = envErr.Error()
	}

	body, marshalErr := json.Marshal(errorBody{Error: msg})
	if marshalErr != nil {
		body = []byte(`{"error":"` + internalErrorMessage + `"}`)
	}
	return Response{StatusCode: status, Body: string(body)}
}
