package rollup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/haasonsaas/ragbench/internal/config"
	"github.com/haasonsaas/ragbench/internal/cost"
	"github.com/haasonsaas/ragbench/internal/experiment"
	"github.com/haasonsaas/ragbench/internal/observability"
)

type fakeExperiments struct {
	record  *experiment.Record
	getErr  error
	updates []map[string]any
	updErr  error
}

func (f *fakeExperiments) Get(ctx context.Context, id string) (*experiment.Record, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	if f.record == nil {
		return nil, false, nil
	}
	return f.record, true, nil
}

func (f *fakeExperiments) Update(ctx context.Context, id string, fields map[string]any) error {
	if f.updErr != nil {
		return f.updErr
	}
	f.updates = append(f.updates, fields)
	return nil
}

type fakeMetrics struct {
	records []experiment.QuestionMetrics
	err     error
}

func (f *fakeMetrics) QueryByExperiment(ctx context.Context, experimentID string) ([]experiment.QuestionMetrics, error) {
	return f.records, f.err
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{Level: "error", Output: io.Discard})
}

func testModel() *cost.Model {
	return cost.NewModel(&cost.Table{
		Models: map[string]cost.ModelPrice{
			"embed-model": {InputPerMillion: 1.0},
			"gen-model":   {InputPerMillion: 2.0, OutputPerMillion: 4.0},
		},
		Infra: cost.InfraPrice{HourlyRate: 60},
	})
}

func testRecord() *experiment.Record {
	return &experiment.Record{
		ID:                        "exp-1",
		IndexEmbedTokens:          1_000_000,
		RetrievalQueryEmbedTokens: 500_000,
		RetrievalInputTokens:      1_000_000,
		RetrievalOutputTokens:     500_000,
		IndexingTimeSeconds:       120,
		RetrievalTimeSeconds:      60,
		EmbeddingModel:            "embed-model",
		RetrievalModel:            "gen-model",
	}
}

func TestRunPersistsBreakdown(t *testing.T) {
	experiments := &fakeExperiments{record: testRecord()}
	job := NewJob(experiments, &fakeMetrics{}, testModel(), testLogger())

	resp := job.Run(context.Background(), "exp-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, resp.Body)
	}
	if len(experiments.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(experiments.updates))
	}

	var body struct {
		TotalCost   string `json:"total_cost"`
		UpdateCount int    `json:"dynamodb_update_count"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.UpdateCount != 1 {
		t.Errorf("dynamodb_update_count = %d, want 1", body.UpdateCount)
	}

	// indexing: 1M tokens at $1/M + 2 min at $60/h = 3
	// retrieval: 0.5M tokens at $1/M + 1 min at $60/h = 1.5
	// inference: 1M at $2/M + 0.5M at $4/M = 4
	total, err := decimal.NewFromString(body.TotalCost)
	if err != nil {
		t.Fatalf("total_cost %q: %v", body.TotalCost, err)
	}
	if want := decimal.RequireFromString("8.5"); !total.Equal(want) {
		t.Errorf("total_cost = %s, want %s", total, want)
	}

	fields := experiments.updates[0]
	for _, key := range []string{
		"cost", "indexing_cost", "retrieval_cost", "inference_cost", "eval_cost",
		"indexing_time", "retrieval_time", "eval_time", "total_time",
		"cost_metadata", "indexing_metadata", "retrieval_metadata", "inference_metadata", "eval_metadata",
	} {
		if _, ok := fields[key]; !ok {
			t.Errorf("update missing field %q", key)
		}
	}
	if d, ok := fields["cost"].(decimal.Decimal); !ok || !d.Equal(total) {
		t.Errorf("cost field = %v (%T), want decimal %s", fields["cost"], fields["cost"], total)
	}
}

func TestRunPersistsDurations(t *testing.T) {
	experiments := &fakeExperiments{record: testRecord()}
	job := NewJob(experiments, &fakeMetrics{}, testModel(), testLogger())

	resp := job.Run(context.Background(), "exp-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, resp.Body)
	}

	fields := experiments.updates[0]
	durations := map[string]int64{
		"indexing_time":  120,
		"retrieval_time": 60,
		"eval_time":      0,
		"total_time":     180,
	}
	for key, want := range durations {
		if got := fields[key]; got != want {
			t.Errorf("%s = %v (%T), want %d", key, got, got, want)
		}
	}
}

func TestRunConvertsMetadataFloats(t *testing.T) {
	experiments := &fakeExperiments{record: testRecord()}
	job := NewJob(experiments, &fakeMetrics{}, testModel(), testLogger())

	resp := job.Run(context.Background(), "exp-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	metadata, ok := experiments.updates[0]["indexing_metadata"].(map[string]any)
	if !ok {
		t.Fatalf("indexing_metadata = %T, want map", experiments.updates[0]["indexing_metadata"])
	}
	if _, ok := metadata["total_cost"].(decimal.Decimal); !ok {
		t.Errorf("total_cost = %T, want decimal after conversion", metadata["total_cost"])
	}
	if _, ok := metadata["minutes"].(int64); !ok {
		t.Errorf("minutes = %T, want untouched int64", metadata["minutes"])
	}
}

func TestRunMissingExperimentReportsZeroCost(t *testing.T) {
	experiments := &fakeExperiments{}
	job := NewJob(experiments, &fakeMetrics{}, testModel(), testLogger())

	resp := job.Run(context.Background(), "nope")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 for missing experiment", resp.StatusCode)
	}

	var body struct {
		TotalCost   string `json:"total_cost"`
		UpdateCount int    `json:"dynamodb_update_count"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.TotalCost != "0" {
		t.Errorf("total_cost = %q, want \"0\"", body.TotalCost)
	}
	if body.UpdateCount != 0 {
		t.Errorf("dynamodb_update_count = %d, want 0", body.UpdateCount)
	}
	if len(experiments.updates) != 0 {
		t.Errorf("updates = %d, want none", len(experiments.updates))
	}
}

func TestRunEmptyIDIsValidationError(t *testing.T) {
	job := NewJob(&fakeExperiments{}, &fakeMetrics{}, testModel(), testLogger())

	resp := job.Run(context.Background(), "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if !strings.Contains(resp.Body, "experiment id is required") {
		t.Errorf("body = %s", resp.Body)
	}
}

func TestRunStoreFailuresAreInternalErrors(t *testing.T) {
	tests := []struct {
		name        string
		experiments *fakeExperiments
		metrics     *fakeMetrics
	}{
		{"get fails", &fakeExperiments{getErr: errors.New("dynamo down")}, &fakeMetrics{}},
		{"query fails", &fakeExperiments{record: testRecord()}, &fakeMetrics{err: errors.New("gsi gone")}},
		{"update fails", &fakeExperiments{record: testRecord(), updErr: errors.New("throttled")}, &fakeMetrics{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewJob(tt.experiments, tt.metrics, testModel(), testLogger())
			resp := job.Run(context.Background(), "exp-1")
			if resp.StatusCode != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", resp.StatusCode)
			}
			var body struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error != "Internal server error" {
				t.Errorf("error body = %q, want generic message", body.Error)
			}
		})
	}
}

func TestRunDoesNotLeakStoreErrors(t *testing.T) {
	experiments := &fakeExperiments{getErr: errors.New("dynamo down: table arn:aws:dynamodb:us-east-1:123456789012")}
	job := NewJob(experiments, &fakeMetrics{}, testModel(), testLogger())

	resp := job.Run(context.Background(), "exp-1")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if strings.Contains(resp.Body, "dynamo") || strings.Contains(resp.Body, "arn:") {
		t.Errorf("body leaks internal error detail: %s", resp.Body)
	}
}

func TestRunWarnsOnUnpricedModels(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.LogConfig{Level: "warn", Output: &buf})

	record := testRecord()
	record.RetrievalModel = "unpriced-model"
	job := NewJob(&fakeExperiments{record: record}, &fakeMetrics{}, testModel(), logger)

	resp := job.Run(context.Background(), "exp-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, resp.Body)
	}
	if !strings.Contains(buf.String(), "unpriced-model") {
		t.Errorf("log output missing unpriced model warning: %s", buf.String())
	}
}

func TestRunEvalTokensFromQuestionMetadata(t *testing.T) {
	record := testRecord()
	record.IndexEmbedTokens = 0
	record.RetrievalQueryEmbedTokens = 0
	record.RetrievalInputTokens = 0
	record.RetrievalOutputTokens = 0
	record.IndexingTimeSeconds = 0
	record.RetrievalTimeSeconds = 0
	record.EvalModel = "gen-model"

	metrics := &fakeMetrics{records: []experiment.QuestionMetrics{
		{AnswerMetadata: map[string]string{
			cost.EvalInputTokensKey:  "1000000",
			cost.EvalOutputTokensKey: "500000",
		}},
	}}
	experiments := &fakeExperiments{record: record}
	job := NewJob(experiments, metrics, testModel(), testLogger())

	resp := job.Run(context.Background(), "exp-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, resp.Body)
	}

	// 1M eval input at $2/M + 0.5M eval output at $4/M.
	var body struct {
		TotalCost string `json:"total_cost"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.TotalCost != "4" {
		t.Errorf("total_cost = %q, want \"4\"", body.TotalCost)
	}
}

func TestCheckEnvironment(t *testing.T) {
	cfg := &config.Config{ExperimentTable: "experiments", QuestionMetricsTable: "metrics"}
	if err := CheckEnvironment(cfg); err != nil {
		t.Fatalf("CheckEnvironment = %v, want nil", err)
	}

	err := CheckEnvironment(&config.Config{})
	var envErr *EnvironmentError
	if !errors.As(err, &envErr) {
		t.Fatalf("CheckEnvironment = %v, want EnvironmentError", err)
	}
}
