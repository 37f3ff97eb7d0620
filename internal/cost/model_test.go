package cost

import (
	"testing"

	"github.com/haasonsaas/ragbench/internal/experiment"
)

func testTable() *Table {
	return &Table{
		Models: map[string]ModelPrice{
			"amazon.titan-embed-text-v2:0": {InputPerMillion: 0.02},
			"anthropic.claude-3-sonnet-20240229-v1:0": {
				InputPerMillion:  3.0,
				OutputPerMillion: 15.0,
			},
			"mistral.mixtral-8x7b-instruct-v0:1": {
				InputPerMillion:  0.5,
				OutputPerMillion: 0.25,
			},
		},
		Infra: InfraPrice{HourlyRate: 60},
	}
}

func testModelIDs() ModelIDs {
	return ModelIDs{
		EmbeddingModel: "amazon.titan-embed-text-v2:0",
		RetrievalModel: "anthropic.claude-3-sonnet-20240229-v1:0",
		EvalModel:      "mistral.mixtral-8x7b-instruct-v0:1",
	}
}

func TestMinutesCeil(t *testing.T) {
	tests := []struct {
		seconds int64
		want    int64
	}{
		{0, 0},
		{-5, 0},
		{1, 1},
		{59, 1},
		{60, 1},
		{61, 2},
		{125, 3},
	}
	for _, tt := range tests {
		if got := MinutesCeil(tt.seconds); got != tt.want {
			t.Errorf("MinutesCeil(%d) = %d, want %d", tt.seconds, got, tt.want)
		}
	}
}

func TestTotalMinutesRoundsIndependently(t *testing.T) {
	d := StageDurations{IndexingSeconds: 65, RetrievalSeconds: 65, EvalSeconds: 65}
	// 2+2+2, not ceil(195/60)=4.
	if got := d.TotalMinutes(); got != 6 {
		t.Errorf("TotalMinutes = %d, want 6", got)
	}
	if got := d.TotalSeconds(); got != 195 {
		t.Errorf("TotalSeconds = %d, want 195", got)
	}
}

func TestComputeBreakdownOverallIsExactSum(t *testing.T) {
	model := NewModel(testTable())

	cases := []struct {
		name      string
		tokens    TokenCounts
		durations StageDurations
	}{
		{"typical", TokenCounts{IndexEmbedTokens: 123457, QueryEmbedTokens: 4321, InputTokens: 98765, OutputTokens: 54321}, StageDurations{IndexingSeconds: 301, RetrievalSeconds: 125, EvalSeconds: 59}},
		{"zeros", TokenCounts{}, StageDurations{}},
		{"awkward floats", TokenCounts{IndexEmbedTokens: 1, QueryEmbedTokens: 3, InputTokens: 7, OutputTokens: 11}, StageDurations{IndexingSeconds: 1, RetrievalSeconds: 1, EvalSeconds: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := model.ComputeBreakdown(testModelIDs(), tc.tokens, tc.durations, nil)
			sum := result.Indexing.TotalCost() +
				result.Retrieval.TotalCost() +
				result.Inference.TotalCost() +
				result.Eval.TotalCost()
			if result.Overall.TotalCost() != sum {
				t.Errorf("overall = %v, sum of stages = %v", result.Overall.TotalCost(), sum)
			}
		})
	}
}

func TestComputeBreakdownTokenCosts(t *testing.T) {
	model := NewModel(testTable())
	tokens := TokenCounts{
		IndexEmbedTokens: 2_000_000,
		QueryEmbedTokens: 1_000_000,
		InputTokens:      1_000_000,
		OutputTokens:     2_000_000,
	}
	result := model.ComputeBreakdown(testModelIDs(), tokens, StageDurations{}, nil)

	if got := result.Indexing.TotalCost(); got != 0.04 {
		t.Errorf("indexing = %v, want 0.04", got)
	}
	if got := result.Retrieval.TotalCost(); got != 0.02 {
		t.Errorf("retrieval = %v, want 0.02", got)
	}
	// 1M input at $3/M + 2M output at $15/M.
	if got := result.Inference.TotalCost(); got != 33.0 {
		t.Errorf("inference = %v, want 33.0", got)
	}
}

func TestComputeBreakdownTimeCosts(t *testing.T) {
	model := NewModel(testTable())
	durations := StageDurations{IndexingSeconds: 125, RetrievalSeconds: 60, EvalSeconds: 0}
	result := model.ComputeBreakdown(testModelIDs(), TokenCounts{}, durations, nil)

	// ceil(125/60)=3 minutes at $60/h.
	if got := result.Indexing.TotalCost(); got != 3.0 {
		t.Errorf("indexing time cost = %v, want 3.0", got)
	}
	if got := result.Indexing["minutes"]; got != int64(3) {
		t.Errorf("indexing minutes = %v, want 3", got)
	}
	if got := result.Eval.TotalCost(); got != 0.0 {
		t.Errorf("eval = %v, want 0", got)
	}
}

func TestComputeBreakdownEvalPerQuestion(t *testing.T) {
	model := NewModel(testTable())
	metrics := []experiment.QuestionMetrics{
		{AnswerMetadata: map[string]string{EvalInputTokensKey: "1000000", EvalOutputTokensKey: "0"}},
		{AnswerMetadata: map[string]string{EvalInputTokensKey: "1000000", EvalOutputTokensKey: "1000000"}},
		{AnswerMetadata: map[string]string{}},
		{AnswerMetadata: map[string]string{EvalInputTokensKey: "garbage"}},
	}
	result := model.ComputeBreakdown(testModelIDs(), TokenCounts{}, StageDurations{}, metrics)

	// 2M input at $0.5/M + 1M output at $0.25/M.
	if got := result.Eval.TotalCost(); got != 1.25 {
		t.Errorf("eval = %v, want 1.25", got)
	}
	if got := result.Eval["questions"]; got != 4 {
		t.Errorf("questions = %v, want 4", got)
	}
}

func TestUnknownModels(t *testing.T) {
	model := NewModel(testTable())

	unknown := model.UnknownModels(testModelIDs())
	if len(unknown) != 0 {
		t.Errorf("unknown = %v, want none for fully priced ids", unknown)
	}

	unknown = model.UnknownModels(ModelIDs{
		EmbeddingModel: "amazon.titan-embed-text-v2:0",
		RetrievalModel: "unpriced-model",
	})
	if len(unknown) != 1 || unknown[0] != "unpriced-model" {
		t.Errorf("unknown = %v, want [unpriced-model]", unknown)
	}
}

func TestComputeBreakdownUnknownModelPricesZero(t *testing.T) {
	model := NewModel(testTable())
	tokens := TokenCounts{IndexEmbedTokens: 5_000_000, InputTokens: 5_000_000, OutputTokens: 5_000_000}
	result := model.ComputeBreakdown(ModelIDs{EmbeddingModel: "unknown", RetrievalModel: "unknown"}, tokens, StageDurations{}, nil)
	if got := result.Overall.TotalCost(); got != 0.0 {
		t.Errorf("overall = %v, want 0 for unknown models", got)
	}
}
