package cost

import (
	"strconv"

	"github.com/haasonsaas/ragbench/internal/experiment"
)

const (
	million         = 1_000_000
	secondsInMinute = 60
	minutesInHour   = 60
)

// Metadata keys carrying evaluation-stage token counts on a question
// metrics record.
const (
	EvalInputTokensKey  = "evalInputTokens"
	EvalOutputTokensKey = "evalOutputTokens"
)

// TokenCounts aggregates the token totals priced by the model.
type TokenCounts struct {
	IndexEmbedTokens int64
	QueryEmbedTokens int64
	InputTokens      int64
	OutputTokens     int64
}

// StageDurations holds the elapsed seconds of each experiment phase.
type StageDurations struct {
	IndexingSeconds  int64
	RetrievalSeconds int64
	EvalSeconds      int64
}

// TotalSeconds is the plain sum of the three phase durations.
func (d StageDurations) TotalSeconds() int64 {
	return d.IndexingSeconds + d.RetrievalSeconds + d.EvalSeconds
}

// TotalMinutes sums the independently ceiling-rounded per-phase minutes.
// This matches how per-stage durations are reported elsewhere in the system
// and can overstate the total by up to two minutes; that is the documented
// reporting behavior, not a rounding bug to fix here.
func (d StageDurations) TotalMinutes() int64 {
	return MinutesCeil(d.IndexingSeconds) + MinutesCeil(d.RetrievalSeconds) + MinutesCeil(d.EvalSeconds)
}

// MinutesCeil converts seconds to minutes, rounding up.
func MinutesCeil(seconds int64) int64 {
	if seconds <= 0 {
		return 0
	}
	return (seconds + secondsInMinute - 1) / secondsInMinute
}

// Breakdown is the priced result for one stage. Values are plain floats and
// ints; ConvertFloats turns the floats into decimals before persistence.
type Breakdown map[string]any

// TotalCost reads the stage total out of a breakdown.
func (b Breakdown) TotalCost() float64 {
	if v, ok := b["total_cost"].(float64); ok {
		return v
	}
	return 0
}

// Result carries the five breakdowns produced for one experiment.
type Result struct {
	Overall   Breakdown
	Indexing  Breakdown
	Retrieval Breakdown
	Inference Breakdown
	Eval      Breakdown
}

// ModelIDs names the models whose rates price each stage.
type ModelIDs struct {
	EmbeddingModel string
	RetrievalModel string
	EvalModel      string
}

// Model prices experiment stages from a pricing table.
type Model struct {
	pricing *Table
}

// NewModel creates a cost model over a pricing table.
func NewModel(pricing *Table) *Model {
	return &Model{pricing: pricing}
}

// UnknownModels returns the ids among models that have no pricing entry and
// will therefore price at zero. Blank ids are skipped.
func (m *Model) UnknownModels(models ModelIDs) []string {
	var unknown []string
	for _, id := range []string{models.EmbeddingModel, models.RetrievalModel, models.EvalModel} {
		if id == "" {
			continue
		}
		if _, ok := m.pricing.ModelPrice(id); !ok {
			unknown = append(unknown, id)
		}
	}
	return unknown
}

// ComputeBreakdown prices the four experiment stages and the overall total.
//
// Each stage cost is its token cost (tokens x the model's per-million rate)
// plus its time cost (ceiling-rounded minutes converted to hours x the
// infra hourly rate). The overall total is the exact sum of the four stage
// totals, never an independent computation.
func (m *Model) ComputeBreakdown(models ModelIDs, tokens TokenCounts, durations StageDurations, questionMetrics []experiment.QuestionMetrics) Result {
	embedPrice, _ := m.pricing.ModelPrice(models.EmbeddingModel)
	genPrice, _ := m.pricing.ModelPrice(models.RetrievalModel)
	evalPrice, _ := m.pricing.ModelPrice(models.EvalModel)

	indexing := m.stageBreakdown(
		tokenCost(tokens.IndexEmbedTokens, embedPrice.InputPerMillion),
		durations.IndexingSeconds,
	)
	retrieval := m.stageBreakdown(
		tokenCost(tokens.QueryEmbedTokens, embedPrice.InputPerMillion),
		durations.RetrievalSeconds,
	)
	inference := m.stageBreakdown(
		tokenCost(tokens.InputTokens, genPrice.InputPerMillion)+
			tokenCost(tokens.OutputTokens, genPrice.OutputPerMillion),
		0,
	)

	evalInput, evalOutput := evalTokens(questionMetrics)
	eval := m.stageBreakdown(
		tokenCost(evalInput, evalPrice.InputPerMillion)+
			tokenCost(evalOutput, evalPrice.OutputPerMillion),
		durations.EvalSeconds,
	)
	eval["questions"] = len(questionMetrics)

	total := indexing.TotalCost() + retrieval.TotalCost() + inference.TotalCost() + eval.TotalCost()
	overall := Breakdown{
		"total_cost":    total,
		"total_seconds": durations.TotalSeconds(),
		"total_minutes": durations.TotalMinutes(),
	}

	return Result{
		Overall:   overall,
		Indexing:  indexing,
		Retrieval: retrieval,
		Inference: inference,
		Eval:      eval,
	}
}

// stageBreakdown assembles one stage's cost from its token cost and the
// phase duration in seconds.
func (m *Model) stageBreakdown(tokenCost float64, seconds int64) Breakdown {
	minutes := MinutesCeil(seconds)
	timeCost := float64(minutes) / minutesInHour * m.pricing.Infra.HourlyRate
	return Breakdown{
		"token_cost": tokenCost,
		"time_cost":  timeCost,
		"minutes":    minutes,
		"total_cost": tokenCost + timeCost,
	}
}

func tokenCost(tokens int64, perMillion float64) float64 {
	return float64(tokens) * perMillion / million
}

// evalTokens sums the evaluation token counts recorded per question.
// Records without eval metadata contribute zero.
func evalTokens(records []experiment.QuestionMetrics) (input, output int64) {
	for _, record := range records {
		input += metadataTokens(record.AnswerMetadata, EvalInputTokensKey)
		output += metadataTokens(record.AnswerMetadata, EvalOutputTokensKey)
	}
	return input, output
}

func metadataTokens(metadata map[string]string, key string) int64 {
	raw, ok := metadata[key]
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
