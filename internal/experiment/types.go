// Package experiment defines the records that flow through a retrieval
// experiment: the immutable run configuration, ground-truth questions,
// per-question metrics, and the token totals accumulated across a run.
package experiment

import "time"

// Config identifies one experiment run. It is read once at pipeline start
// and treated as immutable for the duration of the run.
type Config struct {
	ExecutionID      string  `json:"execution_id"`
	ExperimentID     string  `json:"experiment_id"`
	EmbeddingService string  `json:"embedding_service"`
	EmbeddingModel   string  `json:"embedding_model"`
	RetrievalService string  `json:"retrieval_service"`
	RetrievalModel   string  `json:"retrieval_model"`
	RerankModelID    string  `json:"rerank_model_id"`
	VectorDimension  int     `json:"vector_dimension"`
	IndexID          string  `json:"index_id"`
	KnnNum           int     `json:"knn_num"`
	Temperature      float64 `json:"temp_retrieval_llm"`
	GroundTruthData  string  `json:"gt_data"`
	AWSRegion        string  `json:"aws_region"`
	NShotPrompts     int     `json:"n_shot_prompts"`
	NShotPromptGuide string  `json:"n_shot_prompt_guide"`
}

// Question is one ground-truth evaluation item.
type Question struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// QuestionMetrics records the outcome of processing one question. Every
// question produces exactly one record; on failure the answer, contexts,
// and metadata fields stay empty so the error path never drops a question
// from the metrics table.
type QuestionMetrics struct {
	ID                string            `dynamodbav:"id" json:"id"`
	ExecutionID       string            `dynamodbav:"execution_id" json:"execution_id"`
	ExperimentID      string            `dynamodbav:"experiment_id" json:"experiment_id"`
	Question          string            `dynamodbav:"question" json:"question"`
	GTAnswer          string            `dynamodbav:"gt_answer" json:"gt_answer"`
	GeneratedAnswer   string            `dynamodbav:"generated_answer" json:"generated_answer"`
	ReferenceContexts []string          `dynamodbav:"reference_contexts" json:"reference_contexts"`
	QueryMetadata     map[string]string `dynamodbav:"query_metadata" json:"query_metadata"`
	AnswerMetadata    map[string]string `dynamodbav:"answer_metadata" json:"answer_metadata"`
	CreatedAt         time.Time         `dynamodbav:"created_at" json:"created_at"`
}

// TokenTotals accumulates token counts across one pipeline run. Counters
// only grow; failed questions contribute zero to all three.
type TokenTotals struct {
	QueryEmbedTokens int64 `json:"query_embed_tokens"`
	InputTokens      int64 `json:"input_tokens"`
	OutputTokens     int64 `json:"output_tokens"`
}

// Add merges the contribution of one successfully processed question.
func (t *TokenTotals) Add(queryEmbed, input, output int64) {
	t.QueryEmbedTokens += queryEmbed
	t.InputTokens += input
	t.OutputTokens += output
}

// Record is the experiment row persisted in the experiment table. Token and
// duration fields are written by the retrieval pipeline; cost fields are
// written afterwards by the rollup job.
type Record struct {
	ID                        string `dynamodbav:"id" json:"id"`
	ExecutionID               string `dynamodbav:"execution_id" json:"execution_id"`
	IndexEmbedTokens          int64  `dynamodbav:"index_embed_tokens" json:"index_embed_tokens"`
	RetrievalQueryEmbedTokens int64  `dynamodbav:"retrieval_query_embed_tokens" json:"retrieval_query_embed_tokens"`
	RetrievalInputTokens      int64  `dynamodbav:"retrieval_input_tokens" json:"retrieval_input_tokens"`
	RetrievalOutputTokens     int64  `dynamodbav:"retrieval_output_tokens" json:"retrieval_output_tokens"`
	IndexingTimeSeconds       int64  `dynamodbav:"indexing_time" json:"indexing_time"`
	RetrievalTimeSeconds      int64  `dynamodbav:"retrieval_time" json:"retrieval_time"`
	EvalTimeSeconds           int64  `dynamodbav:"eval_time" json:"eval_time"`
	EmbeddingModel            string `dynamodbav:"embedding_model" json:"embedding_model"`
	RetrievalModel            string `dynamodbav:"retrieval_model" json:"retrieval_model"`
	EvalModel                 string `dynamodbav:"eval_retrieval_model" json:"eval_retrieval_model"`
}
