// Package stages defines the four per-question processing stages of a
// retrieval experiment (embed, search, rerank, generate) as typed
// interfaces, plus the value types flowing between them.
package stages

import (
	"context"
	"strings"
)

// Embedding is the result of embedding one piece of text.
type Embedding struct {
	// Vector is the query embedding.
	Vector []float32
	// InputTokens is the number of tokens consumed by the embedding call.
	InputTokens int64
}

// RetrievedChunk is one context record returned by vector search, in
// retrieval order. Order matters: it determines prompt construction and is
// the input order to reranking.
type RetrievedChunk struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Answer is the result of the generation stage.
type Answer struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// Embedder produces query embeddings.
type Embedder interface {
	EmbedText(ctx context.Context, text string) (*Embedding, error)
}

// Searcher performs nearest-neighbor retrieval against a vector index.
// An empty result is not an error.
type Searcher interface {
	Search(ctx context.Context, indexID string, vector []float32, k int) ([]RetrievedChunk, error)
}

// Reranker reorders retrieved chunks by relevance to the query.
type Reranker interface {
	RerankDocuments(ctx context.Context, query string, docs []RetrievedChunk) ([]RetrievedChunk, error)
}

// Generator produces an answer from the question and retrieved context.
type Generator interface {
	GenerateText(ctx context.Context, userQuery string, contexts []RetrievedChunk, systemPrompt string) (*Answer, error)
}

// Bundle groups the stage executors for one experiment run. Reranker is nil
// when reranking is disabled.
type Bundle struct {
	Embedder  Embedder
	Searcher  Searcher
	Reranker  Reranker
	Generator Generator
}

// RerankDisabledSentinel is the rerank model value that disables reranking.
const RerankDisabledSentinel = "none"

// RerankEnabled reports whether the given rerank model id selects a real
// reranker. Unset, blank, and the case-insensitive sentinel "none" all
// disable reranking.
func RerankEnabled(modelID string) bool {
	trimmed := strings.TrimSpace(modelID)
	return trimmed != "" && !strings.EqualFold(trimmed, RerankDisabledSentinel)
}

// ReferenceContexts extracts the text of each chunk, preserving order.
func ReferenceContexts(chunks []RetrievedChunk) []string {
	if len(chunks) == 0 {
		return []string{}
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return texts
}

// BuildSystemPrompt appends an n-shot example guide to the base system
// prompt when the experiment provides one.
func BuildSystemPrompt(base, guide string) string {
	guide = strings.TrimSpace(guide)
	if guide == "" {
		return base
	}
	if base == "" {
		return guide
	}
	return base + "\n\n" + guide
}

// BuildUserPrompt renders the question plus ordered context blocks into the
// user message sent to the generation model.
func BuildUserPrompt(question string, contexts []RetrievedChunk) string {
	var b strings.Builder
	if len(contexts) > 0 {
		b.WriteString("Context:\n")
		for _, c := range contexts {
			b.WriteString(c.Text)
			b.WriteString("\n\n")
		}
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
