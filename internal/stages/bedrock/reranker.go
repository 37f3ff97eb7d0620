package bedrock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/haasonsaas/ragbench/internal/stages"
)

// Reranker reorders retrieved chunks using a Cohere rerank model hosted on
// Bedrock.
type Reranker struct {
	client  *bedrockruntime.Client
	modelID string
}

// NewReranker creates a Bedrock-backed reranker.
func NewReranker(client *bedrockruntime.Client, modelID string) *Reranker {
	return &Reranker{client: client, modelID: modelID}
}

type rerankRequest struct {
	Query      string   `json:"query"`
	Documents  []string `json:"documents"`
	TopN       int      `json:"top_n"`
	APIVersion int      `json:"api_version"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// RerankDocuments implements stages.Reranker. The returned slice holds the
// same documents reordered by relevance, scores replaced by the reranker's.
func (r *Reranker) RerankDocuments(ctx context.Context, query string, docs []stages.RetrievedChunk) ([]stages.RetrievedChunk, error) {
	if len(docs) == 0 {
		return docs, nil
	}

	body, err := json.Marshal(rerankRequest{
		Query:      query,
		Documents:  stages.ReferenceContexts(docs),
		TopN:       len(docs),
		APIVersion: 2,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock rerank: marshal request: %w", err)
	}

	out, err := r.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(r.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock rerank: invoke %s: %w", r.modelID, err)
	}

	var resp rerankResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("bedrock rerank: decode response: %w", err)
	}

	reordered := make([]stages.RetrievedChunk, 0, len(docs))
	for _, result := range resp.Results {
		if result.Index < 0 || result.Index >= len(docs) {
			return nil, fmt.Errorf("bedrock rerank: result index %d out of range", result.Index)
		}
		reordered = append(reordered, stages.RetrievedChunk{
			Text:  docs[result.Index].Text,
			Score: result.RelevanceScore,
		})
	}
	return reordered, nil
}
