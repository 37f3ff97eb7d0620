package bedrock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/haasonsaas/ragbench/internal/stages"
)

// Embedder produces query embeddings through a Titan embedding model.
type Embedder struct {
	client     *bedrockruntime.Client
	modelID    string
	dimensions int
	normalize  bool
}

// NewEmbedder creates a Bedrock-backed embedder.
func NewEmbedder(client *bedrockruntime.Client, modelID string, dimensions int, normalize bool) *Embedder {
	return &Embedder{
		client:     client,
		modelID:    modelID,
		dimensions: dimensions,
		normalize:  normalize,
	}
}

type titanEmbedRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
	Normalize  bool   `json:"normalize"`
}

type titanEmbedResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int64     `json:"inputTextTokenCount"`
}

// EmbedText implements stages.Embedder.
func (e *Embedder) EmbedText(ctx context.Context, text string) (*stages.Embedding, error) {
	body, err := json.Marshal(titanEmbedRequest{
		InputText:  text,
		Dimensions: e.dimensions,
		Normalize:  e.normalize,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock embed: marshal request: %w", err)
	}

	out, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock embed: invoke %s: %w", e.modelID, err)
	}

	var resp titanEmbedResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("bedrock embed: decode response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("bedrock embed: model %s returned no embedding", e.modelID)
	}

	return &stages.Embedding{
		Vector:      resp.Embedding,
		InputTokens: resp.InputTextTokenCount,
	}, nil
}
