// Package openai implements the embed and generate stages against the
// OpenAI API for experiments configured with an OpenAI-compatible service.
package openai

import (
	"context"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/ragbench/internal/stages"
)

// Embedder produces query embeddings through the OpenAI embeddings API.
type Embedder struct {
	client    *openai.Client
	model     string
	normalize bool
}

// NewEmbedder creates an OpenAI-backed embedder.
func NewEmbedder(apiKey, model string, normalize bool) (*Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai embed: API key is not set")
	}
	return &Embedder{
		client:    openai.NewClient(apiKey),
		model:     model,
		normalize: normalize,
	}, nil
}

// EmbedText implements stages.Embedder.
func (e *Embedder) EmbedText(ctx context.Context, text string) (*stages.Embedding, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embed: model %s returned no data", e.model)
	}

	vector := resp.Data[0].Embedding
	if e.normalize {
		l2normalize(vector)
	}
	return &stages.Embedding{
		Vector:      vector,
		InputTokens: int64(resp.Usage.PromptTokens),
	}, nil
}

// Generator produces answers through the OpenAI chat completions API.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewGenerator creates an OpenAI-backed generator.
func NewGenerator(apiKey, model string, temperature float64) (*Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai generate: API key is not set")
	}
	return &Generator{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: float32(temperature),
	}, nil
}

// GenerateText implements stages.Generator.
func (g *Generator) GenerateText(ctx context.Context, userQuery string, contexts []stages.RetrievedChunk, systemPrompt string) (*stages.Answer, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: stages.BuildUserPrompt(userQuery, contexts),
	})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: g.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai generate: model %s returned no choices", g.model)
	}

	return &stages.Answer{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
	}, nil
}

// l2normalize scales a vector to unit length in place.
func l2normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
