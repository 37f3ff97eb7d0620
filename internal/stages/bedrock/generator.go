package bedrock

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/haasonsaas/ragbench/internal/retry"
	"github.com/haasonsaas/ragbench/internal/stages"
)

const defaultMaxTokens = 2048

// Generator produces answers through the Bedrock Converse API. Calls are
// wrapped with the injected retry policy so throttling errors are retried
// transparently; any other error propagates immediately.
type Generator struct {
	client      *bedrockruntime.Client
	modelID     string
	temperature float32
	maxTokens   int32
	policy      retry.Policy
}

// NewGenerator creates a Bedrock-backed generator.
func NewGenerator(client *bedrockruntime.Client, modelID string, temperature float64, policy retry.Policy) *Generator {
	return &Generator{
		client:      client,
		modelID:     modelID,
		temperature: float32(temperature),
		maxTokens:   defaultMaxTokens,
		policy:      policy,
	}
}

// GenerateText implements stages.Generator.
func (g *Generator) GenerateText(ctx context.Context, userQuery string, contexts []stages.RetrievedChunk, systemPrompt string) (*stages.Answer, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(g.modelID),
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{
						Value: stages.BuildUserPrompt(userQuery, contexts),
					},
				},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			Temperature: aws.Float32(g.temperature),
			MaxTokens:   aws.Int32(g.maxTokens),
		},
	}
	if systemPrompt != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: systemPrompt},
		}
	}

	out, err := retry.Do(ctx, g.policy, func() (*bedrockruntime.ConverseOutput, error) {
		return g.client.Converse(ctx, input)
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock generate: converse %s: %w", g.modelID, err)
	}

	text, err := extractText(out.Output)
	if err != nil {
		return nil, fmt.Errorf("bedrock generate: %w", err)
	}

	answer := &stages.Answer{Text: text}
	if out.Usage != nil {
		answer.InputTokens = int64(aws.ToInt32(out.Usage.InputTokens))
		answer.OutputTokens = int64(aws.ToInt32(out.Usage.OutputTokens))
	}
	return answer, nil
}

// extractText pulls the first text block out of a converse response.
func extractText(output types.ConverseOutput) (string, error) {
	msg, ok := output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", fmt.Errorf("unexpected output type %T", output)
	}
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			return text.Value, nil
		}
	}
	return "", fmt.Errorf("response contains no text block")
}
