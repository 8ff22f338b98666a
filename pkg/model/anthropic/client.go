// Package anthropic provides the Anthropic Claude adapter for the
// model.LLMClient oracle interface.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"codeagent/pkg/model"
)

// Client wraps the Anthropic API client to implement model.LLMClient.
type Client struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewClient creates a Claude client for the given model name. Middleware
// is applied at a higher level.
func NewClient(apiKey, modelName string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(modelName),
	}
}

// prepareMessages adapts generic completion messages to Anthropic API
// requirements: system messages move to the top-level system parameter,
// consecutive same-role messages merge, and the sequence must start and
// end with a user message.
func prepareMessages(messages []model.CompletionMessage) (systemPrompt string, params []anthropic.MessageParam, err error) {
	if len(messages) == 0 {
		return "", nil, fmt.Errorf("message list cannot be empty")
	}

	var systemParts []string
	var conversational []model.CompletionMessage
	for i := range messages {
		if messages[i].Role == model.RoleSystem {
			systemParts = append(systemParts, messages[i].Content)
		} else {
			conversational = append(conversational, messages[i])
		}
	}
	systemPrompt = strings.Join(systemParts, "\n\n")

	if len(conversational) == 0 {
		return "", nil, fmt.Errorf("must have at least one non-system message")
	}

	// Merge consecutive same-role messages to satisfy strict alternation.
	var merged []model.CompletionMessage
	for i := range conversational {
		msg := conversational[i]
		if n := len(merged); n > 0 && merged[n-1].Role == msg.Role {
			merged[n-1].Content += "\n\n" + msg.Content
			continue
		}
		merged = append(merged, msg)
	}

	if merged[0].Role != model.RoleUser {
		return "", nil, fmt.Errorf("first conversational message must be user, got %s", merged[0].Role)
	}
	if merged[len(merged)-1].Role != model.RoleUser {
		return "", nil, fmt.Errorf("last conversational message must be user, got %s", merged[len(merged)-1].Role)
	}

	params = make([]anthropic.MessageParam, 0, len(merged))
	for i := range merged {
		if merged[i].Role == model.RoleAssistant {
			params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(merged[i].Content)))
		} else {
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(merged[i].Content)))
		}
	}
	return systemPrompt, params, nil
}

// Complete implements model.LLMClient.
func (c *Client) Complete(ctx context.Context, in model.CompletionRequest) (model.CompletionResponse, error) {
	systemPrompt, messages, err := prepareMessages(in.Messages)
	if err != nil {
		return model.CompletionResponse{}, fmt.Errorf("invalid message sequence: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: int64(in.MaxTokens),
		Messages:  messages,
	}
	if in.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(in.Temperature))
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return model.CompletionResponse{}, fmt.Errorf("anthropic completion failed: %w", err)
	}

	var content strings.Builder
	var toolCalls []model.ToolCall
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			content.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			var parameters map[string]any
			if err := json.Unmarshal(b.Input, &parameters); err != nil {
				parameters = map[string]any{"raw": string(b.Input)}
			}
			toolCalls = append(toolCalls, model.ToolCall{
				ID:         b.ID,
				Name:       b.Name,
				Parameters: parameters,
			})
		}
	}

	return model.CompletionResponse{
		Content:    content.String(),
		ToolCalls:  toolCalls,
		StopReason: string(resp.StopReason),
		Usage: model.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}
