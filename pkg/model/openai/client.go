// Package openai provides the OpenAI adapter for the model.LLMClient
// oracle interface, using the official Go SDK's chat completions API.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"codeagent/pkg/model"
)

// Client wraps the official OpenAI client to implement model.LLMClient.
type Client struct {
	client openai.Client
	model  openai.ChatModel
}

// NewClient creates an OpenAI client for the given model name.
// Middleware is applied at a higher level.
func NewClient(apiKey, modelName string) *Client {
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  openai.ChatModel(modelName),
	}
}

// Complete implements model.LLMClient.
func (c *Client) Complete(ctx context.Context, in model.CompletionRequest) (model.CompletionResponse, error) {
	if len(in.Messages) == 0 {
		return model.CompletionResponse{}, fmt.Errorf("message list cannot be empty")
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(in.Messages))
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case model.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case model.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		case model.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		default:
			return model.CompletionResponse{}, fmt.Errorf("unsupported message role %q", msg.Role)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	}
	if in.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(in.MaxTokens))
	}
	if in.Temperature > 0 {
		params.Temperature = openai.Float(float64(in.Temperature))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return model.CompletionResponse{}, fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return model.CompletionResponse{}, fmt.Errorf("openai returned no choices")
	}

	choice := resp.Choices[0]

	var toolCalls []model.ToolCall
	for i := range choice.Message.ToolCalls {
		tc := &choice.Message.ToolCalls[i]
		var parameters map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &parameters); err != nil {
			parameters = map[string]any{"raw": tc.Function.Arguments}
		}
		toolCalls = append(toolCalls, model.ToolCall{
			ID:         tc.ID,
			Name:       tc.Function.Name,
			Parameters: parameters,
		})
	}

	return model.CompletionResponse{
		Content:    choice.Message.Content,
		ToolCalls:  toolCalls,
		StopReason: string(choice.FinishReason),
		Usage: model.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}
