// Package ollama provides the Ollama adapter for the model.LLMClient
// oracle interface. Ollama is a local runtime for open-source models.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"codeagent/pkg/model"
)

const defaultHost = "http://localhost:11434"

// Client wraps the Ollama API client to implement model.LLMClient.
type Client struct {
	client *api.Client
	model  string
}

// NewClient creates an Ollama client against the given server URL
// (e.g. "http://localhost:11434"). An unparseable URL falls back to the
// default local server.
func NewClient(hostURL, modelName string) *Client {
	parsed, err := url.Parse(hostURL)
	if err != nil || parsed.Scheme == "" {
		parsed, _ = url.Parse(defaultHost)
	}
	return &Client{
		client: api.NewClient(parsed, http.DefaultClient),
		model:  modelName,
	}
}

// Complete implements model.LLMClient.
func (c *Client) Complete(ctx context.Context, in model.CompletionRequest) (model.CompletionResponse, error) {
	if len(in.Messages) == 0 {
		return model.CompletionResponse{}, fmt.Errorf("message list cannot be empty")
	}

	messages := make([]api.Message, 0, len(in.Messages))
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case model.RoleSystem, model.RoleUser, model.RoleAssistant:
			messages = append(messages, api.Message{
				Role:    string(msg.Role),
				Content: msg.Content,
			})
		default:
			return model.CompletionResponse{}, fmt.Errorf("unsupported message role %q", msg.Role)
		}
	}

	stream := false
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": in.Temperature,
			"num_predict": in.MaxTokens,
		},
	}

	var last api.ChatResponse
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		last = resp
		return nil
	})
	if err != nil {
		return model.CompletionResponse{}, fmt.Errorf("ollama completion failed: %w", err)
	}

	return model.CompletionResponse{
		Content:    last.Message.Content,
		StopReason: last.DoneReason,
		Usage: model.Usage{
			PromptTokens:     last.Metrics.PromptEvalCount,
			CompletionTokens: last.Metrics.EvalCount,
		},
	}, nil
}
