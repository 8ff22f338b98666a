package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeagent/pkg/hooks"
)

func TestWithHookEventsRewritesRequest(t *testing.T) {
	registry := hooks.NewRegistry(nil)
	registry.Register(hooks.WrapModelCall, "cap-tokens", 0, func(_ context.Context, hc *hooks.Context) (*hooks.Context, error) {
		req := hc.Data.(CompletionRequest)
		req.MaxTokens = 128
		hc.Data = req
		return hc, nil
	})

	mock := NewMockClientWithContent("hi")
	client := Chain(mock, WithHookEvents(registry))

	_, err := client.Complete(context.Background(), NewCompletionRequest([]CompletionMessage{NewUserMessage("hello")}))
	require.NoError(t, err)

	requests := mock.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, 128, requests[0].MaxTokens)
}

func TestWithHookEventsIgnoresForeignReplacement(t *testing.T) {
	registry := hooks.NewRegistry(nil)
	registry.Register(hooks.WrapModelCall, "corrupt-data", 0, func(_ context.Context, hc *hooks.Context) (*hooks.Context, error) {
		hc.Data = "not a request"
		return hc, nil
	})

	mock := NewMockClientWithContent("hi")
	client := Chain(mock, WithHookEvents(registry))

	in := NewCompletionRequest([]CompletionMessage{NewUserMessage("hello")})
	_, err := client.Complete(context.Background(), in)
	require.NoError(t, err)

	requests := mock.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, in.MaxTokens, requests[0].MaxTokens)
	assert.Len(t, requests[0].Messages, 1)
}

func TestWithHookEventsNoHandlers(t *testing.T) {
	mock := NewMockClientWithContent("hi")
	client := Chain(mock, WithHookEvents(hooks.NewRegistry(nil)))

	resp, err := client.Complete(context.Background(), NewCompletionRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Content)
}
