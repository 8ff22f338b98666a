package model

import (
	"context"

	"codeagent/pkg/hooks"
)

// WithHookEvents returns a middleware bridging wrap_model_call hook
// handlers into the client chain. Handlers see the outbound request as
// the context's data and may replace it; replacing it with a different
// type discards the replacement.
func WithHookEvents(registry *hooks.Registry) Middleware {
	return func(next LLMClient) LLMClient {
		return WrapClient(func(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
			hc := hooks.NewContext(hooks.WrapModelCall, in)
			hc = registry.Trigger(ctx, hooks.WrapModelCall, hc)
			if req, ok := hc.Data.(CompletionRequest); ok {
				in = req
			}
			return next.Complete(ctx, in)
		})
	}
}
