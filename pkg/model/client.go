package model

import "context"

// LLMClient is the request/response oracle used by the workflow phases
// for planning, decision, and reflection judgments. Prompt content is
// opaque to the workflow core.
type LLMClient interface {
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)
}

// Middleware wraps an LLMClient with additional behavior. Middlewares
// are composed with Chain to build a processing pipeline.
type Middleware func(next LLMClient) LLMClient

// clientFunc adapts a plain function to the LLMClient interface, for
// middleware implementations.
type clientFunc func(ctx context.Context, in CompletionRequest) (CompletionResponse, error)

func (f clientFunc) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	return f(ctx, in)
}

// WrapClient creates an LLMClient from the provided function.
func WrapClient(complete func(ctx context.Context, in CompletionRequest) (CompletionResponse, error)) LLMClient {
	return clientFunc(complete)
}

// Chain composes middlewares around a base client. Middlewares apply in
// order, with earlier ones outermost:
//
//	Chain(client, mw1, mw2, mw3)  =>  mw1 -> mw2 -> mw3 -> client
//
// so mw1 runs first and may modify the request or short-circuit before
// mw2 and mw3 see it.
func Chain(base LLMClient, middlewares ...Middleware) LLMClient {
	client := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		client = middlewares[i](client)
	}
	return client
}
