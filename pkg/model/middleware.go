package model

import (
	"context"
	"time"

	"codeagent/pkg/logx"
	"codeagent/pkg/metrics"
)

// WithLogging returns a middleware that logs every oracle request and
// its outcome.
func WithLogging(logger *logx.Logger) Middleware {
	return func(next LLMClient) LLMClient {
		return WrapClient(func(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
			start := time.Now()
			logger.Debug("oracle request: %d messages, max_tokens=%d", len(in.Messages), in.MaxTokens)

			resp, err := next.Complete(ctx, in)
			if err != nil {
				logger.Warn("oracle request failed after %v: %v", time.Since(start), err)
				return resp, err
			}

			logger.Debug("oracle response in %v: %d chars, stop=%s",
				time.Since(start), len(resp.Content), resp.StopReason)
			return resp, nil
		})
	}
}

// WithMetrics returns a middleware that records request counts and
// latency per provider.
func WithMetrics(recorder *metrics.Recorder, provider string) Middleware {
	return func(next LLMClient) LLMClient {
		return WrapClient(func(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
			start := time.Now()
			resp, err := next.Complete(ctx, in)
			recorder.ObserveOracleRequest(provider, err, time.Since(start))
			return resp, err
		})
	}
}
