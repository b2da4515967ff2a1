package llm

import (
	"context"
	"log/slog"
	"time"
)

// LogRequests logs every request at debug level: the estimated prompt
// size before the call, and duration, finish reason and usage after.
func LogRequests(logger *slog.Logger) Middleware {
	return func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
		if !logger.Enabled(ctx, slog.LevelDebug) {
			return next(ctx, req)
		}
		logger.DebugContext(ctx, "llm request",
			"provider", req.Provider,
			"messages", len(req.Messages),
			"tools", len(req.Tools),
			"estimated_prompt_tokens", EstimateRequestTokens(req),
		)
		start := time.Now()
		resp, err := next(ctx, req)
		if err != nil {
			logger.DebugContext(ctx, "llm request failed", "provider", req.Provider, "duration", time.Since(start), "kind", KindOf(err), "error", err)
			return resp, err
		}
		logger.DebugContext(ctx, "llm response",
			"provider", req.Provider,
			"duration", time.Since(start),
			"finish_reason", resp.FinishReason,
			"tool_calls", len(resp.ToolCalls),
			"total_tokens", resp.TotalTokens(),
		)
		return resp, nil
	}
}

// LogStreams is LogRequests for streamed replies. The summary is logged
// when the stream closes.
func LogStreams(logger *slog.Logger) StreamMiddleware {
	return func(ctx context.Context, req Request, next func(context.Context, Request) (<-chan StreamChunk, error)) (<-chan StreamChunk, error) {
		if !logger.Enabled(ctx, slog.LevelDebug) {
			return next(ctx, req)
		}
		logger.DebugContext(ctx, "llm stream",
			"provider", req.Provider,
			"messages", len(req.Messages),
			"estimated_prompt_tokens", EstimateRequestTokens(req),
		)
		start := time.Now()
		in, err := next(ctx, req)
		if err != nil {
			logger.DebugContext(ctx, "llm stream failed", "provider", req.Provider, "kind", KindOf(err), "error", err)
			return nil, err
		}

		out := make(chan StreamChunk)
		go func() {
			defer close(out)
			chunks := 0
			var finish string
			var streamErr error
			for chunk := range in {
				chunks++
				if chunk.FinishReason != "" {
					finish = chunk.FinishReason
				}
				if chunk.Err != nil {
					streamErr = chunk.Err
				}
				select {
				case out <- chunk:
				case <-ctx.Done():
					return
				}
			}
			logger.DebugContext(ctx, "llm stream closed",
				"provider", req.Provider,
				"duration", time.Since(start),
				"chunks", chunks,
				"finish_reason", finish,
				"error", streamErr,
			)
		}()
		return out, nil
	}
}
