// Copyright (c) Microsoft. All rights reserved.

package agentkit

import (
	"context"
	"log/slog"
	"time"
)

// LoggingMiddleware returns a [DispatchMiddleware] that logs rounds using slog.
func LoggingMiddleware(logger *slog.Logger) DispatchMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next RoundHandler) RoundHandler {
		return func(ctx context.Context, req *RoundRequest) (*RoundResult, error) {
			start := time.Now()
			logger.InfoContext(ctx, "round started",
				"session", req.Session.ID(),
				"resume", req.Resume,
				"input_chars", len(req.Input),
			)

			res, err := next(ctx, req)

			duration := time.Since(start)
			if err != nil {
				attrs := []any{"session", req.Session.ID(), "duration", duration, "error", err}
				if res != nil {
					attrs = append(attrs, "state", res.State, "rounds", res.Rounds)
				}
				logger.ErrorContext(ctx, "round failed", attrs...)
				return res, err
			}

			logger.InfoContext(ctx, "round completed",
				"session", req.Session.ID(),
				"duration", duration,
				"rounds", res.Rounds,
				"tool_calls", res.ToolCalls,
				"input_tokens", res.Usage.InputTokens,
				"output_tokens", res.Usage.OutputTokens,
			)
			return res, nil
		}
	}
}

// ToolLoggingMiddleware returns a [FunctionMiddleware] that logs every tool
// execution with its duration and outcome.
func ToolLoggingMiddleware(logger *slog.Logger) FunctionMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next FunctionHandler) FunctionHandler {
		return func(ctx context.Context, tool *Tool, args Args) (any, error) {
			start := time.Now()
			out, err := next(ctx, tool, args)
			if err != nil {
				logger.WarnContext(ctx, "tool failed",
					"tool", tool.Name(),
					"duration", time.Since(start),
					"error", err,
				)
				return out, err
			}
			logger.DebugContext(ctx, "tool completed",
				"tool", tool.Name(),
				"args", len(args),
				"duration", time.Since(start),
			)
			return out, nil
		}
	}
}
