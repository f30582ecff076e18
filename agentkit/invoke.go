// Copyright (c) Microsoft. All rights reserved.

package agentkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"
)

// DefaultDiagnosticLimit is the default rune limit for error messages stored
// in a [ToolResult].
const DefaultDiagnosticLimit = 512

// Invoker turns tool-call requests into [ToolResult] values. Every failure,
// including panics inside a tool, is converted into a failed result; Invoke
// never returns an error.
type Invoker struct {
	registry   *Registry
	timeout    time.Duration
	diagLimit  int
	middleware []FunctionMiddleware
}

// InvokerOption configures an [Invoker].
type InvokerOption func(*Invoker)

// WithCallTimeout bounds each tool execution. Zero means no bound beyond the
// caller's context.
func WithCallTimeout(d time.Duration) InvokerOption {
	return func(i *Invoker) { i.timeout = d }
}

// WithDiagnosticLimit sets the rune limit for stored error messages.
func WithDiagnosticLimit(n int) InvokerOption {
	return func(i *Invoker) { i.diagLimit = n }
}

// WithInvokerMiddleware adds [FunctionMiddleware] around tool execution.
func WithInvokerMiddleware(mws ...FunctionMiddleware) InvokerOption {
	return func(i *Invoker) { i.middleware = append(i.middleware, mws...) }
}

// NewInvoker creates an Invoker that resolves tools from reg.
func NewInvoker(reg *Registry, opts ...InvokerOption) *Invoker {
	i := &Invoker{registry: reg, diagLimit: DefaultDiagnosticLimit}
	for _, opt := range opts {
		opt(i)
	}
	if i.registry == nil {
		i.registry = &Registry{}
	}
	return i
}

// Invoke resolves, validates and executes one tool call.
func (i *Invoker) Invoke(ctx context.Context, call ToolCall) ToolResult {
	res := ToolResult{CallID: call.ID, Name: call.Name}

	if ctx.Err() != nil {
		err := interrupted(ctx)
		return i.fail(res, KindOf(err), err.Error()+" before the tool started")
	}

	tool, err := i.registry.Resolve(call.Name)
	if err != nil {
		slog.WarnContext(ctx, "unknown tool called", "tool", call.Name, "call_id", call.ID)
		return i.fail(res, KindUnknownTool, err.Error())
	}

	args, err := decodeArgs(call.Arguments)
	if err != nil {
		return i.fail(res, KindInvalidArguments, err.Error())
	}
	if err := validateArgs(tool, args); err != nil {
		return i.fail(res, KindInvalidArguments, err.Error())
	}

	start := time.Now()
	value, err := i.execute(ctx, tool, args)
	if err != nil {
		slog.WarnContext(ctx, "tool invocation error",
			"tool", call.Name,
			"call_id", call.ID,
			"duration", time.Since(start),
			"error", err,
		)
		return i.fail(res, KindOf(err), err.Error())
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return i.fail(res, KindToolExecution, "result is not serializable: "+err.Error())
	}
	slog.DebugContext(ctx, "tool invoked",
		"tool", call.Name,
		"call_id", call.ID,
		"duration", time.Since(start),
		"payload_bytes", len(payload),
	)

	res.Success = true
	res.Payload = payload
	return res
}

type outcome struct {
	value any
	err   error
}

// execute runs the tool through the middleware chain on its own goroutine so
// that a tool ignoring its context cannot outlive the timeout.
func (i *Invoker) execute(ctx context.Context, tool *Tool, args Args) (any, error) {
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if i.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, i.timeout)
	}
	defer cancel()

	handler := chainFunctionMiddleware(func(ctx context.Context, t *Tool, a Args) (any, error) {
		return t.fn(ctx, a)
	}, i.middleware...)

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: panic: %v", ErrToolExecution, r)}
			}
		}()
		v, err := handler(callCtx, tool, args)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && ctx.Err() != nil {
			return nil, interrupted(ctx)
		}
		if o.err != nil && errors.Is(o.err, context.DeadlineExceeded) && callCtx.Err() != nil {
			return nil, fmt.Errorf("%w: timed out after %s", ErrToolExecution, i.timeout)
		}
		return o.value, o.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return nil, interrupted(ctx)
		}
		return nil, fmt.Errorf("%w: timed out after %s", ErrToolExecution, i.timeout)
	}
}

// interrupted reports why the caller's context ended. A passed deadline is
// a timeout of the tool, not a cancellation.
func interrupted(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: caller deadline exceeded", ErrToolExecution)
	}
	return fmt.Errorf("%w: %v", ErrCancelled, context.Cause(ctx))
}

func (i *Invoker) fail(res ToolResult, kind ErrorKind, msg string) ToolResult {
	res.Success = false
	res.Payload = nil
	res.Error = kind
	res.Message = truncate(msg, i.diagLimit)
	return res
}

func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "...(truncated)"
}
