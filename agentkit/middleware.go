// Copyright (c) Microsoft. All rights reserved.

package agentkit

import "context"

// RoundHandler is the function signature for running one dispatch round.
type RoundHandler func(ctx context.Context, req *RoundRequest) (*RoundResult, error)

// RoundRequest carries the inputs for one round through the middleware pipeline.
type RoundRequest struct {
	Session *Session
	Input   string
	// Resume is set when the round retries the last user turn instead of
	// appending Input.
	Resume bool
}

// DispatchMiddleware wraps a [RoundHandler] to add cross-cutting behavior.
// Middleware should call next to continue the chain, or return early to short-circuit.
type DispatchMiddleware func(next RoundHandler) RoundHandler

// BackendMiddleware wraps a [Backend], for example to rewrite responses.
type BackendMiddleware func(next Backend) Backend

// FunctionHandler is the function signature for invoking a tool.
type FunctionHandler func(ctx context.Context, tool *Tool, args Args) (any, error)

// FunctionMiddleware wraps a [FunctionHandler] to add cross-cutting behavior.
type FunctionMiddleware func(next FunctionHandler) FunctionHandler

// chainDispatchMiddleware applies middleware in order (first in list = outermost wrapper).
func chainDispatchMiddleware(handler RoundHandler, mws ...DispatchMiddleware) RoundHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i](handler)
	}
	return handler
}

// chainBackendMiddleware applies middleware in order (first in list = outermost wrapper).
func chainBackendMiddleware(b Backend, mws ...BackendMiddleware) Backend {
	for i := len(mws) - 1; i >= 0; i-- {
		b = mws[i](b)
	}
	return b
}

// chainFunctionMiddleware applies middleware in order.
func chainFunctionMiddleware(handler FunctionHandler, mws ...FunctionMiddleware) FunctionHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i](handler)
	}
	return handler
}
