// Copyright (c) Microsoft. All rights reserved.

package agentkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxRounds bounds how many times one user turn may cycle
	// through tool execution.
	DefaultMaxRounds = 10

	// DefaultMaxParallelTools bounds concurrent tool calls within a round.
	DefaultMaxParallelTools = 4
)

// State is the dispatcher's position in a round.
type State string

const (
	StateAwaitingModel  State = "awaiting_model"
	StateRespondedFinal State = "responded_final"
	StateRequestedTools State = "requested_tools"
	StateExhausted      State = "exhausted"
	StateCancelled      State = "cancelled"
	StateFailed         State = "failed"
)

// RoundResult describes a finished round. It is returned alongside the
// error for failed rounds so callers can still render the partial turns.
type RoundResult struct {
	Answer string
	State  State
	// Rounds counts tool-execution cycles, not model calls.
	Rounds    int
	ToolCalls int
	// Turns holds every turn appended during this round, in order.
	Turns    []Turn
	Usage    UsageDetails
	Duration time.Duration
}

// Dispatcher drives the model/tool loop for one user turn at a time.
// A single Dispatcher may serve many sessions concurrently.
//
//	d := agentkit.NewDispatcher(backend, registry,
//	    agentkit.WithInstructions("You are helpful."),
//	    agentkit.WithMaxRounds(5),
//	)
//	res, err := d.Run(ctx, session, "How many words are in 'a b c'?")
type Dispatcher struct {
	name           string
	instructions   string
	backend        Backend
	registry       *Registry
	invoker        *Invoker
	options        *ModelOptions
	maxRounds      int
	parallel       int
	backendTimeout time.Duration
	toolTimeout    time.Duration
	logger         *slog.Logger

	dispatchMiddleware []DispatchMiddleware
	backendMiddleware  []BackendMiddleware
	functionMiddleware []FunctionMiddleware
}

// DispatcherOption configures a [Dispatcher] via [NewDispatcher].
type DispatcherOption func(*Dispatcher)

// WithName sets the dispatcher's display name, used in logs.
func WithName(name string) DispatcherOption {
	return func(d *Dispatcher) { d.name = name }
}

// WithInstructions sets the system instructions sent with every request.
func WithInstructions(instructions string) DispatcherOption {
	return func(d *Dispatcher) { d.instructions = instructions }
}

// WithModelOptions sets default [ModelOptions] for all requests.
func WithModelOptions(opts *ModelOptions) DispatcherOption {
	return func(d *Dispatcher) { d.options = opts }
}

// WithMaxRounds sets the tool-loop budget per user turn.
func WithMaxRounds(n int) DispatcherOption {
	return func(d *Dispatcher) { d.maxRounds = n }
}

// WithMaxParallelTools bounds concurrent tool calls within one response.
// 1 runs tools sequentially.
func WithMaxParallelTools(n int) DispatcherOption {
	return func(d *Dispatcher) { d.parallel = n }
}

// WithBackendTimeout bounds each backend call.
func WithBackendTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.backendTimeout = t }
}

// WithToolTimeout bounds each tool call.
func WithToolTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.toolTimeout = t }
}

// WithLogger sets the logger for round diagnostics.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// WithDispatchMiddleware adds [DispatchMiddleware] around each round.
func WithDispatchMiddleware(mws ...DispatchMiddleware) DispatcherOption {
	return func(d *Dispatcher) { d.dispatchMiddleware = append(d.dispatchMiddleware, mws...) }
}

// WithBackendMiddleware adds [BackendMiddleware] around the backend.
func WithBackendMiddleware(mws ...BackendMiddleware) DispatcherOption {
	return func(d *Dispatcher) { d.backendMiddleware = append(d.backendMiddleware, mws...) }
}

// WithFunctionMiddleware adds [FunctionMiddleware] to the tool invocation pipeline.
func WithFunctionMiddleware(mws ...FunctionMiddleware) DispatcherOption {
	return func(d *Dispatcher) { d.functionMiddleware = append(d.functionMiddleware, mws...) }
}

// NewDispatcher creates a Dispatcher over backend and the tools in reg.
// A nil registry means no tools.
func NewDispatcher(backend Backend, reg *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		backend:   backend,
		registry:  reg,
		maxRounds: DefaultMaxRounds,
		parallel:  DefaultMaxParallelTools,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.registry == nil {
		d.registry = &Registry{}
	}
	if d.maxRounds < 0 {
		d.maxRounds = 0
	}
	if d.parallel <= 0 {
		d.parallel = 1
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.backend = chainBackendMiddleware(d.backend, d.backendMiddleware...)
	d.invoker = NewInvoker(d.registry,
		WithCallTimeout(d.toolTimeout),
		WithInvokerMiddleware(d.functionMiddleware...),
	)
	return d
}

// Name returns the dispatcher's display name.
func (d *Dispatcher) Name() string { return d.name }

// Registry returns the tools this dispatcher exposes.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// MaxRounds returns the configured tool-loop budget.
func (d *Dispatcher) MaxRounds() int { return d.maxRounds }

// Run appends input as a user turn and drives the round to completion.
//
// On success the final answer is also the last turn in the session. Errors
// are one of [ErrProtocolSequence], [ErrToolLoopBudgetExceeded],
// [ErrBackendUnavailable], [ErrBackendTimeout] or [ErrCancelled]; after any
// of them the session remains usable.
func (d *Dispatcher) Run(ctx context.Context, s *Session, input string) (*RoundResult, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil session", ErrSession)
	}
	handler := chainDispatchMiddleware(d.round, d.dispatchMiddleware...)
	return handler(ctx, &RoundRequest{Session: s, Input: input})
}

// Resume drives the loop again without a new user turn, retrying a round
// that failed with a transient backend error.
func (d *Dispatcher) Resume(ctx context.Context, s *Session) (*RoundResult, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil session", ErrSession)
	}
	handler := chainDispatchMiddleware(d.round, d.dispatchMiddleware...)
	return handler(ctx, &RoundRequest{Session: s, Resume: true})
}

func (d *Dispatcher) round(ctx context.Context, req *RoundRequest) (*RoundResult, error) {
	s := req.Session
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	start := time.Now()
	mark := s.Len()
	res := &RoundResult{State: StateAwaitingModel}
	finish := func(state State, err error) (*RoundResult, error) {
		res.State = state
		res.Turns = s.Since(mark)
		res.Duration = time.Since(start)
		return res, err
	}

	if req.Resume {
		last, ok := s.Last()
		if !ok || last.Kind == TurnAgent {
			return nil, fmt.Errorf("%w: nothing to resume in session %s", ErrProtocolSequence, s.ID())
		}
	} else if _, err := s.Append(UserTurn(req.Input)); err != nil {
		return nil, err
	}

	for {
		resp, err := d.complete(ctx, s)
		if err != nil {
			state := failedState(err)
			d.logger.WarnContext(ctx, "backend call failed",
				"dispatcher", d.name,
				"session", s.ID(),
				"round", res.Rounds,
				"error", err,
			)
			return finish(state, err)
		}
		res.Usage.Add(resp.Usage)

		if resp.Final() {
			if _, err := s.Append(AgentTurn(resp.Content)); err != nil {
				return finish(StateFailed, err)
			}
			res.Answer = resp.Content
			return finish(StateRespondedFinal, nil)
		}

		if res.Rounds >= d.maxRounds {
			note := fmt.Sprintf("Stopped after %d tool round(s) without reaching a final answer. "+
				"The partial results above are kept; ask again to continue.", d.maxRounds)
			_, _ = s.Append(Turn{Kind: TurnAgent, Text: note, Synthetic: true})
			res.Answer = note
			d.logger.WarnContext(ctx, "tool loop budget exceeded",
				"dispatcher", d.name,
				"session", s.ID(),
				"max_rounds", d.maxRounds,
			)
			return finish(StateExhausted, fmt.Errorf("%w: %d round(s)", ErrToolLoopBudgetExceeded, d.maxRounds))
		}

		res.Rounds++
		calls := normalizeCalls(resp.ToolCalls, s.callIDs())
		d.logger.DebugContext(ctx, "model requested tools",
			"dispatcher", d.name,
			"session", s.ID(),
			"round", res.Rounds,
			"calls", len(calls),
		)

		for i, call := range calls {
			if _, err := s.Append(CallTurn(call)); err != nil {
				d.closeOut(s, calls[:i], KindToolExecution, "request could not be recorded")
				return finish(StateFailed, err)
			}
		}

		results := d.invokeAll(ctx, calls)
		for _, r := range results {
			if _, err := s.Append(ResultTurn(r)); err != nil {
				return finish(StateFailed, err)
			}
		}
		res.ToolCalls += len(calls)

		if err := ctx.Err(); err != nil {
			err = d.classify(ctx, err)
			return finish(failedState(err), err)
		}
	}
}

// invokeAll runs the calls concurrently and returns results in request order.
func (d *Dispatcher) invokeAll(ctx context.Context, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))
	var g errgroup.Group
	g.SetLimit(d.parallel)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = d.invoker.Invoke(ctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// closeOut answers every outstanding call so the transcript stays paired.
func (d *Dispatcher) closeOut(s *Session, calls []ToolCall, kind ErrorKind, msg string) {
	for _, c := range calls {
		_, _ = s.Append(ResultTurn(ToolResult{CallID: c.ID, Name: c.Name, Error: kind, Message: msg}))
	}
}

type reply struct {
	resp *ModelResponse
	err  error
}

// complete sends the active context to the backend, bounded by the backend
// timeout even if the backend ignores its context.
func (d *Dispatcher) complete(ctx context.Context, s *Session) (*ModelResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, d.classify(ctx, err)
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if d.backendTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, d.backendTimeout)
	}
	defer cancel()

	req := &ModelRequest{
		Instructions: d.instructions,
		Conversation: s.ActiveContext(),
		Tools:        d.registry.Snapshot(),
		Options:      MergeModelOptions(d.options, nil),
	}

	ch := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- reply{err: fmt.Errorf("%w: backend panic: %v", ErrBackendUnavailable, r)}
			}
		}()
		resp, err := d.backend.Complete(callCtx, req)
		ch <- reply{resp: resp, err: err}
	}()

	var r reply
	select {
	case r = <-ch:
	case <-callCtx.Done():
		r.err = callCtx.Err()
	}

	switch {
	case r.err != nil:
		return nil, d.classify(ctx, r.err)
	case r.resp == nil:
		return nil, fmt.Errorf("%w: empty response", ErrInvalidResponse)
	}
	return r.resp, nil
}

func failedState(err error) State {
	if errors.Is(err, ErrCancelled) {
		return StateCancelled
	}
	return StateFailed
}

// classify maps a backend failure onto the dispatcher's error taxonomy.
func (d *Dispatcher) classify(ctx context.Context, err error) error {
	if parent := ctx.Err(); parent != nil {
		if errors.Is(parent, context.DeadlineExceeded) {
			return fmt.Errorf("%w: caller deadline: %w", ErrBackendTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrCancelled, context.Cause(ctx))
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: no response within %s", ErrBackendTimeout, d.backendTimeout)
	case errors.Is(err, ErrBackend):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
}

// normalizeCalls gives every call a non-empty ID that is unique within the
// round, replacing missing or repeated ones.
func normalizeCalls(calls []ToolCall, used map[string]bool) []ToolCall {
	out := make([]ToolCall, len(calls))
	for i, c := range calls {
		if c.ID == "" || used[c.ID] {
			c.ID = NewCallID()
		}
		used[c.ID] = true
		out[i] = c
	}
	return out
}

// NewCallID returns a fresh correlation ID in the "call_<hex>" style most
// providers use.
func NewCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}
