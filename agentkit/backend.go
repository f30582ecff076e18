// Copyright (c) Microsoft. All rights reserved.

package agentkit

import "context"

// Backend is the interface to a model host. Provider packages (openai,
// anthropic, ollama, gemini, offline) implement it.
type Backend interface {
	// Complete sends the conversation and tool specs and returns either a
	// final answer or one or more tool-call requests.
	Complete(ctx context.Context, req *ModelRequest) (*ModelResponse, error)
}

// BackendFunc adapts a function to the [Backend] interface.
type BackendFunc func(ctx context.Context, req *ModelRequest) (*ModelResponse, error)

// Complete calls f.
func (f BackendFunc) Complete(ctx context.Context, req *ModelRequest) (*ModelResponse, error) {
	return f(ctx, req)
}

// ModelRequest is what the dispatcher sends to a backend each round.
type ModelRequest struct {
	// Instructions is the system prompt, if any.
	Instructions string
	// Conversation is the session's active context, oldest first.
	Conversation []Turn
	// Tools lists the available tools in registration order.
	Tools   []ToolSpec
	Options *ModelOptions
}

// ModelResponse is a backend's answer. A response with no ToolCalls is final.
type ModelResponse struct {
	Content   string
	ToolCalls []ToolCall
	Usage     UsageDetails
	ModelID   string
	// FinishReason is the provider's raw stop reason, when it reports one.
	FinishReason string
}

// Final reports whether the response ends the round.
func (r *ModelResponse) Final() bool { return len(r.ToolCalls) == 0 }

// TrimmedContextNote opens a conversation whose window holds no user turn.
const TrimmedContextNote = "(Earlier conversation omitted.)"

// UserAnchored pairs the turns and makes the conversation open on a user
// turn, as the Anthropic and Gemini formats require. Turns before the first
// user turn are dropped together with the results answering them. A window
// with no user turn at all keeps its tool exchanges behind a synthetic
// [TrimmedContextNote] user turn.
func UserAnchored(turns []Turn) []Turn {
	paired := PairedConversation(turns)
	for i, t := range paired {
		if t.Kind == TurnUser {
			return PairedConversation(paired[i:])
		}
	}
	if len(paired) == 0 {
		return paired
	}
	note := Turn{Kind: TurnUser, Text: TrimmedContextNote, Synthetic: true}
	return append([]Turn{note}, paired...)
}

// PairedConversation drops tool turns whose partner fell outside the window:
// leading tool results without their call, and trailing calls without
// results. Provider wire formats reject both.
func PairedConversation(turns []Turn) []Turn {
	calls := make(map[string]bool)
	results := make(map[string]bool)
	for _, t := range turns {
		switch t.Kind {
		case TurnToolCall:
			calls[t.Call.ID] = true
		case TurnToolResult:
			results[t.Result.CallID] = true
		}
	}
	out := make([]Turn, 0, len(turns))
	for _, t := range turns {
		switch {
		case t.Kind == TurnToolCall && !results[t.Call.ID]:
			continue
		case t.Kind == TurnToolResult && !calls[t.Result.CallID]:
			continue
		}
		out = append(out, t)
	}
	return out
}
