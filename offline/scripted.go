// Copyright (c) Microsoft. All rights reserved.

// Package offline provides backends that need no model host: [Scripted]
// replays canned responses and [Rules] routes prompts to tools with
// keyword rules.
package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	ak "github.com/agentplayground/agentkit/agentkit"
)

// Step is one scripted backend reply. Exactly one of Response, Err or Func
// is used, in that order of precedence.
type Step struct {
	Response *ak.ModelResponse
	Err      error
	Func     func(ctx context.Context, req *ak.ModelRequest) (*ak.ModelResponse, error)
}

// Reply scripts a final answer.
func Reply(text string) Step {
	return Step{Response: &ak.ModelResponse{Content: text}}
}

// Call scripts a response requesting the given tool calls. Each call is
// a name followed by its JSON arguments.
//
//	offline.Call("get_weather", `{"location":"Oslo"}`, "current_time", `{}`)
func Call(nameArgs ...string) Step {
	if len(nameArgs)%2 != 0 {
		panic("offline.Call: arguments must be name/arguments pairs")
	}
	resp := &ak.ModelResponse{}
	for i := 0; i < len(nameArgs); i += 2 {
		resp.ToolCalls = append(resp.ToolCalls, ak.ToolCall{
			ID:        ak.NewCallID(),
			Name:      nameArgs[i],
			Arguments: json.RawMessage(nameArgs[i+1]),
		})
	}
	return Step{Response: resp}
}

// Fail scripts a backend error.
func Fail(err error) Step { return Step{Err: err} }

// Scripted is a [agentkit.Backend] that replays steps in order. It records
// every request it receives.
type Scripted struct {
	mu       sync.Mutex
	steps    []Step
	next     int
	requests []*ak.ModelRequest
}

var _ ak.Backend = (*Scripted)(nil)

// NewScripted creates a backend replaying steps.
func NewScripted(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

// Complete returns the next scripted step. Running past the end of the
// script is a backend failure.
func (s *Scripted) Complete(ctx context.Context, req *ak.ModelRequest) (*ak.ModelResponse, error) {
	s.mu.Lock()
	cp := *req
	cp.Conversation = append([]ak.Turn(nil), req.Conversation...)
	s.requests = append(s.requests, &cp)
	if s.next >= len(s.steps) {
		n := s.next
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: script exhausted after %d steps", ak.ErrBackendUnavailable, n)
	}
	step := s.steps[s.next]
	s.next++
	s.mu.Unlock()

	switch {
	case step.Response != nil:
		resp := *step.Response
		resp.ToolCalls = append([]ak.ToolCall(nil), step.Response.ToolCalls...)
		return &resp, nil
	case step.Err != nil:
		return nil, step.Err
	case step.Func != nil:
		return step.Func(ctx, req)
	default:
		return &ak.ModelResponse{}, nil
	}
}

// Requests returns the requests received so far.
func (s *Scripted) Requests() []*ak.ModelRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ak.ModelRequest(nil), s.requests...)
}

// Remaining reports how many steps have not been replayed.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps) - s.next
}
