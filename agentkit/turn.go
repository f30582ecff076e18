// Copyright (c) Microsoft. All rights reserved.

package agentkit

import (
	"encoding/json"
	"time"
)

// TurnKind identifies what a transcript entry holds.
type TurnKind string

const (
	TurnUser       TurnKind = "user"
	TurnAgent      TurnKind = "agent"
	TurnToolCall   TurnKind = "tool_call"
	TurnToolResult TurnKind = "tool_result"
)

// ToolCall is a model request to invoke a tool. ID correlates the eventual
// [ToolResult] and is unique within one dispatch round.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolResult is the serializable outcome of a tool invocation.
type ToolResult struct {
	CallID  string          `json:"callId"`
	Name    string          `json:"name,omitempty"`
	Success bool            `json:"success"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   ErrorKind       `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Err returns the sentinel matching the result's error tag, or nil on success.
func (r ToolResult) Err() error {
	if r.Success {
		return nil
	}
	return r.Error.Err()
}

// Content renders the result the way it is shown to a model: the payload on
// success, or a short error line.
func (r ToolResult) Content() string {
	if r.Success {
		var s string
		if json.Unmarshal(r.Payload, &s) == nil {
			return s
		}
		return string(r.Payload)
	}
	if r.Message == "" {
		return "error: " + string(r.Error)
	}
	return "error: " + string(r.Error) + ": " + r.Message
}

// Turn is one entry in a conversation transcript. Exactly one of Text, Call
// or Result is meaningful, depending on Kind.
type Turn struct {
	Sequence  int         `json:"sequence"`
	Kind      TurnKind    `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
	Text      string      `json:"text,omitempty"`
	Call      *ToolCall   `json:"call,omitempty"`
	Result    *ToolResult `json:"result,omitempty"`
	// Synthetic marks turns produced by the dispatcher rather than a user or
	// model, such as the note appended when the tool budget runs out.
	Synthetic bool `json:"synthetic,omitempty"`
}

// UserTurn creates a user message turn.
func UserTurn(text string) Turn { return Turn{Kind: TurnUser, Text: text} }

// AgentTurn creates an agent message turn.
func AgentTurn(text string) Turn { return Turn{Kind: TurnAgent, Text: text} }

// CallTurn creates a tool-call request turn.
func CallTurn(call ToolCall) Turn { return Turn{Kind: TurnToolCall, Call: &call} }

// ResultTurn creates a tool-result turn.
func ResultTurn(res ToolResult) Turn { return Turn{Kind: TurnToolResult, Result: &res} }

// Role returns the chat role a backend should use for this turn.
func (t Turn) Role() string {
	switch t.Kind {
	case TurnUser:
		return "user"
	case TurnToolResult:
		return "tool"
	default:
		return "assistant"
	}
}

// Content renders the turn as flat text for export and for backends that
// have no native tool-call representation.
func (t Turn) Content() string {
	switch t.Kind {
	case TurnToolCall:
		if t.Call == nil {
			return ""
		}
		b, _ := json.Marshal(t.Call)
		return string(b)
	case TurnToolResult:
		if t.Result == nil {
			return ""
		}
		b, _ := json.Marshal(t.Result)
		return string(b)
	default:
		return t.Text
	}
}

func (t Turn) clone() Turn {
	if t.Call != nil {
		c := *t.Call
		c.Arguments = append(json.RawMessage(nil), c.Arguments...)
		t.Call = &c
	}
	if t.Result != nil {
		r := *t.Result
		r.Payload = append(json.RawMessage(nil), r.Payload...)
		t.Result = &r
	}
	return t
}
