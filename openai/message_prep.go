// Copyright (c) Microsoft. All rights reserved.

package openai

import (
	"encoding/json"

	ak "github.com/agentplayground/agentkit/agentkit"
)

// chatRequest is the OpenAI Chat Completions API request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   *int          `json:"max_completion_tokens,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	Tools       []toolSpec    `json:"tools,omitempty"`
	ToolChoice  any           `json:"tool_choice,omitempty"`
	User        string        `json:"user,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    *string    `json:"content,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type toolSpec struct {
	Type     string       `json:"type"`
	Function functionSpec `json:"function"`
}

type functionSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// buildRequest converts a dispatcher request into an OpenAI API request.
func buildRequest(mr *ak.ModelRequest, defaultModel string) *chatRequest {
	req := &chatRequest{
		Model: defaultModel,
	}
	if opts := mr.Options; opts != nil {
		if opts.Model != "" {
			req.Model = opts.Model
		}
		req.Temperature = opts.Temperature
		req.TopP = opts.TopP
		req.MaxTokens = opts.MaxTokens
		req.Stop = opts.Stop
		req.User = opts.User
		req.ToolChoice = convertToolChoice(opts.ToolChoice)
	}

	for _, t := range mr.Tools {
		req.Tools = append(req.Tools, toolSpec{
			Type: "function",
			Function: functionSpec{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Schema,
			},
		})
	}
	if len(req.Tools) == 0 {
		req.ToolChoice = nil
	}

	req.Messages = convertTurns(mr.Instructions, mr.Conversation)
	return req
}

// convertTurns translates transcript turns into OpenAI chat messages.
// Consecutive tool-call turns become one assistant message, as the API
// expects every call of a response to share a message.
func convertTurns(instructions string, turns []ak.Turn) []chatMessage {
	result := make([]chatMessage, 0, len(turns)+1)
	if instructions != "" {
		result = append(result, chatMessage{Role: "system", Content: str(instructions)})
	}

	for _, t := range ak.PairedConversation(turns) {
		switch t.Kind {
		case ak.TurnUser:
			result = append(result, chatMessage{Role: "user", Content: str(t.Text)})

		case ak.TurnAgent:
			result = append(result, chatMessage{Role: "assistant", Content: str(t.Text)})

		case ak.TurnToolCall:
			tc := toolCall{
				ID:   t.Call.ID,
				Type: "function",
				Function: functionCall{
					Name:      t.Call.Name,
					Arguments: argumentString(t.Call.Arguments),
				},
			}
			if n := len(result); n > 0 && result[n-1].Role == "assistant" && len(result[n-1].ToolCalls) > 0 {
				result[n-1].ToolCalls = append(result[n-1].ToolCalls, tc)
				continue
			}
			result = append(result, chatMessage{Role: "assistant", ToolCalls: []toolCall{tc}})

		case ak.TurnToolResult:
			result = append(result, chatMessage{
				Role:       "tool",
				ToolCallID: t.Result.CallID,
				Content:    str(t.Result.Content()),
			})
		}
	}

	return result
}

func convertToolChoice(tc ak.ToolChoice) any {
	switch tc {
	case "":
		return nil
	case ak.ToolChoiceAuto, ak.ToolChoiceRequired, ak.ToolChoiceNone:
		return string(tc)
	default:
		return map[string]any{
			"type":     "function",
			"function": map[string]string{"name": string(tc)},
		}
	}
}

func argumentString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

func str(s string) *string { return &s }
