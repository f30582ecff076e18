// Copyright (c) Microsoft. All rights reserved.

package agentkit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// textCallPattern matches a JSON object or array, optionally wrapped in a
// markdown code fence, that makes up the whole response text.
var textCallPattern = regexp.MustCompile("(?s)^\\s*(?:`{3}(?:json)?\\s*)?[\\[{].*[\\]}](?:\\s*`{3})?\\s*$")

// TextToolCallMiddleware recovers tool calls that a model wrote as plain
// text instead of using the structured tool-call channel. Small local models
// served through Ollama do this often. Two shapes are recognized:
//
//	[{"get_weather": {"location": "Paris"}}]
//	{"name": "get_weather", "arguments": {"location": "Paris"}}
//
// A response is only rewritten when every recovered call names a tool from
// the request.
func TextToolCallMiddleware(logger *slog.Logger) BackendMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Backend) Backend {
		return BackendFunc(func(ctx context.Context, req *ModelRequest) (*ModelResponse, error) {
			resp, err := next.Complete(ctx, req)
			if err != nil || resp == nil || !resp.Final() {
				return resp, err
			}
			text := strings.TrimSpace(resp.Content)
			if text == "" || !textCallPattern.MatchString(text) {
				return resp, nil
			}

			calls, err := ParseTextToolCalls(text)
			if err != nil || len(calls) == 0 {
				logger.DebugContext(ctx, "text is not a tool call", "error", err)
				return resp, nil
			}

			known := make(map[string]bool, len(req.Tools))
			for _, t := range req.Tools {
				known[t.Name] = true
			}
			for _, c := range calls {
				if !known[c.Name] {
					logger.DebugContext(ctx, "text names an unknown tool", "tool", c.Name)
					return resp, nil
				}
			}

			logger.InfoContext(ctx, "converted text to tool calls", "count", len(calls))
			out := *resp
			out.Content = ""
			out.ToolCalls = calls
			return &out, nil
		})
	}
}

// ParseTextToolCalls parses tool calls written as JSON text.
func ParseTextToolCalls(text string) ([]ToolCall, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var items []map[string]json.RawMessage
	if strings.HasPrefix(text, "{") {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			return nil, fmt.Errorf("invalid JSON object: %w", err)
		}
		items = append(items, obj)
	} else if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, fmt.Errorf("invalid JSON array: %w", err)
	}

	calls := make([]ToolCall, 0, len(items))
	for i, obj := range items {
		call, err := textCall(obj)
		if err != nil {
			return nil, fmt.Errorf("tool call %d: %w", i, err)
		}
		call.ID = NewCallID()
		calls = append(calls, call)
	}
	return calls, nil
}

func textCall(obj map[string]json.RawMessage) (ToolCall, error) {
	if rawName, ok := obj["name"]; ok {
		var name string
		if err := json.Unmarshal(rawName, &name); err != nil || name == "" {
			return ToolCall{}, fmt.Errorf("name must be a non-empty string")
		}
		args := obj["arguments"]
		if args == nil {
			args = obj["parameters"]
		}
		return ToolCall{Name: name, Arguments: compact(args)}, nil
	}
	if len(obj) != 1 {
		return ToolCall{}, fmt.Errorf("expected 1 key, got %d", len(obj))
	}
	for name, args := range obj {
		return ToolCall{Name: name, Arguments: compact(args)}, nil
	}
	return ToolCall{}, fmt.Errorf("empty object")
}

func compact(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return raw
	}
	return b
}
