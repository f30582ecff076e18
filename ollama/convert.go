// Copyright (c) Microsoft. All rights reserved.

package ollama

import (
	"encoding/json"
	"fmt"

	"github.com/ollama/ollama/api"

	ak "github.com/agentplayground/agentkit/agentkit"
)

func (c *Client) buildRequest(req *ak.ModelRequest) (*api.ChatRequest, error) {
	stream := false
	chatReq := &api.ChatRequest{
		Model:    c.model,
		Messages: convertTurns(req.Instructions, req.Conversation),
		Stream:   &stream,
	}

	offerTools := len(req.Tools) > 0
	if opts := req.Options; opts != nil {
		if opts.Model != "" {
			chatReq.Model = opts.Model
		}
		options := make(map[string]any)
		if opts.Temperature != nil {
			options["temperature"] = *opts.Temperature
		}
		if opts.TopP != nil {
			options["top_p"] = *opts.TopP
		}
		if opts.MaxTokens != nil {
			options["num_predict"] = *opts.MaxTokens
		}
		if len(opts.Stop) > 0 {
			options["stop"] = opts.Stop
		}
		for k, v := range opts.Extra {
			options[k] = v
		}
		if len(options) > 0 {
			chatReq.Options = options
		}
		if opts.ToolChoice == ak.ToolChoiceNone {
			offerTools = false
		}
	}

	if offerTools {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return nil, err
		}
		chatReq.Tools = tools
	}
	return chatReq, nil
}

// convertTools decodes each tool's JSON schema straight into Ollama's
// parameter type, which accepts the same shape.
func convertTools(specs []ak.ToolSpec) ([]api.Tool, error) {
	tools := make([]api.Tool, 0, len(specs))
	for _, spec := range specs {
		var params api.ToolFunctionParameters
		if len(spec.Schema) > 0 {
			if err := json.Unmarshal(spec.Schema, &params); err != nil {
				return nil, fmt.Errorf("%w: schema for %q: %v", ak.ErrInvalidRequest, spec.Name, err)
			}
		}
		if params.Type == "" {
			params.Type = "object"
		}
		tools = append(tools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  params,
			},
		})
	}
	return tools, nil
}

func convertTurns(instructions string, turns []ak.Turn) []api.Message {
	msgs := make([]api.Message, 0, len(turns)+1)
	if instructions != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: instructions})
	}

	for _, t := range ak.PairedConversation(turns) {
		switch t.Kind {
		case ak.TurnUser:
			msgs = append(msgs, api.Message{Role: "user", Content: t.Text})
		case ak.TurnAgent:
			msgs = append(msgs, api.Message{Role: "assistant", Content: t.Text})
		case ak.TurnToolCall:
			var args map[string]any
			if len(t.Call.Arguments) > 0 {
				_ = json.Unmarshal(t.Call.Arguments, &args)
			}
			call := api.ToolCall{Function: api.ToolCallFunction{Name: t.Call.Name, Arguments: args}}
			if n := len(msgs); n > 0 && msgs[n-1].Role == "assistant" && len(msgs[n-1].ToolCalls) > 0 {
				msgs[n-1].ToolCalls = append(msgs[n-1].ToolCalls, call)
				continue
			}
			msgs = append(msgs, api.Message{Role: "assistant", ToolCalls: []api.ToolCall{call}})
		case ak.TurnToolResult:
			msgs = append(msgs, api.Message{
				Role:     "tool",
				Content:  t.Result.Content(),
				ToolName: t.Result.Name,
			})
		}
	}
	return msgs
}
