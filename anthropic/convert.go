// Copyright (c) Microsoft. All rights reserved.

package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	ak "github.com/agentplayground/agentkit/agentkit"
)

func (c *Client) buildParams(req *ak.ModelRequest) (anthropic.MessageNewParams, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  convertTurns(req.Conversation),
	}
	if req.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
	}

	toolChoice := ak.ToolChoiceAuto
	if opts := req.Options; opts != nil {
		if opts.Model != "" {
			params.Model = anthropic.Model(opts.Model)
		}
		if opts.MaxTokens != nil {
			params.MaxTokens = int64(*opts.MaxTokens)
		}
		if opts.Temperature != nil {
			params.Temperature = anthropic.Float(*opts.Temperature)
		}
		if opts.TopP != nil {
			params.TopP = anthropic.Float(*opts.TopP)
		}
		params.StopSequences = opts.Stop
		if opts.ToolChoice != "" {
			toolChoice = opts.ToolChoice
		}
	}

	// "none" is expressed by not offering tools at all.
	if toolChoice == ak.ToolChoiceNone || len(req.Tools) == 0 {
		return params, nil
	}

	tools, err := convertTools(req.Tools)
	if err != nil {
		return params, err
	}
	params.Tools = tools

	switch toolChoice {
	case ak.ToolChoiceAuto:
	case ak.ToolChoiceRequired:
		params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
	default:
		params.ToolChoice = anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: string(toolChoice)}}
	}
	return params, nil
}

func convertTools(specs []ak.ToolSpec) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		var schema struct {
			Properties map[string]any `json:"properties"`
			Required   []string       `json:"required"`
		}
		if len(spec.Schema) > 0 {
			if err := json.Unmarshal(spec.Schema, &schema); err != nil {
				return nil, fmt.Errorf("%w: schema for %q: %v", ak.ErrInvalidRequest, spec.Name, err)
			}
		}
		input := anthropic.ToolInputSchemaParam{Properties: schema.Properties}
		if len(schema.Required) > 0 {
			input.Required = schema.Required
		}
		tool := anthropic.ToolUnionParamOfTool(input, spec.Name)
		if spec.Description != "" {
			tool.OfTool.Description = anthropic.String(spec.Description)
		}
		out = append(out, tool)
	}
	return out, nil
}

// convertTurns maps the transcript onto alternating Messages API turns.
// Calls of one response share an assistant message and their results share
// the following user message.
func convertTurns(turns []ak.Turn) []anthropic.MessageParam {
	var (
		msgs  []anthropic.MessageParam
		role  anthropic.MessageParamRole
		batch []anthropic.ContentBlockParamUnion
	)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		msgs = append(msgs, anthropic.MessageParam{Role: role, Content: batch})
		batch = nil
	}
	add := func(r anthropic.MessageParamRole, block anthropic.ContentBlockParamUnion) {
		if r != role {
			flush()
			role = r
		}
		batch = append(batch, block)
	}

	for _, t := range ak.UserAnchored(turns) {
		switch t.Kind {
		case ak.TurnUser:
			add(anthropic.MessageParamRoleUser, anthropic.NewTextBlock(t.Text))
		case ak.TurnAgent:
			if strings.TrimSpace(t.Text) == "" {
				continue
			}
			add(anthropic.MessageParamRoleAssistant, anthropic.NewTextBlock(t.Text))
		case ak.TurnToolCall:
			input := t.Call.Arguments
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			add(anthropic.MessageParamRoleAssistant, anthropic.NewToolUseBlock(t.Call.ID, input, t.Call.Name))
		case ak.TurnToolResult:
			add(anthropic.MessageParamRoleUser,
				anthropic.NewToolResultBlock(t.Result.CallID, t.Result.Content(), !t.Result.Success))
		}
	}
	flush()
	return msgs
}

func parseMessage(msg *anthropic.Message) *ak.ModelResponse {
	resp := &ak.ModelResponse{
		ModelID:      string(msg.Model),
		FinishReason: string(msg.StopReason),
		Usage: ak.UsageDetails{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}

	var text strings.Builder
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			args := b.Input
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			resp.ToolCalls = append(resp.ToolCalls, ak.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: append(json.RawMessage(nil), args...),
			})
		}
	}
	resp.Content = text.String()
	return resp
}
