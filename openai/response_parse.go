// Copyright (c) Microsoft. All rights reserved.

package openai

import (
	"encoding/json"
	"strings"

	ak "github.com/agentplayground/agentkit/agentkit"
)

// chatCompletionResponse is the OpenAI Chat Completions API response.
type chatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   *usage   `json:"usage,omitempty"`
}

type choice struct {
	Index        int         `json:"index"`
	Message      respMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type respMessage struct {
	Role      string     `json:"role"`
	Content   *string    `json:"content"`
	Refusal   *string    `json:"refusal,omitempty"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// parseChatResponse converts the OpenAI response into a backend response.
func parseChatResponse(raw *chatCompletionResponse) *ak.ModelResponse {
	resp := &ak.ModelResponse{
		ModelID: raw.Model,
	}

	if raw.Usage != nil {
		resp.Usage = ak.UsageDetails{
			InputTokens:  raw.Usage.PromptTokens,
			OutputTokens: raw.Usage.CompletionTokens,
			TotalTokens:  raw.Usage.TotalTokens,
		}
	}

	if len(raw.Choices) == 0 {
		return resp
	}

	c := raw.Choices[0]
	resp.FinishReason = c.FinishReason
	switch {
	case c.Message.Content != nil:
		resp.Content = *c.Message.Content
	case c.Message.Refusal != nil:
		resp.Content = *c.Message.Refusal
	}

	for _, tc := range c.Message.ToolCalls {
		args := strings.TrimSpace(tc.Function.Arguments)
		if args == "" {
			args = "{}"
		}
		resp.ToolCalls = append(resp.ToolCalls, ak.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(args),
		})
	}

	return resp
}

// unmarshalChatResponse parses the JSON response body.
func unmarshalChatResponse(data []byte) (*chatCompletionResponse, error) {
	var resp chatCompletionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
