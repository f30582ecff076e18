// Copyright (c) Microsoft. All rights reserved.

package openai

import (
	"context"
	"fmt"
	"io"

	ak "github.com/agentplayground/agentkit/agentkit"
)

// Client implements [agentkit.Backend] using the OpenAI Chat Completions
// API. Use [New] to create one.
type Client struct {
	tp    transport
	model string
}

// Verify interface compliance at compile time.
var _ ak.Backend = (*Client)(nil)

// New creates an OpenAI [Client] with the given API key and options.
//
//	client := openai.New(os.Getenv("OPENAI_API_KEY"),
//	    openai.WithModel("gpt-4o-mini"),
//	)
func New(apiKey string, opts ...Option) *Client {
	cfg := &clientConfig{}
	for _, o := range opts {
		o(cfg)
	}
	return &Client{
		tp:    newHTTPTransport(apiKey, cfg),
		model: cfg.model,
	}
}

// newWithTransport creates a Client with a custom transport (for testing).
func newWithTransport(tp transport, model string) *Client {
	return &Client{tp: tp, model: model}
}

// Model returns the default model name.
func (c *Client) Model() string { return c.model }

// Complete sends one non-streaming chat completion request.
func (c *Client) Complete(ctx context.Context, mr *ak.ModelRequest) (*ak.ModelResponse, error) {
	req := buildRequest(mr, c.model)

	resp, err := c.tp.do(ctx, "POST", "/chat/completions", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: read response body: %v", ak.ErrBackendUnavailable, err)
	}

	raw, err := unmarshalChatResponse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", ak.ErrInvalidResponse, err)
	}
	if len(raw.Choices) == 0 {
		return nil, fmt.Errorf("%w: response has no choices", ak.ErrInvalidResponse)
	}

	return parseChatResponse(raw), nil
}

// Ping checks that the endpoint is reachable and the credentials work by
// listing models.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.tp.do(ctx, "GET", "/models", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
