// Copyright (c) Microsoft. All rights reserved.

// Package ollama provides an [agentkit.Backend] for a local Ollama server.
//
// Smaller local models often answer with tool calls written as JSON text
// instead of native tool calls. Pair the client with
// [agentkit.TextToolCallMiddleware] to recover them.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	ak "github.com/agentplayground/agentkit/agentkit"
)

const (
	// DefaultHost is used when neither the option nor OLLAMA_HOST is set.
	DefaultHost  = "http://localhost:11434"
	defaultModel = "llama3.1:latest"
	pingTimeout  = 5 * time.Second
)

// Client implements [agentkit.Backend] over the Ollama chat API.
type Client struct {
	api   *api.Client
	host  string
	model string
}

var _ ak.Backend = (*Client)(nil)

// Option configures a [Client].
type Option func(*config)

type config struct {
	httpClient *http.Client
	model      string
}

// WithModel sets the model to chat with.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithHTTPClient provides a custom http.Client for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// New creates a Client for the server at host. An empty host means
// [DefaultHost].
func New(host string, opts ...Option) (*Client, error) {
	cfg := &config{model: defaultModel, httpClient: http.DefaultClient}
	for _, o := range opts {
		o(cfg)
	}
	if host == "" {
		host = DefaultHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid host %q: %w", host, err)
	}
	return &Client{
		api:   api.NewClient(u, cfg.httpClient),
		host:  host,
		model: cfg.model,
	}, nil
}

// Model returns the default model name.
func (c *Client) Model() string { return c.model }

// Complete sends one non-streaming chat request.
func (c *Client) Complete(ctx context.Context, req *ak.ModelRequest) (*ak.ModelResponse, error) {
	chatReq, err := c.buildRequest(req)
	if err != nil {
		return nil, err
	}

	var final api.ChatResponse
	var content []byte
	err = c.api.Chat(ctx, chatReq, func(r api.ChatResponse) error {
		content = append(content, r.Message.Content...)
		final.Message.ToolCalls = append(final.Message.ToolCalls, r.Message.ToolCalls...)
		if r.Done {
			final.Model = r.Model
			final.DoneReason = r.DoneReason
			final.Metrics = r.Metrics
		}
		return nil
	})
	if err != nil {
		return nil, classify(ctx, err)
	}

	resp := &ak.ModelResponse{
		Content:      string(content),
		ModelID:      final.Model,
		FinishReason: final.DoneReason,
		Usage: ak.UsageDetails{
			InputTokens:  final.PromptEvalCount,
			OutputTokens: final.EvalCount,
			TotalTokens:  final.PromptEvalCount + final.EvalCount,
		},
	}
	for _, tc := range final.Message.ToolCalls {
		args, err := json.Marshal(tc.Function.Arguments)
		if err != nil || string(args) == "null" {
			args = []byte("{}")
		}
		resp.ToolCalls = append(resp.ToolCalls, ak.ToolCall{
			// Ollama does not identify calls, so the backend mints IDs.
			ID:        ak.NewCallID(),
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return resp, nil
}

// Ping checks the server is reachable by listing local models.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := c.api.List(ctx); err != nil {
		return classify(ctx, err)
	}
	return nil
}

// Models lists the models installed on the server.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	resp, err := c.api.List(ctx)
	if err != nil {
		return nil, classify(ctx, err)
	}
	names := make([]string, len(resp.Models))
	for i, m := range resp.Models {
		names[i] = m.Name
	}
	return names, nil
}

func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		msg := statusErr.ErrorMessage
		if msg == "" {
			msg = statusErr.Status
		}
		return ak.NewServiceError(statusErr.StatusCode, "", msg)
	}
	return fmt.Errorf("%w: ollama: %v", ak.ErrBackendUnavailable, err)
}
