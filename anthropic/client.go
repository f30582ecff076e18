// Copyright (c) Microsoft. All rights reserved.

package anthropic

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	ak "github.com/agentplayground/agentkit/agentkit"
)

// Client implements [agentkit.Backend] over the Anthropic Messages API.
type Client struct {
	sdk       anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

var _ ak.Backend = (*Client)(nil)

// New creates a Client. An empty apiKey falls back to the SDK's
// ANTHROPIC_API_KEY lookup.
func New(apiKey string, opts ...Option) *Client {
	cfg := &clientConfig{
		baseURL:    defaultBaseURL,
		model:      string(anthropic.ModelClaudeSonnet4_5_20250929),
		maxTokens:  defaultMaxTokens,
		maxRetries: 2,
	}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithBaseURL(cfg.baseURL),
		option.WithMaxRetries(cfg.maxRetries),
	}
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	if cfg.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.httpClient))
	}

	return &Client{
		sdk:       anthropic.NewClient(reqOpts...),
		model:     anthropic.Model(cfg.model),
		maxTokens: cfg.maxTokens,
	}
}

// Model returns the default model name.
func (c *Client) Model() string { return string(c.model) }

// Complete sends one Messages API request.
func (c *Client) Complete(ctx context.Context, req *ak.ModelRequest) (*ak.ModelResponse, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	msg, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return parseMessage(msg), nil
}

// Ping sends a one-token request; the API has no health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.sdk.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return classify(ctx, err)
	}
	return nil
}

func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return ak.NewServiceError(apiErr.StatusCode, "", apiErr.Error())
	}
	return fmt.Errorf("%w: %v", ak.ErrBackendUnavailable, err)
}
