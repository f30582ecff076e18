// Copyright (c) Microsoft. All rights reserved.

// Package gemini provides an [agentkit.Backend] for Google's Gemini models
// through the generative-ai-go SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	ak "github.com/agentplayground/agentkit/agentkit"
)

const defaultModel = "gemini-1.5-flash"

// generator performs one generation over a full conversation. The last
// content is the new user or function-response message.
type generator interface {
	generate(ctx context.Context, model *genai.GenerativeModel, contents []*genai.Content) (*genai.GenerateContentResponse, error)
}

type chatGenerator struct{}

func (chatGenerator) generate(ctx context.Context, model *genai.GenerativeModel, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	cs := model.StartChat()
	last := len(contents) - 1
	cs.History = contents[:last]
	return cs.SendMessage(ctx, contents[last].Parts...)
}

// Client implements [agentkit.Backend] over the Gemini API.
type Client struct {
	sdk   *genai.Client
	model string
	gen   generator
}

var _ ak.Backend = (*Client)(nil)

// Option configures a [Client].
type Option func(*config)

type config struct {
	model      string
	clientOpts []option.ClientOption
}

// WithModel sets the default model name.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithClientOptions passes extra options, such as a custom endpoint, to
// the SDK client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(c *config) { c.clientOpts = append(c.clientOpts, opts...) }
}

// New creates a Client authenticated with apiKey.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini: missing API key", ak.ErrAuth)
	}
	cfg := &config{model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}
	sdk, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, cfg.clientOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini init: %v", ak.ErrBackendUnavailable, err)
	}
	return &Client{sdk: sdk, model: cfg.model, gen: chatGenerator{}}, nil
}

// Model returns the default model name.
func (c *Client) Model() string { return c.model }

// Close releases the underlying SDK client.
func (c *Client) Close() error { return c.sdk.Close() }

// Complete sends the conversation and returns the model's reply.
func (c *Client) Complete(ctx context.Context, req *ak.ModelRequest) (*ak.ModelResponse, error) {
	name := c.model
	if req.Options != nil && req.Options.Model != "" {
		name = req.Options.Model
	}
	model := c.sdk.GenerativeModel(name)
	if err := configure(model, req); err != nil {
		return nil, err
	}

	contents := convertTurns(req.Conversation)
	if len(contents) == 0 {
		return nil, fmt.Errorf("%w: gemini: empty conversation", ak.ErrInvalidRequest)
	}

	resp, err := c.gen.generate(ctx, model, contents)
	if err != nil {
		return nil, classify(ctx, err)
	}
	out := parseResponse(resp)
	out.ModelID = name
	return out, nil
}

// Ping lists one model to check the key and endpoint.
func (c *Client) Ping(ctx context.Context) error {
	it := c.sdk.ListModels(ctx)
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return classify(ctx, err)
	}
	return nil
}

func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return ak.NewServiceError(400, "content_filter", blocked.Error())
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return ak.NewServiceError(apiErr.Code, "", apiErr.Message)
	}
	return fmt.Errorf("%w: gemini: %v", ak.ErrBackendUnavailable, err)
}
