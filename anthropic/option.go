// Copyright (c) Microsoft. All rights reserved.

package anthropic

import "net/http"

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultMaxTokens = 4096
)

type clientConfig struct {
	baseURL    string
	model      string
	maxTokens  int64
	httpClient *http.Client
	maxRetries int
}

// Option configures an Anthropic [Client].
type Option func(*clientConfig)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) { c.baseURL = url }
}

// WithModel sets the default model for requests.
func WithModel(model string) Option {
	return func(c *clientConfig) { c.model = model }
}

// WithMaxTokens sets the default output token cap. The Messages API
// requires one on every request.
func WithMaxTokens(n int) Option {
	return func(c *clientConfig) { c.maxTokens = int64(n) }
}

// WithHTTPClient provides a custom http.Client for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = client }
}

// WithMaxRetries sets how often the SDK retries transient failures.
func WithMaxRetries(n int) Option {
	return func(c *clientConfig) { c.maxRetries = n }
}
