// Copyright (c) Microsoft. All rights reserved.

package openai

import (
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// clientConfig holds resolved configuration for the OpenAI client.
type clientConfig struct {
	baseURL         string
	organization    string
	httpClient      *http.Client
	headers         map[string]string
	model           string
	azureCredential azcore.TokenCredential
	apiVersion      string
}

// Option configures an OpenAI [Client].
type Option func(*clientConfig)

// WithBaseURL overrides the API base URL (e.g., for Azure OpenAI or proxies).
func WithBaseURL(url string) Option {
	return func(c *clientConfig) { c.baseURL = url }
}

// WithOrganization sets the OpenAI organization header.
func WithOrganization(org string) Option {
	return func(c *clientConfig) { c.organization = org }
}

// WithHTTPClient provides a custom http.Client for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = client }
}

// WithHeaders adds custom headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *clientConfig) { c.headers = headers }
}

// WithModel sets the default model for requests.
func WithModel(model string) Option {
	return func(c *clientConfig) { c.model = model }
}

// WithAzureCredential enables Azure AD token authentication using the provided credential.
// When set, the client will obtain and refresh tokens automatically instead of using API keys.
func WithAzureCredential(cred azcore.TokenCredential) Option {
	return func(c *clientConfig) { c.azureCredential = cred }
}

// WithAPIVersion appends an api-version query parameter to every request,
// as Azure OpenAI deployment endpoints require.
func WithAPIVersion(v string) Option {
	return func(c *clientConfig) { c.apiVersion = v }
}

// WithAzureKey authenticates with an Azure "api-key" header instead of a
// bearer token.
func WithAzureKey(key string) Option {
	return func(c *clientConfig) {
		headers := make(map[string]string, len(c.headers)+1)
		for k, v := range c.headers {
			headers[k] = v
		}
		headers["api-key"] = key
		c.headers = headers
	}
}
