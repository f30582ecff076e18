// Copyright (c) Microsoft. All rights reserved.

package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	ak "github.com/agentplayground/agentkit/agentkit"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	azureScope     = "https://cognitiveservices.azure.com/.default"
)

// transport is an unexported interface for HTTP communication.
// The default implementation uses net/http; tests inject a mock.
type transport interface {
	do(ctx context.Context, method, path string, body any) (*http.Response, error)
}

// httpTransport is the default transport using net/http.
type httpTransport struct {
	client          *http.Client
	baseURL         string
	apiKey          string
	apiVersion      string
	org             string
	headers         map[string]string
	azureCredential azcore.TokenCredential
}

func newHTTPTransport(apiKey string, opts *clientConfig) *httpTransport {
	t := &httpTransport{
		client:          opts.httpClient,
		baseURL:         opts.baseURL,
		apiKey:          apiKey,
		apiVersion:      opts.apiVersion,
		org:             opts.organization,
		headers:         opts.headers,
		azureCredential: opts.azureCredential,
	}
	if t.client == nil {
		t.client = http.DefaultClient
	}
	if t.baseURL == "" {
		t.baseURL = defaultBaseURL
	}
	return t
}

func (t *httpTransport) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal request: %v", ak.ErrInvalidRequest, err)
		}
		bodyReader = bytes.NewReader(b)
	}

	endpoint := t.baseURL + path
	if t.apiVersion != "" {
		endpoint += "?api-version=" + url.QueryEscape(t.apiVersion)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ak.ErrInvalidRequest, err)
	}

	req.Header.Set("Content-Type", "application/json")

	switch {
	case t.azureCredential != nil:
		slog.DebugContext(ctx, "acquiring Azure AD token for Cognitive Services")
		token, err := t.azureCredential.GetToken(ctx, policy.TokenRequestOptions{
			Scopes: []string{azureScope},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: get azure token: %w", ak.ErrAuth, err)
		}
		slog.DebugContext(ctx, "using Azure AD token authentication", "token_expires_on", token.ExpiresOn)
		req.Header.Set("Authorization", "Bearer "+token.Token)
	case t.headers["api-key"] != "":
		// Azure key auth travels in the api-key header set below.
	case t.apiKey != "":
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	if t.org != "" {
		req.Header.Set("OpenAI-Organization", t.org)
	}
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		// Context errors pass through unwrapped so the dispatcher can tell a
		// timeout from a dead endpoint.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: http request: %v", ak.ErrBackendUnavailable, err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, parseErrorResponse(resp)
	}

	return resp, nil
}

// parseErrorResponse reads an error response body and returns a typed error.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var apiErr struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &apiErr)

	msg := apiErr.Error.Message
	if msg == "" {
		msg = string(body)
	}
	code := ""
	if apiErr.Error.Code != nil {
		code = fmt.Sprint(apiErr.Error.Code)
	}

	return ak.NewServiceError(resp.StatusCode, code, msg)
}
