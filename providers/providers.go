// Copyright (c) Microsoft. All rights reserved.

// Package providers turns the [model] section of a config into a ready
// backend.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	ak "github.com/agentplayground/agentkit/agentkit"
	"github.com/agentplayground/agentkit/anthropic"
	"github.com/agentplayground/agentkit/config"
	"github.com/agentplayground/agentkit/gemini"
	"github.com/agentplayground/agentkit/offline"
	"github.com/agentplayground/agentkit/ollama"
	"github.com/agentplayground/agentkit/openai"
)

// DefaultAzureAPIVersion is sent to Azure OpenAI when none is configured.
const DefaultAzureAPIVersion = "2024-10-21"

// ErrNoPing is returned by [Provider.Ping] for backends without a health
// check.
var ErrNoPing = errors.New("backend has no health check")

// Provider is a configured backend plus what a dispatcher needs to drive it.
type Provider struct {
	Name    string
	Model   string
	Backend ak.Backend
	// Options are the request defaults taken from the config.
	Options *ak.ModelOptions
	// Middleware must be installed on every dispatcher using Backend.
	Middleware []ak.BackendMiddleware

	closer io.Closer
}

type pinger interface {
	Ping(ctx context.Context) error
}

type modeler interface {
	Model() string
}

// New builds the backend named by cfg.Model.Provider.
func New(ctx context.Context, cfg *config.Config) (*Provider, error) {
	mc := cfg.Model
	p := &Provider{Name: mc.Provider, Options: modelOptions(mc)}

	switch mc.Provider {
	case config.ProviderOffline, "":
		p.Name = config.ProviderOffline
		p.Backend = offline.NewRules()

	case config.ProviderOpenAI:
		if cfg.Secrets.OpenAIKey == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", ak.ErrAuth)
		}
		opts := []openai.Option{openai.WithModel(orDefault(mc.Model, "gpt-4o-mini"))}
		if mc.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(mc.BaseURL))
		}
		p.Backend = openai.New(cfg.Secrets.OpenAIKey, opts...)

	case config.ProviderAzure:
		opts := []openai.Option{
			openai.WithBaseURL(mc.AzureEndpoint),
			openai.WithModel(orDefault(mc.Model, "gpt-4o")),
			openai.WithAPIVersion(orDefault(mc.APIVersion, DefaultAzureAPIVersion)),
		}
		if key := cfg.Secrets.AzureKey; key != "" {
			slog.DebugContext(ctx, "using Azure OpenAI key authentication", "endpoint", mc.AzureEndpoint)
			opts = append(opts, openai.WithAzureKey(key))
		} else {
			slog.DebugContext(ctx, "using DefaultAzureCredential", "endpoint", mc.AzureEndpoint)
			cred, err := azidentity.NewDefaultAzureCredential(nil)
			if err != nil {
				return nil, fmt.Errorf("%w: azure credential: %w", ak.ErrAuth, err)
			}
			opts = append(opts, openai.WithAzureCredential(cred))
		}
		p.Backend = openai.New("", opts...)

	case config.ProviderAnthropic:
		if cfg.Secrets.AnthropicKey == "" {
			return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY is not set", ak.ErrAuth)
		}
		var opts []anthropic.Option
		if mc.Model != "" {
			opts = append(opts, anthropic.WithModel(mc.Model))
		}
		if mc.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(mc.BaseURL))
		}
		if mc.MaxTokens > 0 {
			opts = append(opts, anthropic.WithMaxTokens(mc.MaxTokens))
		}
		p.Backend = anthropic.New(cfg.Secrets.AnthropicKey, opts...)

	case config.ProviderOllama:
		var opts []ollama.Option
		if mc.Model != "" {
			opts = append(opts, ollama.WithModel(mc.Model))
		}
		c, err := ollama.New(mc.BaseURL, opts...)
		if err != nil {
			return nil, err
		}
		p.Backend = c
		// Small local models often write tool calls as JSON text.
		p.Middleware = append(p.Middleware, ak.TextToolCallMiddleware(slog.Default()))

	case config.ProviderGemini:
		var opts []gemini.Option
		if mc.Model != "" {
			opts = append(opts, gemini.WithModel(mc.Model))
		}
		c, err := gemini.New(ctx, cfg.Secrets.GeminiKey, opts...)
		if err != nil {
			return nil, err
		}
		p.Backend = c
		p.closer = c

	default:
		return nil, fmt.Errorf("unknown provider %q", mc.Provider)
	}

	if m, ok := p.Backend.(modeler); ok {
		p.Model = m.Model()
	}
	slog.DebugContext(ctx, "provider ready", "provider", p.Name, "model", p.Model)
	return p, nil
}

// Ping checks that the backend is reachable and the credentials work.
func (p *Provider) Ping(ctx context.Context) error {
	pg, ok := p.Backend.(pinger)
	if !ok {
		return ErrNoPing
	}
	return pg.Ping(ctx)
}

// Close releases SDK clients that hold connections.
func (p *Provider) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// DispatcherOptions returns the options every dispatcher on this provider
// needs, followed by the session limits from cfg.
func (p *Provider) DispatcherOptions(sc config.SessionConfig) []ak.DispatcherOption {
	opts := []ak.DispatcherOption{
		ak.WithModelOptions(p.Options),
		ak.WithMaxRounds(sc.MaxRounds),
		ak.WithMaxParallelTools(sc.ParallelTools),
		ak.WithBackendTimeout(sc.BackendTimeout.Duration),
		ak.WithToolTimeout(sc.ToolTimeout.Duration),
	}
	if len(p.Middleware) > 0 {
		opts = append(opts, ak.WithBackendMiddleware(p.Middleware...))
	}
	return opts
}

func modelOptions(mc config.ModelConfig) *ak.ModelOptions {
	opts := &ak.ModelOptions{Temperature: mc.Temperature}
	if mc.MaxTokens > 0 {
		opts.MaxTokens = ak.Int(mc.MaxTokens)
	}
	return opts
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
