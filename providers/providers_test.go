// Copyright (c) Microsoft. All rights reserved.

package providers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	ak "github.com/agentplayground/agentkit/agentkit"
	"github.com/agentplayground/agentkit/config"
	"github.com/agentplayground/agentkit/providers"
)

func cfgFor(provider string) *config.Config {
	cfg := config.Default()
	cfg.Model.Provider = provider
	return cfg
}

func TestNew_Offline(t *testing.T) {
	p, err := providers.New(context.Background(), cfgFor(config.ProviderOffline))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()
	if p.Name != config.ProviderOffline || p.Model != "offline-rules" {
		t.Errorf("provider = %+v", p)
	}
	if err := p.Ping(context.Background()); !errors.Is(err, providers.ErrNoPing) {
		t.Errorf("Ping = %v", err)
	}

	d := ak.NewDispatcher(p.Backend, nil, p.DispatcherOptions(config.Default().Session)...)
	res, err := d.Run(context.Background(), ak.NewSession(), "hello")
	if err != nil || res.Answer == "" {
		t.Errorf("Run = %+v, %v", res, err)
	}
}

func TestNew_MissingKeys(t *testing.T) {
	for _, name := range []string{config.ProviderOpenAI, config.ProviderAnthropic, config.ProviderGemini} {
		t.Run(name, func(t *testing.T) {
			_, err := providers.New(context.Background(), cfgFor(name))
			if !errors.Is(err, ak.ErrAuth) {
				t.Errorf("err = %v", err)
			}
		})
	}
}

func TestNew_Hosted(t *testing.T) {
	cfg := cfgFor(config.ProviderOpenAI)
	cfg.Secrets.OpenAIKey = "sk-test"
	cfg.Model.Model = "gpt-4.1-mini"
	p, err := providers.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Model != "gpt-4.1-mini" || len(p.Middleware) != 0 {
		t.Errorf("provider = %+v", p)
	}

	cfg = cfgFor(config.ProviderAzure)
	cfg.Model.AzureEndpoint = "https://example.openai.azure.com/openai/deployments/gpt-4o"
	cfg.Secrets.AzureKey = "azure-key"
	if _, err := providers.New(context.Background(), cfg); err != nil {
		t.Errorf("azure: %v", err)
	}

	cfg = cfgFor(config.ProviderAnthropic)
	cfg.Secrets.AnthropicKey = "sk-ant"
	cfg.Model.Model = "claude-haiku-4-5"
	p, err = providers.New(context.Background(), cfg)
	if err != nil || p.Model != "claude-haiku-4-5" {
		t.Errorf("anthropic = %+v, %v", p, err)
	}
}

func TestNew_OllamaAddsTextCallRecovery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[{"name":"qwen2.5:7b","model":"qwen2.5:7b"}]}`))
	}))
	defer srv.Close()

	cfg := cfgFor(config.ProviderOllama)
	cfg.Model.BaseURL = srv.URL
	cfg.Model.Model = "qwen2.5:7b"
	p, err := providers.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(p.Middleware) != 1 {
		t.Errorf("middleware = %d", len(p.Middleware))
	}
	if err := p.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestNew_Unknown(t *testing.T) {
	if _, err := providers.New(context.Background(), cfgFor("bedrock")); err == nil {
		t.Error("expected error")
	}
}
