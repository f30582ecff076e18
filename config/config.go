// Copyright (c) Microsoft. All rights reserved.

// Package config loads the settings shared by the sample binaries from a
// TOML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Provider names accepted in [model] provider.
const (
	ProviderOffline   = "offline"
	ProviderOpenAI    = "openai"
	ProviderAzure     = "azure"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderGemini    = "gemini"
)

// Providers lists every supported provider.
var Providers = []string{ProviderOffline, ProviderOpenAI, ProviderAzure, ProviderAnthropic, ProviderOllama, ProviderGemini}

// Config is the full sample configuration.
type Config struct {
	Model   ModelConfig   `toml:"model"`
	Session SessionConfig `toml:"session"`
	Tools   ToolsConfig   `toml:"tools"`
	Server  ServerConfig  `toml:"server"`
	Export  ExportConfig  `toml:"export"`
	MCP     []MCPServer   `toml:"mcp"`

	// Secrets are read from the environment only and never written out.
	Secrets Secrets `toml:"-"`
}

type ModelConfig struct {
	// Provider is empty until Load picks one from the available keys.
	Provider      string   `toml:"provider"`
	Model         string   `toml:"model"`
	BaseURL       string   `toml:"base_url"`
	Temperature   *float64 `toml:"temperature"`
	MaxTokens     int      `toml:"max_tokens"`
	AzureEndpoint string   `toml:"azure_endpoint"`
	APIVersion    string   `toml:"api_version"`
}

type SessionConfig struct {
	Window         int      `toml:"window"`
	MaxRounds      int      `toml:"max_rounds"`
	BackendTimeout Duration `toml:"backend_timeout"`
	ToolTimeout    Duration `toml:"tool_timeout"`
	ParallelTools  int      `toml:"parallel_tools"`
}

type ToolsConfig struct {
	// FileRoot confines the file tools. Defaults to the working directory.
	FileRoot string `toml:"file_root"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type ExportConfig struct {
	Dir string `toml:"dir"`
}

// MCPServer is an external tool server started over stdio.
type MCPServer struct {
	Name    string            `toml:"name"`
	Command string            `toml:"command"`
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`
}

// Secrets holds API credentials.
type Secrets struct {
	OpenAIKey    string
	AzureKey     string
	AnthropicKey string
	GeminiKey    string
}

// Duration is a time.Duration written as a string such as "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			MaxTokens: 2048,
		},
		Session: SessionConfig{
			Window:         40,
			MaxRounds:      8,
			BackendTimeout: Duration{90 * time.Second},
			ToolTimeout:    Duration{30 * time.Second},
			ParallelTools:  4,
		},
		Tools:  ToolsConfig{FileRoot: "."},
		Server: ServerConfig{Addr: "127.0.0.1:8080"},
		Export: ExportConfig{Dir: "exports"},
	}
}

// Load reads the TOML file at path over the defaults, then applies the
// environment. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.Model.Provider == "" {
		cfg.Model.Provider = cfg.detectProvider()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Secrets = Secrets{
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		AzureKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
		AnthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
		GeminiKey:    firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY"),
	}

	strs := map[string]*string{
		"AGENTKIT_PROVIDER":     &c.Model.Provider,
		"AGENTKIT_MODEL":        &c.Model.Model,
		"AGENTKIT_BASE_URL":     &c.Model.BaseURL,
		"AZURE_OPENAI_ENDPOINT": &c.Model.AzureEndpoint,
		"AGENTKIT_FILE_ROOT":    &c.Tools.FileRoot,
		"AGENTKIT_ADDR":         &c.Server.Addr,
		"AGENTKIT_EXPORT_DIR":   &c.Export.Dir,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" && c.Model.BaseURL == "" && c.Model.Provider == ProviderOllama {
		c.Model.BaseURL = v
	}

	ints := map[string]*int{
		"AGENTKIT_WINDOW":         &c.Session.Window,
		"AGENTKIT_MAX_ROUNDS":     &c.Session.MaxRounds,
		"AGENTKIT_PARALLEL_TOOLS": &c.Session.ParallelTools,
		"AGENTKIT_MAX_TOKENS":     &c.Model.MaxTokens,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", key, v)
		}
		*dst = n
	}

	if v := os.Getenv("AGENTKIT_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("AGENTKIT_TEMPERATURE: %q is not a number", v)
		}
		c.Model.Temperature = &f
	}
	return nil
}

// detectProvider picks the first provider with a key, falling back to
// the offline backend.
func (c *Config) detectProvider() string {
	switch {
	case c.Secrets.AzureKey != "" && c.Model.AzureEndpoint != "":
		return ProviderAzure
	case c.Secrets.OpenAIKey != "":
		return ProviderOpenAI
	case c.Secrets.AnthropicKey != "":
		return ProviderAnthropic
	case c.Secrets.GeminiKey != "":
		return ProviderGemini
	default:
		return ProviderOffline
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	known := false
	for _, p := range Providers {
		known = known || p == c.Model.Provider
	}
	if !known {
		errs = append(errs, fmt.Errorf("model.provider %q is not one of %s", c.Model.Provider, strings.Join(Providers, ", ")))
	}
	if c.Model.Provider == ProviderAzure && c.Model.AzureEndpoint == "" {
		errs = append(errs, errors.New("model.azure_endpoint is required for the azure provider"))
	}
	if t := c.Model.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("model.temperature %v is outside 0..2", *t))
	}
	if c.Model.MaxTokens < 0 {
		errs = append(errs, errors.New("model.max_tokens must not be negative"))
	}
	if c.Session.Window < 2 {
		errs = append(errs, fmt.Errorf("session.window %d must be at least 2", c.Session.Window))
	}
	if c.Session.MaxRounds < 1 {
		errs = append(errs, fmt.Errorf("session.max_rounds %d must be at least 1", c.Session.MaxRounds))
	}
	if c.Session.ParallelTools < 1 {
		errs = append(errs, fmt.Errorf("session.parallel_tools %d must be at least 1", c.Session.ParallelTools))
	}
	if c.Session.BackendTimeout.Duration < 0 || c.Session.ToolTimeout.Duration < 0 {
		errs = append(errs, errors.New("session timeouts must not be negative"))
	}
	for i, s := range c.MCP {
		if s.Name == "" || s.Command == "" {
			errs = append(errs, fmt.Errorf("mcp[%d] needs a name and a command", i))
		}
	}
	return errors.Join(errs...)
}

// Save writes cfg as TOML, creating parent directories. Secrets are not
// written.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
