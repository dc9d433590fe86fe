package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/agentcore/agentcore/internal/domain/gateway"
)

// ProviderRegistry is the provider registry file shape:
// {"default": name, "providers": {name: {...}}}.
type ProviderRegistry struct {
	Default   string                          `json:"default,omitempty"`
	Providers map[string]ProviderEntry        `json:"providers"`
}

// ProviderEntry configures one backend.
type ProviderEntry struct {
	Type        string   `json:"type"`
	APIKey      string   `json:"apiKey,omitempty"`
	BaseURL     string   `json:"baseUrl,omitempty"`
	Model       string   `json:"model,omitempty"`
	Models      []string `json:"models,omitempty"`
	MaxTokens   int      `json:"maxTokens,omitempty"`
	TimeoutSecs int      `json:"timeoutSecs,omitempty"`
	Enabled     bool     `json:"enabled"`
}

// envProvider maps a well-known API key env var to the provider it
// auto-registers when present and not already configured.
type envProvider struct {
	envVar  string
	name    string
	baseURL string
	model   string
}

var envProviders = []envProvider{
	{envVar: "ANTHROPIC_API_KEY", name: "anthropic", baseURL: "https://api.anthropic.com/v1", model: "claude-3-5-sonnet-latest"},
	{envVar: "OPENAI_API_KEY", name: "openai", baseURL: "https://api.openai.com/v1", model: "gpt-4o"},
	{envVar: "GEMINI_API_KEY", name: "gemini", baseURL: "https://generativelanguage.googleapis.com/v1beta/openai", model: "gemini-1.5-pro"},
	{envVar: "GROQ_API_KEY", name: "groq", baseURL: "https://api.groq.com/openai/v1", model: "llama-3.3-70b-versatile"},
}

// LoadProviderRegistry reads the registry file (missing file yields an
// empty registry), env-expands API keys, and auto-registers a provider
// for each well-known key env var that is set but not configured.
func LoadProviderRegistry(path string) (*ProviderRegistry, error) {
	reg := &ProviderRegistry{Providers: map[string]ProviderEntry{}}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read provider registry %s: %w", path, err)
	}
	if err == nil {
		if err := json.Unmarshal(data, reg); err != nil {
			return nil, fmt.Errorf("parse provider registry %s: %w", path, err)
		}
		if reg.Providers == nil {
			reg.Providers = map[string]ProviderEntry{}
		}
	}

	for name, p := range reg.Providers {
		p.APIKey = ExpandEnv(p.APIKey)
		p.BaseURL = ExpandEnv(p.BaseURL)
		reg.Providers[name] = p
	}

	for _, ep := range envProviders {
		if _, configured := reg.Providers[ep.name]; configured {
			continue
		}
		key := os.Getenv(ep.envVar)
		if key == "" {
			continue
		}
		reg.Providers[ep.name] = ProviderEntry{
			Type:    "http",
			APIKey:  key,
			BaseURL: ep.baseURL,
			Model:   ep.model,
			Enabled: true,
		}
	}

	if reg.Default == "" {
		for _, ep := range envProviders {
			if p, ok := reg.Providers[ep.name]; ok && p.Enabled {
				reg.Default = ep.name
				break
			}
		}
	}
	return reg, nil
}

// BuildRouter constructs the gateway router from the registry: the
// default provider is added first so fallback order starts with it.
func (reg *ProviderRegistry) BuildRouter(router *gateway.Router) error {
	add := func(name string, p ProviderEntry) error {
		models := p.Models
		if len(models) == 0 && p.Model != "" {
			models = []string{p.Model}
		}
		provider, err := gateway.CreateProvider(gateway.Config{
			Name:    name,
			Type:    p.Type,
			BaseURL: p.BaseURL,
			APIKey:  p.APIKey,
			Models:  models,
		})
		if err != nil {
			return err
		}
		router.AddProvider(provider)
		return nil
	}

	if reg.Default != "" {
		if p, ok := reg.Providers[reg.Default]; ok && p.Enabled {
			if err := add(reg.Default, p); err != nil {
				return err
			}
		}
	}
	for name, p := range reg.Providers {
		if name == reg.Default || !p.Enabled {
			continue
		}
		if err := add(name, p); err != nil {
			return err
		}
	}
	return nil
}

// DefaultModel returns the model the default provider is configured
// for, or empty when unset.
func (reg *ProviderRegistry) DefaultModel() string {
	if p, ok := reg.Providers[reg.Default]; ok {
		if p.Model != "" {
			return p.Model
		}
		if len(p.Models) > 0 {
			return p.Models[0]
		}
	}
	return ""
}
