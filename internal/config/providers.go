package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/reckon/internal/llm"
)

// ProviderEntry is one provider declared in the providers file.
type ProviderEntry struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"`
	APIKeyEnv string `yaml:"api_key_env"`
	Default   bool   `yaml:"default"`

	llm.ProviderConfig `yaml:",inline"`
	Breaker            llm.BreakerConfig `yaml:"breaker"`
}

type providersFile struct {
	Providers []ProviderEntry `yaml:"providers"`
}

// LoadProviders reads provider entries from a YAML file. An api_key_env
// reference is resolved from the environment when api_key is blank.
func LoadProviders(path string) ([]ProviderEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}

	var f providersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse providers file: %w", err)
	}

	seen := make(map[string]bool, len(f.Providers))
	for i := range f.Providers {
		e := &f.Providers[i]
		if e.Kind == "" {
			return nil, fmt.Errorf("provider %d: kind is required", i)
		}
		if e.Name == "" {
			e.Name = e.Kind
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("provider %q declared twice", e.Name)
		}
		seen[e.Name] = true
		if e.APIKey == "" && e.APIKeyEnv != "" {
			e.APIKey = os.Getenv(e.APIKeyEnv)
		}
	}
	return f.Providers, nil
}

// EnvProviders derives provider entries from the *_API_KEY variables. Only
// vendors with a key are returned.
func (c Config) EnvProviders() []ProviderEntry {
	var out []ProviderEntry
	add := func(name, key, model string, timeout time.Duration) {
		if key == "" {
			return
		}
		out = append(out, ProviderEntry{
			Name:    name,
			Kind:    name,
			Default: c.DefaultProvider == name,
			ProviderConfig: llm.ProviderConfig{
				APIKey:      key,
				Model:       model,
				Temperature: 0.1,
				Timeout:     timeout,
			},
		})
	}
	add("groq", c.GroqAPIKey, c.GroqModel, c.LLMTimeout)
	add("openrouter", c.OpenRouterAPIKey, c.OpenRouterModel, c.LLMTimeout)
	add("openai", c.OpenAIAPIKey, c.OpenAIModel, c.LLMTimeout)
	add("anthropic", c.AnthropicAPIKey, c.AnthropicModel, c.LLMTimeout)
	return out
}
