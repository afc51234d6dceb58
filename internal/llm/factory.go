package llm

import (
	"fmt"
	"log/slog"
	"strings"
)

// NewProvider builds an adapter for a vendor kind.
func NewProvider(kind, name string, cfg ProviderConfig, logger *slog.Logger) (Provider, error) {
	if name == "" {
		name = kind
	}
	switch strings.ToLower(kind) {
	case "openai":
		return NewOpenAIProvider(name, cfg, logger), nil
	case "groq":
		return NewGroqProvider(name, cfg, logger), nil
	case "openrouter":
		return NewOpenRouterProvider(name, cfg, logger), nil
	case "anthropic", "claude":
		return NewAnthropicProvider(name, cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", kind)
	}
}
