package llm

import (
	"context"
	"fmt"
	"time"
)

// Role identifies the author of a dialogue message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single vendor-neutral dialogue turn.
type Message struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewMessage stamps a message with the current time.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, CreatedAt: time.Now().UTC()}
}

// ValidateDialogue checks role values and that a system message, if any, comes first.
func ValidateDialogue(msgs []Message) error {
	for i, m := range msgs {
		switch m.Role {
		case RoleSystem:
			if i != 0 {
				return fmt.Errorf("system message at position %d, must be first", i)
			}
		case RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("unknown role %q at position %d", m.Role, i)
		}
	}
	return nil
}

// ProviderConfig holds the generation parameters an adapter is built with.
// Adapters copy it at construction; it is never mutated afterwards.
type ProviderConfig struct {
	APIKey           string        `yaml:"api_key"`
	BaseURL          string        `yaml:"base_url"`
	Model            string        `yaml:"model"`
	Temperature      float64       `yaml:"temperature"`
	MaxTokens        int           `yaml:"max_tokens"`
	TopP             float64       `yaml:"top_p"`
	FrequencyPenalty float64       `yaml:"frequency_penalty"`
	PresencePenalty  float64       `yaml:"presence_penalty"`
	Timeout          time.Duration `yaml:"timeout"`
}

const (
	defaultTimeout   = 60 * time.Second
	defaultMaxTokens = 4096
)

func (c ProviderConfig) withDefaults() ProviderConfig {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	return c
}

// Result is the normalized outcome of a completion call.
type Result struct {
	Content        string
	Model          string
	TokensUsed     int
	FinishReason   string
	ProcessingTime time.Duration
	Metadata       map[string]any
}

// Cost estimates the USD price of the call from the static price table.
// Unknown models cost zero.
func (r *Result) Cost() float64 {
	return EstimateCost(r.Model, r.TokensUsed)
}

// StreamChunk is one incremental piece of a streamed completion.
type StreamChunk struct {
	Content      string
	FinishReason string
	Done         bool
}

// Provider is one LLM vendor behind the vendor-neutral call shape.
type Provider interface {
	// Name returns the logical provider name (e.g. "groq").
	Name() string
	// Complete sends the dialogue and returns the normalized result.
	Complete(ctx context.Context, msgs []Message) (*Result, error)
}

// StreamingProvider is a Provider that can also stream.
type StreamingProvider interface {
	Provider
	Stream(ctx context.Context, msgs []Message) (<-chan StreamChunk, error)
}
