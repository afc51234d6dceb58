package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port          int
	NatsURL       string
	NatsToken     string
	DatabaseURL   string
	LogLevel      string
	APIToken      string
	Timezone      string
	Schedule      string
	FallbackOrder []string
	ProvidersFile string

	GroqAPIKey       string
	GroqModel        string
	OpenRouterAPIKey string
	OpenRouterModel  string
	OpenAIAPIKey     string
	OpenAIModel      string
	AnthropicAPIKey  string
	AnthropicModel   string
	DefaultProvider  string
	LLMTimeout       time.Duration

	PlaneURL       string
	PlaneAPIKey    string
	PlaneWorkspace string
	TrackerRPS     int

	SlackBotToken string
	SlackChannel  string
	JournalUserID string
}

func Load() Config {
	return Config{
		Port:          envInt("RECKON_PORT", 8760),
		NatsURL:       envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:     envStr("NATS_TOKEN", ""),
		DatabaseURL:   envStr("DATABASE_URL", ""),
		LogLevel:      envStr("LOG_LEVEL", "info"),
		APIToken:      envStr("RECKON_API_TOKEN", ""),
		Timezone:      envStr("RECKON_TIMEZONE", "Europe/Moscow"),
		Schedule:      envStr("RECKON_SCHEDULE", "0 19 * * 1-5"),
		FallbackOrder: envList("RECKON_FALLBACK", []string{"groq", "openrouter"}),
		ProvidersFile: envStr("RECKON_PROVIDERS_FILE", ""),

		GroqAPIKey:       envStr("GROQ_API_KEY", ""),
		GroqModel:        envStr("GROQ_MODEL", "llama-3.3-70b-versatile"),
		OpenRouterAPIKey: envStr("OPENROUTER_API_KEY", ""),
		OpenRouterModel:  envStr("OPENROUTER_MODEL", "deepseek/deepseek-chat"),
		OpenAIAPIKey:     envStr("OPENAI_API_KEY", ""),
		OpenAIModel:      envStr("OPENAI_MODEL", "gpt-4o-mini"),
		AnthropicAPIKey:  envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:   envStr("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		DefaultProvider:  envStr("DEFAULT_PROVIDER", ""),
		LLMTimeout:       envDuration("LLM_TIMEOUT", 60*time.Second),

		PlaneURL:       envStr("PLANE_URL", ""),
		PlaneAPIKey:    envStr("PLANE_API_KEY", ""),
		PlaneWorkspace: envStr("PLANE_WORKSPACE", ""),
		TrackerRPS:     envInt("TRACKER_RPS", 5),

		SlackBotToken: envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:  envStr("SLACK_CHANNEL", ""),
		JournalUserID: envStr("JOURNAL_USER_ID", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma separated value, dropping blanks.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
