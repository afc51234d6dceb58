package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	openAIBaseURL     = "https://api.openai.com/v1"
	groqBaseURL       = "https://api.groq.com/openai/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"
)

var (
	_ StreamingProvider = (*OpenAIProvider)(nil)
	_ StreamingProvider = (*AnthropicProvider)(nil)
)

// OpenAIProvider speaks the OpenAI chat-completions dialect. Groq and
// OpenRouter expose the same dialect and are built on it.
type OpenAIProvider struct {
	name    string
	cfg     ProviderConfig
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewOpenAIProvider creates an adapter for api.openai.com or any compatible endpoint.
func NewOpenAIProvider(name string, cfg ProviderConfig, logger *slog.Logger) *OpenAIProvider {
	return newOpenAICompatible(name, cfg, openAIBaseURL, &http.Client{}, logger)
}

// NewGroqProvider creates an adapter for Groq's OpenAI-compatible API.
func NewGroqProvider(name string, cfg ProviderConfig, logger *slog.Logger) *OpenAIProvider {
	return newOpenAICompatible(name, cfg, groqBaseURL, &http.Client{}, logger)
}

// openRouterTransport adds the attribution headers OpenRouter asks for.
type openRouterTransport struct {
	base http.RoundTripper
}

func (t *openRouterTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("HTTP-Referer", "https://github.com/MikeSquared-Agency/reckon")
	clone.Header.Set("X-Title", "reckon")
	return t.base.RoundTrip(clone)
}

// NewOpenRouterProvider creates an adapter for OpenRouter.
func NewOpenRouterProvider(name string, cfg ProviderConfig, logger *slog.Logger) *OpenAIProvider {
	client := &http.Client{Transport: &openRouterTransport{base: http.DefaultTransport}}
	return newOpenAICompatible(name, cfg, openRouterBaseURL, client, logger)
}

func newOpenAICompatible(name string, cfg ProviderConfig, defaultURL string, client *http.Client, logger *slog.Logger) *OpenAIProvider {
	cfg = cfg.withDefaults()
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultURL
	}
	return &OpenAIProvider{
		name:    name,
		cfg:     cfg,
		baseURL: baseURL,
		client:  client,
		logger:  logger,
	}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return p.name }

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model            string          `json:"model"`
	Messages         []openaiMessage `json:"messages"`
	Temperature      float64         `json:"temperature"`
	MaxTokens        int             `json:"max_tokens,omitempty"`
	TopP             float64         `json:"top_p,omitempty"`
	FrequencyPenalty float64         `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64         `json:"presence_penalty,omitempty"`
	Stream           bool            `json:"stream,omitempty"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openaiResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      openaiMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage *openaiUsage `json:"usage"`
}

type openaiStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

func (p *OpenAIProvider) buildRequest(msgs []Message, stream bool) ([]byte, error) {
	req := openaiRequest{
		Model:            p.cfg.Model,
		Messages:         make([]openaiMessage, 0, len(msgs)),
		Temperature:      p.cfg.Temperature,
		MaxTokens:        p.cfg.MaxTokens,
		TopP:             p.cfg.TopP,
		FrequencyPenalty: p.cfg.FrequencyPenalty,
		PresencePenalty:  p.cfg.PresencePenalty,
		Stream:           stream,
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, openaiMessage{Role: string(m.Role), Content: m.Content})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return body, nil
}

func (p *OpenAIProvider) headers() map[string]string {
	h := map[string]string{}
	if p.cfg.APIKey != "" {
		h["Authorization"] = "Bearer " + p.cfg.APIKey
	}
	return h
}

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, msgs []Message) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	start := time.Now()

	body, err := p.buildRequest(msgs, false)
	if err != nil {
		return nil, err
	}

	respBody, err := postJSON(ctx, p.client, p.name, p.baseURL+"/chat/completions", body, p.headers())
	if err != nil {
		return nil, err
	}

	var apiResp openaiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("%s: empty response choices", p.name)
	}

	var usage openaiUsage
	if apiResp.Usage != nil {
		usage = *apiResp.Usage
	}
	total := usage.TotalTokens
	if total == 0 {
		total = usage.PromptTokens + usage.CompletionTokens
	}
	model := apiResp.Model
	if model == "" {
		model = p.cfg.Model
	}

	result := &Result{
		Content:        apiResp.Choices[0].Message.Content,
		Model:          model,
		TokensUsed:     total,
		FinishReason:   apiResp.Choices[0].FinishReason,
		ProcessingTime: time.Since(start),
		Metadata: map[string]any{
			"provider":          p.name,
			"response_id":       apiResp.ID,
			"prompt_tokens":     usage.PromptTokens,
			"completion_tokens": usage.CompletionTokens,
		},
	}
	p.logger.Debug("llm completion",
		"provider", p.name,
		"model", result.Model,
		"tokens", result.TokensUsed,
		"duration_ms", result.ProcessingTime.Milliseconds(),
	)
	return result, nil
}

// Stream implements StreamingProvider.
func (p *OpenAIProvider) Stream(ctx context.Context, msgs []Message) (<-chan StreamChunk, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)

	body, err := p.buildRequest(msgs, true)
	if err != nil {
		cancel()
		return nil, err
	}

	stream, err := postStream(ctx, p.client, p.name, p.baseURL+"/chat/completions", body, p.headers())
	if err != nil {
		cancel()
		return nil, err
	}

	return decodeSSE(ctx, stream, cancel, func(data []byte) (*StreamChunk, error) {
		var chunk openaiStreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			return nil, err
		}
		if len(chunk.Choices) == 0 {
			return nil, nil
		}
		c := chunk.Choices[0]
		out := &StreamChunk{Content: c.Delta.Content}
		if c.FinishReason != nil && *c.FinishReason != "" {
			out.FinishReason = *c.FinishReason
		}
		return out, nil
	}), nil
}
