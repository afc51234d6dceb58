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
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

// AnthropicProvider speaks the Anthropic Messages API, which takes the system
// prompt as a top-level field rather than a message.
type AnthropicProvider struct {
	name    string
	cfg     ProviderConfig
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewAnthropicProvider(name string, cfg ProviderConfig, logger *slog.Logger) *AnthropicProvider {
	cfg = cfg.withDefaults()
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	return &AnthropicProvider{
		name:    name,
		cfg:     cfg,
		baseURL: baseURL,
		client:  &http.Client{},
		logger:  logger,
	}
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string { return p.name }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
	TopP        float64            `json:"top_p,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string          `json:"stop_reason"`
	Usage      *anthropicUsage `json:"usage"`
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
}

// toAnthropicRequest lifts the system message out of the dialogue.
func (p *AnthropicProvider) toAnthropicRequest(msgs []Message, stream bool) anthropicRequest {
	req := anthropicRequest{
		Model:       p.cfg.Model,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
		TopP:        p.cfg.TopP,
		Stream:      stream,
	}
	for _, m := range msgs {
		if m.Role == RoleSystem {
			req.System = m.Content
			continue
		}
		req.Messages = append(req.Messages, anthropicMessage{Role: string(m.Role), Content: m.Content})
	}
	return req
}

func (p *AnthropicProvider) headers() map[string]string {
	return map[string]string{
		"x-api-key":         p.cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}
}

// Complete implements Provider.
func (p *AnthropicProvider) Complete(ctx context.Context, msgs []Message) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	start := time.Now()

	body, err := json.Marshal(p.toAnthropicRequest(msgs, false))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := postJSON(ctx, p.client, p.name, p.baseURL+"/v1/messages", body, p.headers())
	if err != nil {
		return nil, err
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	var text strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("%s: empty response content", p.name)
	}

	var usage anthropicUsage
	if apiResp.Usage != nil {
		usage = *apiResp.Usage
	}
	model := apiResp.Model
	if model == "" {
		model = p.cfg.Model
	}

	result := &Result{
		Content:        text.String(),
		Model:          model,
		TokensUsed:     usage.InputTokens + usage.OutputTokens,
		FinishReason:   apiResp.StopReason,
		ProcessingTime: time.Since(start),
		Metadata: map[string]any{
			"provider":      p.name,
			"response_id":   apiResp.ID,
			"input_tokens":  usage.InputTokens,
			"output_tokens": usage.OutputTokens,
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
func (p *AnthropicProvider) Stream(ctx context.Context, msgs []Message) (<-chan StreamChunk, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)

	body, err := json.Marshal(p.toAnthropicRequest(msgs, true))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	stream, err := postStream(ctx, p.client, p.name, p.baseURL+"/v1/messages", body, p.headers())
	if err != nil {
		cancel()
		return nil, err
	}

	return decodeSSE(ctx, stream, cancel, func(data []byte) (*StreamChunk, error) {
		var evt anthropicStreamEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, err
		}
		switch evt.Type {
		case "content_block_delta":
			if evt.Delta.Type != "text_delta" {
				return nil, nil
			}
			return &StreamChunk{Content: evt.Delta.Text}, nil
		case "message_delta":
			return &StreamChunk{FinishReason: evt.Delta.StopReason}, nil
		case "message_stop":
			return &StreamChunk{Done: true}, nil
		default:
			return nil, nil
		}
	}), nil
}
