package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnthropicComplete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("expected /v1/messages, got %q", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("expected x-api-key test-key, got %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("expected anthropic-version 2023-06-01, got %q", r.Header.Get("anthropic-version"))
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("expected model test-model, got %q", req.Model)
		}
		if req.System != "you are a test" {
			t.Errorf("expected system prompt lifted out, got %q", req.System)
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "hello" || req.Messages[0].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.MaxTokens != 100 {
			t.Errorf("expected max_tokens 100, got %d", req.MaxTokens)
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{
			"id": "msg_1",
			"model": "test-model",
			"content": [{"type": "text", "text": "world"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 2}
		}`)
	}))
	defer server.Close()

	p := NewAnthropicProvider("claude", ProviderConfig{APIKey: "test-key", BaseURL: server.URL, Model: "test-model", MaxTokens: 100}, discardLogger())

	res, err := p.Complete(context.Background(), dialogue())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "world" {
		t.Errorf("expected 'world', got %q", res.Content)
	}
	if res.TokensUsed != 12 {
		t.Errorf("expected 12 tokens, got %d", res.TokensUsed)
	}
	if res.FinishReason != "end_turn" {
		t.Errorf("expected finish reason end_turn, got %q", res.FinishReason)
	}
	if res.Metadata["input_tokens"] != 10 {
		t.Errorf("expected input_tokens 10 in metadata, got %v", res.Metadata["input_tokens"])
	}
}

func TestAnthropicComplete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": {"type": "invalid_request_error", "message": "max_tokens is too large"}}`)
	}))
	defer server.Close()

	p := NewAnthropicProvider("claude", ProviderConfig{APIKey: "test-key", BaseURL: server.URL}, discardLogger())

	_, err := p.Complete(context.Background(), dialogue())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Body, "max_tokens is too large") {
		t.Errorf("expected body in error, got %q", apiErr.Body)
	}
}

func TestAnthropicComplete_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content": [], "stop_reason": "end_turn"}`)
	}))
	defer server.Close()

	p := NewAnthropicProvider("claude", ProviderConfig{BaseURL: server.URL}, discardLogger())

	if _, err := p.Complete(context.Background(), dialogue()); err == nil {
		t.Fatal("expected error for empty content response")
	}
}

func TestAnthropicComplete_MissingUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content": [{"type": "text", "text": "ok"}]}`)
	}))
	defer server.Close()

	p := NewAnthropicProvider("claude", ProviderConfig{BaseURL: server.URL, Model: "claude-sonnet-4-20250514"}, discardLogger())

	res, err := p.Complete(context.Background(), dialogue())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TokensUsed != 0 {
		t.Errorf("expected zero tokens, got %d", res.TokensUsed)
	}
	if res.Model != "claude-sonnet-4-20250514" {
		t.Errorf("expected configured model fallback, got %q", res.Model)
	}
}

func TestAnthropicStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\"}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi \"}}\n\n")
		fmt.Fprint(w, "data: garbage\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"there\"}}\n\n")
		fmt.Fprint(w, "event: message_delta\ndata: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\"}}\n\n")
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}))
	defer server.Close()

	p := NewAnthropicProvider("claude", ProviderConfig{BaseURL: server.URL}, discardLogger())

	ch, err := p.Stream(context.Background(), dialogue())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var text strings.Builder
	var finish string
	var done bool
	for c := range ch {
		text.WriteString(c.Content)
		if c.FinishReason != "" {
			finish = c.FinishReason
		}
		done = done || c.Done
	}
	if text.String() != "Hi there" {
		t.Errorf("expected 'Hi there', got %q", text.String())
	}
	if finish != "end_turn" {
		t.Errorf("expected finish reason end_turn, got %q", finish)
	}
	if !done {
		t.Error("expected a Done chunk")
	}
}
