package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/reckon/internal/llm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCompleter struct {
	calls   []string
	replies map[string]string
	errs    map[string]error
	block   map[string]bool
}

func (f *fakeCompleter) Complete(ctx context.Context, msgs []llm.Message, name string) (*llm.Result, error) {
	f.calls = append(f.calls, name)
	if f.block[name] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	return &llm.Result{Content: f.replies[name]}, nil
}

const transcript = "[09:12] anna: сервер упал, 502 на всех страницах\n[09:40] ivan: перезапустил nginx, работает"

func TestExtract_Success(t *testing.T) {
	c := &fakeCompleter{replies: map[string]string{
		"groq": `{"incidents":[{"title":"Server down","is_resolved":true,"mentioned_users":["anna","ivan"],"confidence":0.9}]}`,
	}}
	ext := New(c, []string{"groq", "openrouter"}, discardLogger())

	got, err := ext.Extract(context.Background(), transcript, "ops")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 incident, got %d", len(got))
	}
	if got[0].Title != "Server down" || !got[0].IsResolved {
		t.Errorf("unexpected incident: %+v", got[0])
	}
	if got[0].Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %f", got[0].Confidence)
	}
	if len(c.calls) != 1 || c.calls[0] != "groq" {
		t.Errorf("expected a single groq call, got %v", c.calls)
	}
}

func TestExtract_PromptCarriesChatName(t *testing.T) {
	var seen []llm.Message
	c := completerFunc(func(_ context.Context, msgs []llm.Message, _ string) (*llm.Result, error) {
		seen = msgs
		return &llm.Result{Content: `{"incidents":[]}`}, nil
	})
	_, _ = New(c, nil, discardLogger()).Extract(context.Background(), transcript, "backend-oncall")

	if len(seen) != 2 || seen[0].Role != llm.RoleSystem {
		t.Fatalf("expected system + user messages, got %+v", seen)
	}
	if !strings.Contains(seen[1].Content, "Chat: backend-oncall") {
		t.Errorf("expected chat name in prompt, got %q", seen[1].Content)
	}
	if !strings.Contains(seen[1].Content, "перезапустил nginx") {
		t.Error("expected transcript in prompt")
	}
}

func TestExtract_FallsBackOnFailure(t *testing.T) {
	c := &fakeCompleter{
		errs:    map[string]error{"groq": errors.New("503")},
		replies: map[string]string{"openrouter": `{"incidents":[{"title":"Fix login"}]}`},
	}
	ext := New(c, []string{"groq", "openrouter"}, discardLogger())

	got, err := ext.Extract(context.Background(), transcript, "ops")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Fix login" {
		t.Fatalf("expected fallback incident, got %+v", got)
	}
	if strings.Join(c.calls, ",") != "groq,openrouter" {
		t.Errorf("expected groq then openrouter, got %v", c.calls)
	}
}

func TestExtract_FallsBackOnTimeout(t *testing.T) {
	c := &fakeCompleter{
		block:   map[string]bool{"groq": true},
		replies: map[string]string{"openrouter": `{"incidents":[{"title":"Slow"}]}`},
	}
	ext := New(c, []string{"groq", "openrouter"}, discardLogger()).WithTimeout(20 * time.Millisecond)

	got, err := ext.Extract(context.Background(), transcript, "ops")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected incident from second provider, got %+v", got)
	}
}

func TestExtract_AllProvidersFail(t *testing.T) {
	c := &fakeCompleter{errs: map[string]error{
		"groq":       errors.New("down"),
		"openrouter": llm.ErrNoProvider,
	}}
	ext := New(c, []string{"groq", "openrouter"}, discardLogger())

	got, err := ext.Extract(context.Background(), transcript, "ops")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no incidents, got %+v", got)
	}
	if len(c.calls) != 2 {
		t.Errorf("expected both providers tried, got %v", c.calls)
	}
}

func TestExtract_ShortTranscriptSkipsLLM(t *testing.T) {
	c := &fakeCompleter{}
	ext := New(c, []string{"groq"}, discardLogger())

	for _, tr := range []string{"", "ok", "   short message here    ", strings.Repeat("x", MinTranscriptLen-1)} {
		if got, err := ext.Extract(context.Background(), tr, "ops"); err != nil || len(got) != 0 {
			t.Errorf("expected nothing for %q, got %+v", tr, got)
		}
	}
	if len(c.calls) != 0 {
		t.Errorf("expected no llm calls, got %v", c.calls)
	}
}

func TestExtract_NoProvidersRegistered(t *testing.T) {
	ext := New(llm.NewRegistry(), []string{"groq", "openrouter"}, discardLogger())

	got, err := ext.Extract(context.Background(), transcript, "ops")
	if !errors.Is(err, llm.ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no incidents, got %+v", got)
	}
}

func TestExtract_UnknownNameFallsThrough(t *testing.T) {
	c := &fakeCompleter{
		errs:    map[string]error{"groq": fmt.Errorf("%w: %q", llm.ErrNoProvider, "groq")},
		replies: map[string]string{"openrouter": `{"incidents":[{"title":"Disk full"}]}`},
	}
	ext := New(c, []string{"groq", "openrouter"}, discardLogger())

	got, err := ext.Extract(context.Background(), transcript, "ops")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Disk full" {
		t.Errorf("expected incident from openrouter, got %+v", got)
	}
}

type completerFunc func(ctx context.Context, msgs []llm.Message, name string) (*llm.Result, error)

func (f completerFunc) Complete(ctx context.Context, msgs []llm.Message, name string) (*llm.Result, error) {
	return f(ctx, msgs, name)
}
