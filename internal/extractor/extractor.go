package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/reckon/internal/llm"
)

const (
	// MinTranscriptLen is the shortest transcript worth sending to a model.
	MinTranscriptLen = 30
	// AttemptTimeout bounds a single provider attempt.
	AttemptTimeout = 45 * time.Second
)

// Completer routes a dialogue to a named provider. *llm.Registry satisfies it.
type Completer interface {
	Complete(ctx context.Context, msgs []llm.Message, name string) (*llm.Result, error)
}

type Extractor struct {
	llm     Completer
	order   []string
	timeout time.Duration
	logger  *slog.Logger
}

// New returns an extractor that tries providers in order. An empty order
// uses the registry default only.
func New(c Completer, order []string, logger *slog.Logger) *Extractor {
	if len(order) == 0 {
		order = []string{""}
	}
	return &Extractor{llm: c, order: order, timeout: AttemptTimeout, logger: logger}
}

// WithTimeout overrides the per-attempt timeout.
func (e *Extractor) WithTimeout(d time.Duration) *Extractor {
	e.timeout = d
	return e
}

// Extract returns the incidents found in transcript. Provider failures fall
// through to the next provider; when every provider fails the result is empty.
// The only error is llm.ErrNoProvider, returned when no attempt found a
// registered provider at all.
func (e *Extractor) Extract(ctx context.Context, transcript, chatName string) ([]Incident, error) {
	if len(strings.TrimSpace(transcript)) < MinTranscriptLen {
		return nil, nil
	}

	msgs := []llm.Message{
		llm.NewMessage(llm.RoleSystem, systemPrompt),
		llm.NewMessage(llm.RoleUser, fmt.Sprintf(extractionUserPrompt, chatName, transcript)),
	}

	unregistered := 0
	for _, name := range e.order {
		raw, err := e.attempt(ctx, msgs, name)
		if err != nil {
			if errors.Is(err, llm.ErrNoProvider) {
				unregistered++
			}
			e.logger.Warn("extraction attempt failed",
				"provider", name,
				"chat", chatName,
				"error", err,
			)
			if ctx.Err() != nil {
				return nil, nil
			}
			continue
		}

		incidents := ParseIncidents(raw)
		e.logger.Info("extraction complete",
			"provider", name,
			"chat", chatName,
			"transcript_len", len(transcript),
			"incidents", len(incidents),
		)
		return incidents, nil
	}

	if unregistered == len(e.order) {
		return nil, fmt.Errorf("extract incidents: %w", llm.ErrNoProvider)
	}
	e.logger.Error("all providers failed, no incidents extracted", "chat", chatName)
	return nil, nil
}

func (e *Extractor) attempt(ctx context.Context, msgs []llm.Message, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := e.llm.Complete(ctx, msgs, name)
	if err != nil {
		return "", fmt.Errorf("llm extraction: %w", err)
	}
	return res.Content, nil
}
