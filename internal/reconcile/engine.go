package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/reckon/internal/extractor"
	"github.com/MikeSquared-Agency/reckon/internal/llm"
	"github.com/MikeSquared-Agency/reckon/internal/matcher"
	"github.com/MikeSquared-Agency/reckon/internal/tracker"
)

// MappingSource lists the chats reconciliation runs over.
type MappingSource interface {
	ListActiveMappings(ctx context.Context) ([]Mapping, error)
}

// TranscriptSource returns a chat's messages since a point in time, in
// chronological order.
type TranscriptSource interface {
	GetTranscript(ctx context.Context, chatID string, since time.Time) (string, error)
}

// IncidentExtractor turns a transcript into incidents. It fails only when no
// LLM provider is configured.
type IncidentExtractor interface {
	Extract(ctx context.Context, transcript, chatName string) ([]extractor.Incident, error)
}

type Engine struct {
	mappings    MappingSource
	transcripts TranscriptSource
	extractor   IncidentExtractor
	tracker     tracker.Client
	loc         *time.Location
	now         func() time.Time
	logger      *slog.Logger
}

// NewEngine wires an engine. A nil tracker makes every Run fail with
// tracker.ErrNotConfigured. A nil loc means UTC.
func NewEngine(mappings MappingSource, transcripts TranscriptSource, ext IncidentExtractor, tc tracker.Client, loc *time.Location, logger *slog.Logger) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		mappings:    mappings,
		transcripts: transcripts,
		extractor:   ext,
		tracker:     tc,
		loc:         loc,
		now:         time.Now,
		logger:      logger,
	}
}

// Run reconciles every active chat in order and returns the proposed items.
// A failing chat is logged and skipped; a missing tracker or LLM provider
// aborts the run.
func (e *Engine) Run(ctx context.Context) ([]Item, error) {
	if e.tracker == nil {
		return nil, tracker.ErrNotConfigured
	}

	mappings, err := e.mappings.ListActiveMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}

	since := startOfDay(e.now(), e.loc)
	var items []Item
	for _, m := range mappings {
		if ctx.Err() != nil {
			return items, ctx.Err()
		}
		chatItems, err := e.reconcileChat(ctx, m, since)
		if errors.Is(err, llm.ErrNoProvider) {
			return nil, err
		}
		if err != nil {
			e.logger.Error("chat reconciliation failed",
				"chat_id", m.ChatID,
				"project_id", m.ProjectID,
				"error", err,
			)
			continue
		}
		items = append(items, chatItems...)
	}

	e.logger.Info("reconciliation run complete",
		"chats", len(mappings),
		"items", len(items),
		"since", since.Format(time.RFC3339),
	)
	return items, nil
}

func (e *Engine) reconcileChat(ctx context.Context, m Mapping, since time.Time) ([]Item, error) {
	transcript, err := e.transcripts.GetTranscript(ctx, m.ChatID, since)
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	if len(strings.TrimSpace(transcript)) < extractor.MinTranscriptLen {
		e.logger.Debug("transcript too short, skipping", "chat_id", m.ChatID, "len", len(transcript))
		return nil, nil
	}

	incidents, err := e.extractor.Extract(ctx, transcript, m.ChatTitle)
	if err != nil {
		return nil, err
	}
	if len(incidents) == 0 {
		return nil, nil
	}

	open, err := e.tracker.ListOpenItems(ctx, m.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("list open items: %w", err)
	}

	var items []Item
	for _, inc := range incidents {
		it := NewItem(inc, m, matcher.Match(inc.Title, open))
		if it.Action == ActionNone {
			continue
		}
		items = append(items, it)
	}

	e.logger.Info("chat reconciled",
		"chat_id", m.ChatID,
		"incidents", len(incidents),
		"items", len(items),
	)
	return items, nil
}

// startOfDay is local midnight of t in loc.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
