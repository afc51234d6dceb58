package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/reckon/internal/tracker"
)

// ErrJournalNotConfigured is returned when no journal store is wired.
var ErrJournalNotConfigured = errors.New("journal store not configured")

// maxErrText caps how much of an error reaches the operator.
const maxErrText = 120

// Outcome is the result of applying one item.
type Outcome struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// JournalStore persists bookkeeping entries.
type JournalStore interface {
	CreateJournalEntry(ctx context.Context, e JournalEntry) (string, error)
}

type Executor struct {
	tracker tracker.Client
	journal JournalStore
	logger  *slog.Logger
}

// NewExecutor returns an executor. journal may be nil.
func NewExecutor(tc tracker.Client, journal JournalStore, logger *slog.Logger) *Executor {
	return &Executor{tracker: tc, journal: journal, logger: logger}
}

// Execute applies the item's proposed action. Failures come back as an
// Outcome with OK false; Execute never returns an error.
func (x *Executor) Execute(ctx context.Context, it Item) Outcome {
	if x.tracker == nil {
		return fail("трекер не настроен")
	}

	var out Outcome
	switch it.Action {
	case ActionCloseExisting:
		out = x.closeExisting(ctx, it)
	case ActionCreateDone:
		out = x.create(ctx, it, tracker.StatusCompleted)
	case ActionCreateStarted:
		out = x.create(ctx, it, tracker.StatusStarted)
	default:
		x.logger.Error("unknown action", "action", it.Action, "title", it.Title)
		out = fail(fmt.Sprintf("неизвестное действие %q", it.Action))
	}

	x.logger.Info("item executed",
		"action", it.Action,
		"project_id", it.ProjectID,
		"ok", out.OK,
		"message", out.Message,
	)
	return out
}

// ExecuteAll applies items in order; one failure never stops the batch.
func (x *Executor) ExecuteAll(ctx context.Context, items []Item) []Outcome {
	out := make([]Outcome, len(items))
	for i, it := range items {
		out[i] = x.Execute(ctx, it)
	}
	return out
}

func (x *Executor) closeExisting(ctx context.Context, it Item) Outcome {
	m := it.Matched()
	if m == nil {
		return fail("нет связанной задачи")
	}
	if err := x.tracker.CloseItem(ctx, it.ProjectID, m.ID); err != nil {
		return fail(fmt.Sprintf("#%d не закрыта: %s", m.SequenceID, errText(err)))
	}
	return ok(fmt.Sprintf("#%d закрыта", m.SequenceID))
}

func (x *Executor) create(ctx context.Context, it Item, target tracker.StatusGroup) Outcome {
	created, err := x.tracker.CreateItem(ctx, it.ProjectID, it.Title, it.Description)
	if err != nil {
		return fail("не удалось создать задачу: " + errText(err))
	}
	if created == nil {
		return fail("не удалось создать задачу")
	}

	if target == tracker.StatusCompleted {
		err = x.tracker.CloseItem(ctx, it.ProjectID, created.ID)
	} else {
		err = x.tracker.TransitionStatus(ctx, it.ProjectID, created.ID, target)
	}
	if err != nil {
		return fail(fmt.Sprintf("#%d создана, статус не изменён: %s", created.SequenceID, errText(err)))
	}

	if target == tracker.StatusCompleted {
		return ok(fmt.Sprintf("#%d создана и закрыта", created.SequenceID))
	}
	return ok(fmt.Sprintf("#%d создана, в работе", created.SequenceID))
}

// WriteJournal stores the entries one by one, reporting each.
func (x *Executor) WriteJournal(ctx context.Context, entries []JournalEntry) ([]Outcome, error) {
	if x.journal == nil {
		return nil, ErrJournalNotConfigured
	}
	out := make([]Outcome, len(entries))
	for i, e := range entries {
		id, err := x.journal.CreateJournalEntry(ctx, e)
		if err != nil {
			x.logger.Error("journal entry failed", "company", e.Company, "error", err)
			out[i] = fail("запись не создана: " + errText(err))
			continue
		}
		out[i] = ok("запись " + id + " создана")
	}
	return out, nil
}

func ok(msg string) Outcome   { return Outcome{OK: true, Message: msg} }
func fail(msg string) Outcome { return Outcome{OK: false, Message: msg} }

func errText(err error) string {
	s := err.Error()
	if utf8.RuneCountInString(s) <= maxErrText {
		return s
	}
	r := []rune(s)
	return string(r[:maxErrText]) + "…"
}
