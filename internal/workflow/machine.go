package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/reckon/internal/llm"
	"github.com/MikeSquared-Agency/reckon/internal/reconcile"
	"github.com/MikeSquared-Agency/reckon/internal/tracker"
)

// Runner produces the proposed items for a new run.
type Runner interface {
	Run(ctx context.Context) ([]reconcile.Item, error)
}

// Executor applies approved items and writes journal entries.
type Executor interface {
	ExecuteAll(ctx context.Context, items []reconcile.Item) []reconcile.Outcome
	WriteJournal(ctx context.Context, entries []reconcile.JournalEntry) ([]reconcile.Outcome, error)
}

// Transition is the outcome of one intent. A nil State means the session is
// finished and its state should be cleared.
type Transition struct {
	State    *State
	Reply    Reply
	Executed []reconcile.Item
	Outcomes []reconcile.Outcome
}

type Machine struct {
	runner        Runner
	exec          Executor
	journalUserID string
	loc           *time.Location
	now           func() time.Time
	logger        *slog.Logger
}

// NewMachine returns a workflow machine. An empty journalUserID disables the
// journal prompt.
func NewMachine(runner Runner, exec Executor, journalUserID string, loc *time.Location, logger *slog.Logger) *Machine {
	if loc == nil {
		loc = time.UTC
	}
	return &Machine{
		runner:        runner,
		exec:          exec,
		journalUserID: journalUserID,
		loc:           loc,
		now:           time.Now,
		logger:        logger,
	}
}

// Handle applies in to st. st may be nil only for IntentStart; any other
// intent without state returns ErrNoSession.
func (m *Machine) Handle(ctx context.Context, st *State, in Intent) (Transition, error) {
	if in.Kind == IntentStart {
		return m.start(ctx), nil
	}
	if st == nil {
		return Transition{Reply: Reply{Text: "Нет активной сверки."}}, ErrNoSession
	}
	if in.Kind == IntentCancel {
		m.logger.Info("reconciliation cancelled", "run_id", st.RunID, "phase", st.Phase)
		return Transition{Reply: Reply{Text: "Сверка отменена."}}, nil
	}

	switch st.Phase {
	case PhaseReviewing:
		switch in.Kind {
		case IntentApproveAll:
			return m.execute(ctx, st, st.Items), nil
		case IntentReview:
			next := *st
			next.Phase = PhaseItemReview
			next.Cursor = 0
			next.Approved = nil
			return Transition{State: &next, Reply: itemReply(&next)}, nil
		}
	case PhaseItemReview:
		switch in.Kind {
		case IntentItemOK, IntentItemSkip, IntentItemNext:
			return m.decide(ctx, st, in), nil
		}
	case PhaseJournalPrompt:
		switch in.Kind {
		case IntentJournalCreate:
			return m.writeJournal(ctx, st), nil
		case IntentJournalSkip:
			return Transition{Reply: Reply{Text: "Записи в журнал не созданы."}}, nil
		}
	}

	return m.unavailable(st), nil
}

func (m *Machine) start(ctx context.Context) Transition {
	items, err := m.runner.Run(ctx)
	if err != nil {
		m.logger.Error("reconciliation run failed", "error", err)
		msg := "Не удалось выполнить сверку."
		switch {
		case errors.Is(err, tracker.ErrNotConfigured):
			msg = "Не удалось выполнить сверку: трекер не настроен."
		case errors.Is(err, llm.ErrNoProvider):
			msg = "Не удалось выполнить сверку: не настроен ни один LLM-провайдер."
		}
		return Transition{Reply: Reply{Text: msg}}
	}
	if len(items) == 0 {
		return Transition{Reply: Reply{Text: "За сегодня ничего не найдено."}}
	}

	st := &State{RunID: uuid.NewString(), Phase: PhaseReviewing, Items: items}
	m.logger.Info("reconciliation proposed", "run_id", st.RunID, "items", len(items))
	return Transition{State: st, Reply: summaryReply(items)}
}

// decide records the decision for the current item and advances. A decision
// for any other index is stale and re-shows the current item.
func (m *Machine) decide(ctx context.Context, st *State, in Intent) Transition {
	if st.Cursor < 0 || st.Cursor >= len(st.Items) {
		m.logger.Warn("item review cursor out of range", "run_id", st.RunID, "cursor", st.Cursor)
		return Transition{Reply: Reply{Text: "Сверка сброшена, запустите её заново."}}
	}
	if in.Index != st.Cursor {
		return Transition{State: st, Reply: itemReply(st)}
	}

	next := *st
	next.Approved = append([]int(nil), st.Approved...)
	if in.Kind == IntentItemOK {
		next.approve(in.Index)
	}
	next.Cursor++

	if next.Cursor < len(next.Items) {
		return Transition{State: &next, Reply: itemReply(&next)}
	}

	approved := next.approvedItems()
	if len(approved) == 0 {
		return Transition{Reply: Reply{Text: "Ничего не выбрано, изменений нет."}}
	}
	return m.execute(ctx, &next, approved)
}

func (m *Machine) execute(ctx context.Context, st *State, items []reconcile.Item) Transition {
	outcomes := m.exec.ExecuteAll(ctx, items)
	text := resultsText(items, outcomes)

	t := Transition{Executed: items, Outcomes: outcomes}

	var entries []reconcile.JournalEntry
	if m.journalUserID != "" {
		entries = reconcile.JournalEntries(items, outcomes, m.journalUserID, startOfDay(m.now(), m.loc))
	}
	if len(entries) == 0 {
		t.Reply = Reply{Text: Truncate(text, MaxReportLen)}
		return t
	}

	text += "\n\nСоздать записи в журнале для решённых задач (" + strconv.Itoa(len(entries)) + ")?"
	t.State = &State{RunID: st.RunID, Phase: PhaseJournalPrompt, Journal: entries}
	t.Reply = Reply{Text: Truncate(text, MaxReportLen), Controls: journalControls()}
	return t
}

func (m *Machine) writeJournal(ctx context.Context, st *State) Transition {
	outcomes, err := m.exec.WriteJournal(ctx, st.Journal)
	if err != nil {
		m.logger.Error("journal write failed", "run_id", st.RunID, "error", err)
		return Transition{Reply: Reply{Text: "Журнал не настроен, записи не созданы."}}
	}
	return Transition{Reply: Reply{Text: Truncate(journalResultsText(st.Journal, outcomes), MaxReportLen)}}
}

// unavailable keeps the state and re-shows what the operator can do now.
func (m *Machine) unavailable(st *State) Transition {
	var r Reply
	switch st.Phase {
	case PhaseReviewing:
		r = summaryReply(st.Items)
	case PhaseItemReview:
		if st.Cursor < len(st.Items) {
			r = itemReply(st)
		}
	case PhaseJournalPrompt:
		r = Reply{Text: "Создать записи в журнале?", Controls: journalControls()}
	}
	r.Text = "Это действие сейчас недоступно.\n\n" + r.Text
	r.Text = Truncate(r.Text, MaxReportLen)
	return Transition{State: st, Reply: r}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
