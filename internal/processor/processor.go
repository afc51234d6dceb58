package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/reckon/internal/hermes"
	"github.com/MikeSquared-Agency/reckon/internal/reconcile"
	"github.com/MikeSquared-Agency/reckon/internal/slack"
	"github.com/MikeSquared-Agency/reckon/internal/store"
	"github.com/MikeSquared-Agency/reckon/internal/workflow"
)

// Machine applies operator intents to conversation state.
type Machine interface {
	Handle(ctx context.Context, st *workflow.State, in workflow.Intent) (workflow.Transition, error)
}

// Poster delivers replies to the operator.
type Poster interface {
	PostReply(ctx context.Context, channel string, reply workflow.Reply) (string, error)
}

// Updater is implemented by posters that can replace an earlier message.
// Button presses are answered by rewriting the message that carried the
// buttons, so stale controls do not linger in the channel.
type Updater interface {
	UpdateReply(ctx context.Context, channel, ts string, reply workflow.Reply) error
}

// Publisher emits run events on the bus.
type Publisher interface {
	Publish(subject string, data any) error
}

// RunRecorder keeps an audit of executed runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, runID string, items []reconcile.Item, outcomes []reconcile.Outcome) error
}

// MessageSink stores chat messages that are not commands, feeding tomorrow's
// transcripts.
type MessageSink interface {
	SaveMessage(ctx context.Context, chatID string, m store.ChatMessage) error
}

// Deps are the processor's collaborators. Only Machine and States are
// required.
type Deps struct {
	Machine  Machine
	States   workflow.StateStore
	Poster   Poster
	Runs     RunRecorder
	Bus      Publisher
	Messages MessageSink
	// Channel receives scheduled runs when no session is given.
	Channel string
}

// Processor drives reconciliation conversations: it loads session state,
// applies intents through the workflow machine, persists the result and
// posts the reply.
type Processor struct {
	deps   Deps
	logger *slog.Logger

	// One session is handled at a time.
	mu sync.Mutex
}

func New(deps Deps, logger *slog.Logger) *Processor {
	return &Processor{deps: deps, logger: logger}
}

// HandleInteraction is the NATS handler for swarm.reckon.interaction.
func (p *Processor) HandleInteraction(subject string, data []byte) {
	ctx := context.Background()

	evt, err := slack.ParseInteractionEvent(data, p.logger)
	if err != nil {
		p.logger.Warn("failed to parse interaction event", "subject", subject, "error", err)
		return
	}

	in, ok := evt.Intent()
	if !ok {
		if evt.Kind == slack.EventMessage {
			p.storeMessage(ctx, evt)
		}
		return
	}

	var replace string
	if evt.Kind == slack.EventAction {
		replace = evt.MessageTS
	}

	// Reactions are ambient; only buttons and commands get told there is no run.
	if _, err := p.dispatch(ctx, evt.Session(), in, evt.Kind != slack.EventReaction, replace); err != nil {
		p.logger.Error("interaction failed",
			"session", evt.Session(),
			"intent", in.Kind,
			"user", evt.UserID,
			"error", err,
		)
	}
}

// StartRun begins a reconciliation for session, or for the configured
// channel when session is empty.
func (p *Processor) StartRun(ctx context.Context, session string) (workflow.Reply, error) {
	if session == "" {
		session = p.deps.Channel
	}
	if session == "" {
		return workflow.Reply{}, fmt.Errorf("start run: no session or default channel")
	}
	return p.Dispatch(ctx, session, workflow.Intent{Kind: workflow.IntentStart})
}

// Dispatch applies one intent to session and returns the reply shown to the
// operator.
func (p *Processor) Dispatch(ctx context.Context, session string, in workflow.Intent) (workflow.Reply, error) {
	return p.dispatch(ctx, session, in, true, "")
}

// dispatch runs one intent under the session lock. A non-empty replace is the
// timestamp of the message the reply should overwrite.
func (p *Processor) dispatch(ctx context.Context, session string, in workflow.Intent, announce bool, replace string) (workflow.Reply, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, err := p.deps.States.LoadState(ctx, session)
	if err != nil {
		return workflow.Reply{}, fmt.Errorf("load state: %w", err)
	}
	if st != nil && in.Kind == workflow.IntentStart {
		p.logger.Info("new run replaces pending one", "session", session, "run_id", st.RunID, "phase", st.Phase)
	}

	t, err := p.deps.Machine.Handle(ctx, st, in)
	if errors.Is(err, workflow.ErrNoSession) {
		if announce {
			p.post(ctx, session, replace, t.Reply)
		}
		return t.Reply, nil
	}
	if err != nil {
		return workflow.Reply{}, fmt.Errorf("handle %s: %w", in.Kind, err)
	}

	if t.State == nil {
		err = p.deps.States.ClearState(ctx, session)
	} else {
		err = p.deps.States.SaveState(ctx, session, t.State)
	}
	if err != nil {
		// The tracker may already have been changed; still tell the operator.
		p.logger.Error("failed to persist state", "session", session, "error", err)
	}

	if len(t.Executed) > 0 {
		runID := ""
		if st != nil {
			runID = st.RunID
		}
		p.recordRun(ctx, session, runID, t.Executed, t.Outcomes)
	}

	p.post(ctx, session, replace, t.Reply)
	return t.Reply, err
}

func (p *Processor) post(ctx context.Context, channel, replace string, reply workflow.Reply) {
	if p.deps.Poster == nil || reply.Text == "" {
		return
	}
	if u, ok := p.deps.Poster.(Updater); ok && replace != "" {
		err := u.UpdateReply(ctx, channel, replace, reply)
		if err == nil {
			return
		}
		p.logger.Warn("slack update failed, posting instead", "channel", channel, "ts", replace, "error", err)
	}
	if _, err := p.deps.Poster.PostReply(ctx, channel, reply); err != nil {
		p.logger.Error("slack post failed", "channel", channel, "error", err)
	}
}

func (p *Processor) recordRun(ctx context.Context, session, runID string, items []reconcile.Item, outcomes []reconcile.Outcome) {
	succeeded := 0
	for _, o := range outcomes {
		if o.OK {
			succeeded++
		}
	}
	p.logger.Info("run executed",
		"session", session,
		"run_id", runID,
		"items", len(items),
		"succeeded", succeeded,
	)

	if p.deps.Runs != nil && runID != "" {
		if err := p.deps.Runs.RecordRun(ctx, runID, items, outcomes); err != nil {
			p.logger.Error("failed to record run", "run_id", runID, "error", err)
		}
	}

	if p.deps.Bus == nil {
		return
	}
	for i, it := range items {
		var o reconcile.Outcome
		if i < len(outcomes) {
			o = outcomes[i]
		}
		if err := p.deps.Bus.Publish(hermes.SubjectItemExecuted, hermes.ItemExecuted{
			RunID:     runID,
			ChatID:    it.ChatID,
			ProjectID: it.ProjectID,
			Action:    string(it.Action),
			Title:     it.Title,
			OK:        o.OK,
			Message:   o.Message,
		}); err != nil {
			p.logger.Warn("failed to publish item event", "run_id", runID, "error", err)
		}
	}
	if err := p.deps.Bus.Publish(hermes.SubjectRunCompleted, hermes.RunCompleted{
		RunID:     runID,
		Session:   session,
		Items:     len(items),
		Succeeded: succeeded,
		Failed:    len(items) - succeeded,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		p.logger.Warn("failed to publish run event", "run_id", runID, "error", err)
	}
}

func (p *Processor) storeMessage(ctx context.Context, evt *slack.InteractionEvent) {
	if p.deps.Messages == nil || strings.TrimSpace(evt.Text) == "" {
		return
	}
	author := evt.UserName
	if author == "" {
		author = evt.UserID
	}
	m := store.ChatMessage{Author: author, Text: evt.Text, SentAt: parseTS(evt.MessageTS)}
	if err := p.deps.Messages.SaveMessage(ctx, evt.Channel, m); err != nil {
		p.logger.Error("failed to store chat message", "channel", evt.Channel, "error", err)
	}
}

// parseTS reads a Slack "seconds.micros" timestamp, falling back to now.
func parseTS(ts string) time.Time {
	sec, frac, _ := strings.Cut(ts, ".")
	s, err := strconv.ParseInt(sec, 10, 64)
	if err != nil || s <= 0 {
		return time.Now().UTC()
	}
	var us int64
	if frac != "" {
		if len(frac) > 6 {
			frac = frac[:6]
		}
		frac += strings.Repeat("0", 6-len(frac))
		us, _ = strconv.ParseInt(frac, 10, 64)
	}
	return time.Unix(s, us*int64(time.Microsecond)).UTC()
}
