// Package slack is the operator surface: it turns forwarded Slack events into
// workflow intents and renders workflow replies as Block Kit messages.
package slack

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	slackapi "github.com/slack-go/slack"

	"github.com/MikeSquared-Agency/reckon/internal/workflow"
)

// EventKind says which kind of Slack event was forwarded.
type EventKind string

const (
	EventAction   EventKind = "block_action"
	EventReaction EventKind = "reaction_added"
	EventMessage  EventKind = "message"
)

// InteractionEvent is a Slack event forwarded over the bus.
type InteractionEvent struct {
	Kind      EventKind
	ActionID  string
	Value     string
	Text      string
	UserID    string
	UserName  string
	Channel   string
	MessageTS string
}

// Session is the state key for the event. Runs are shared per channel so that
// a scheduled summary can be approved by whoever is on duty.
func (e *InteractionEvent) Session() string {
	return e.Channel
}

// Intent maps the event to a workflow intent.
func (e *InteractionEvent) Intent() (workflow.Intent, bool) {
	switch e.Kind {
	case EventAction:
		return ParseIntent(e.ActionID, e.Value)
	case EventReaction:
		return ParseReaction(e.Text)
	default:
		return ParseCommand(e.Text)
	}
}

type envelope struct {
	Metadata map[string]string `json:"metadata"`
	Payload  json.RawMessage   `json:"payload"`
}

// ParseInteractionEvent decodes a forwarder envelope. The forwarder either
// flattens the event into metadata or passes the raw interaction payload.
func ParseInteractionEvent(data []byte, logger *slog.Logger) (*InteractionEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal interaction event: %w", err)
	}
	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		return parseCallback(env.Payload)
	}

	md := env.Metadata
	evt := &InteractionEvent{
		ActionID:  md["action_id"],
		Value:     md["value"],
		Text:      md["text"],
		UserID:    md["user_id"],
		UserName:  md["user_name"],
		Channel:   md["channel_id"],
		MessageTS: md["message_ts"],
	}
	switch {
	case md["event_type"] == string(EventReaction):
		evt.Kind = EventReaction
		evt.Text = strings.Trim(evt.Text, ":")
	case evt.ActionID != "":
		evt.Kind = EventAction
	default:
		evt.Kind = EventMessage
	}
	if evt.Channel == "" {
		return nil, fmt.Errorf("interaction event without channel")
	}

	logger.Debug("parsed interaction event",
		"kind", evt.Kind,
		"action_id", evt.ActionID,
		"user", evt.UserID,
		"channel", evt.Channel,
	)
	return evt, nil
}

func parseCallback(raw json.RawMessage) (*InteractionEvent, error) {
	var cb slackapi.InteractionCallback
	if err := json.Unmarshal(raw, &cb); err != nil {
		return nil, fmt.Errorf("unmarshal interaction payload: %w", err)
	}
	if cb.Type != slackapi.InteractionTypeBlockActions {
		return nil, fmt.Errorf("unsupported interaction type %q", cb.Type)
	}
	if len(cb.ActionCallback.BlockActions) == 0 {
		return nil, fmt.Errorf("interaction payload without actions")
	}

	act := cb.ActionCallback.BlockActions[0]
	evt := &InteractionEvent{
		Kind:      EventAction,
		ActionID:  act.ActionID,
		Value:     act.Value,
		UserID:    cb.User.ID,
		UserName:  cb.User.Name,
		Channel:   cb.Channel.ID,
		MessageTS: cb.Container.MessageTs,
	}
	if evt.Channel == "" {
		evt.Channel = cb.Container.ChannelID
	}
	if evt.Channel == "" {
		return nil, fmt.Errorf("interaction payload without channel")
	}
	return evt, nil
}
