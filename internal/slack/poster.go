package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	slackapi "github.com/slack-go/slack"

	"github.com/MikeSquared-Agency/reckon/internal/workflow"
)

const controlsBlockID = "reckon_controls"

// Poster sends workflow replies to Slack.
type Poster struct {
	api     *slackapi.Client
	channel string
	logger  *slog.Logger
}

// NewPoster returns a Poster that posts to channel unless a reply names
// another one. opts are passed to the slack-go client.
func NewPoster(token, channel string, logger *slog.Logger, opts ...slackapi.Option) *Poster {
	return &Poster{
		api:     slackapi.New(token, opts...),
		channel: channel,
		logger:  logger,
	}
}

// PostReply posts reply as a new message and returns its timestamp.
func (p *Poster) PostReply(ctx context.Context, channel string, reply workflow.Reply) (string, error) {
	if channel == "" {
		channel = p.channel
	}
	if channel == "" {
		return "", fmt.Errorf("post reply: no channel configured")
	}

	_, ts, err := p.api.PostMessageContext(ctx, channel, messageOptions(reply)...)
	if err != nil {
		return "", fmt.Errorf("post reply: %w", err)
	}

	p.logger.Info("posted reply", "channel", channel, "ts", ts, "controls", len(reply.Controls))
	return ts, nil
}

// UpdateReply replaces the message at ts with reply.
func (p *Poster) UpdateReply(ctx context.Context, channel, ts string, reply workflow.Reply) error {
	if channel == "" {
		channel = p.channel
	}
	if _, _, _, err := p.api.UpdateMessageContext(ctx, channel, ts, messageOptions(reply)...); err != nil {
		return fmt.Errorf("update reply: %w", err)
	}
	p.logger.Debug("updated reply", "channel", channel, "ts", ts)
	return nil
}

func messageOptions(reply workflow.Reply) []slackapi.MsgOption {
	return []slackapi.MsgOption{
		slackapi.MsgOptionText(reply.Text, false),
		slackapi.MsgOptionBlocks(replyBlocks(reply)...),
	}
}

// replyBlocks renders the text as one mrkdwn section and the controls as one
// action block.
func replyBlocks(reply workflow.Reply) []slackapi.Block {
	text := slackapi.NewTextBlockObject(slackapi.MarkdownType, workflow.Truncate(escape(reply.Text), workflow.MaxReportLen), false, false)
	blocks := []slackapi.Block{slackapi.NewSectionBlock(text, nil, nil)}
	if len(reply.Controls) == 0 {
		return blocks
	}

	elems := make([]slackapi.BlockElement, 0, len(reply.Controls))
	for _, c := range reply.Controls {
		label := slackapi.NewTextBlockObject(slackapi.PlainTextType, c.Label, false, false)
		btn := slackapi.NewButtonBlockElement(ActionID(c.Intent), strconv.Itoa(c.Intent.Index), label)
		if s := buttonStyle(c.Style); s != slackapi.StyleDefault {
			btn = btn.WithStyle(s)
		}
		elems = append(elems, btn)
	}
	return append(blocks, slackapi.NewActionBlock(controlsBlockID, elems...))
}

func buttonStyle(s workflow.ControlStyle) slackapi.Style {
	switch s {
	case workflow.StylePrimary:
		return slackapi.StylePrimary
	case workflow.StyleDanger:
		return slackapi.StyleDanger
	}
	return slackapi.StyleDefault
}

var mrkdwnEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escape(s string) string {
	return mrkdwnEscaper.Replace(s)
}
