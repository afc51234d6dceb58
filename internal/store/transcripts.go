package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ChatMessage is one stored chat message.
type ChatMessage struct {
	Author string
	Text   string
	SentAt time.Time
}

// GetTranscript returns the chat's messages since the given time as one
// chronological text block, one "[HH:MM] author: text" line per message.
// Times are rendered in since's location.
func (s *Store) GetTranscript(ctx context.Context, chatID string, since time.Time) (string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT author, text, sent_at
		FROM chat_messages
		WHERE chat_id = $1 AND sent_at >= $2 AND text <> ''
		ORDER BY sent_at, id`,
		chatID, since,
	)
	if err != nil {
		return "", fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.Author, &m.Text, &m.SentAt); err != nil {
			return "", fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate messages: %w", err)
	}
	return FormatTranscript(msgs, since.Location()), nil
}

// SaveMessage stores an incoming chat message.
func (s *Store) SaveMessage(ctx context.Context, chatID string, m ChatMessage) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_messages (chat_id, author, text, sent_at)
		VALUES ($1, $2, $3, $4)`,
		chatID, m.Author, m.Text, m.SentAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// FormatTranscript renders messages in the order given.
func FormatTranscript(msgs []ChatMessage, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	for _, m := range msgs {
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		author := m.Author
		if author == "" {
			author = "unknown"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.SentAt.In(loc).Format("15:04"), author, text)
	}
	return strings.TrimRight(b.String(), "\n")
}
