package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/reckon/internal/reconcile"
)

// CreateJournalEntry inserts a bookkeeping entry and returns its id.
func (s *Store) CreateJournalEntry(ctx context.Context, e reconcile.JournalEntry) (string, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO journal_entries (id, user_id, entry_date, company, description, duration, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`,
		id, e.UserID, e.Date, e.Company, e.Description, e.Duration,
	)
	if err != nil {
		return "", fmt.Errorf("insert journal entry: %w", err)
	}
	return id.String(), nil
}
