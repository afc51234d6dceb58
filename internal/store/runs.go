package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/reckon/internal/reconcile"
)

// RecordRun writes an executed run and one row per applied item.
// Tables: reconcile_runs, reconcile_run_items.
func (s *Store) RecordRun(ctx context.Context, runID string, items []reconcile.Item, outcomes []reconcile.Outcome) error {
	if len(items) != len(outcomes) {
		return fmt.Errorf("record run: %d items, %d outcomes", len(items), len(outcomes))
	}
	id, err := uuid.Parse(runID)
	if err != nil {
		return fmt.Errorf("record run: invalid run id %q: %w", runID, err)
	}

	okCount := 0
	for _, o := range outcomes {
		if o.OK {
			okCount++
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO reconcile_runs (id, executed_at, items, succeeded)
		VALUES ($1, now(), $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			executed_at = now(),
			items = reconcile_runs.items + $2,
			succeeded = reconcile_runs.succeeded + $3`,
		id, len(items), okCount,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, it := range items {
		payload, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("encode item: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO reconcile_run_items (id, run_id, chat_id, project_id, action, title, ok, message, item)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			uuid.New(), id, it.ChatID, it.ProjectID, string(it.Action), it.Title, outcomes[i].OK, outcomes[i].Message, payload,
		)
		if err != nil {
			return fmt.Errorf("insert run item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
