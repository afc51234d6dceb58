package store

import (
	"context"
	"fmt"

	"github.com/MikeSquared-Agency/reckon/internal/reconcile"
)

// ListActiveMappings returns the chats linked to a tracker project, oldest
// link first so runs walk chats in a stable order.
func (s *Store) ListActiveMappings(ctx context.Context) ([]reconcile.Mapping, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT chat_id, chat_title, project_id, project_name, COALESCE(journal_company, '')
		FROM chat_project_mappings
		WHERE is_active
		ORDER BY created_at, chat_id`)
	if err != nil {
		return nil, fmt.Errorf("query mappings: %w", err)
	}
	defer rows.Close()

	var out []reconcile.Mapping
	for rows.Next() {
		var m reconcile.Mapping
		if err := rows.Scan(&m.ChatID, &m.ChatTitle, &m.ProjectID, &m.ProjectName, &m.JournalCompany); err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mappings: %w", err)
	}
	return out, nil
}
