package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/reckon/internal/workflow"
)

// LoadState returns the session's workflow state, or nil when there is none.
func (s *Store) LoadState(ctx context.Context, session string) (*workflow.State, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT state FROM conversation_state WHERE session = $1`, session,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	var st workflow.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &st, nil
}

// SaveState upserts the session's workflow state.
func (s *Store) SaveState(ctx context.Context, session string, st *workflow.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO conversation_state (session, phase, state, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (session)
		DO UPDATE SET phase = $2, state = $3, updated_at = now()`,
		session, string(st.Phase), raw,
	)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// ClearState removes the session's workflow state.
func (s *Store) ClearState(ctx context.Context, session string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM conversation_state WHERE session = $1`, session); err != nil {
		return fmt.Errorf("clear state: %w", err)
	}
	return nil
}
