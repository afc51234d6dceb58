// Package workflow drives an operator through approving a reconciliation run.
package workflow

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/MikeSquared-Agency/reckon/internal/reconcile"
)

// ErrNoSession is returned when an intent arrives with no pending run.
var ErrNoSession = errors.New("no reconciliation in progress")

// Phase tags the state payload. A cleared (nil) state is terminal.
type Phase string

const (
	PhaseReviewing     Phase = "reviewing"
	PhaseItemReview    Phase = "item_review"
	PhaseJournalPrompt Phase = "journal_prompt"
)

// State is the conversation state persisted between operator turns. Cursor
// is the item shown in item_review. Approved holds item indexes in ascending
// order without duplicates.
type State struct {
	RunID    string                   `json:"run_id"`
	Phase    Phase                    `json:"phase"`
	Items    []reconcile.Item         `json:"items"`
	Cursor   int                      `json:"cursor"`
	Approved []int                    `json:"approved"`
	Journal  []reconcile.JournalEntry `json:"journal,omitempty"`
}

func (s *State) approve(i int) {
	pos, found := slices.BinarySearch(s.Approved, i)
	if !found {
		s.Approved = slices.Insert(s.Approved, pos, i)
	}
}

// approvedItems returns the approved subset in index order.
func (s *State) approvedItems() []reconcile.Item {
	out := make([]reconcile.Item, 0, len(s.Approved))
	for _, i := range s.Approved {
		if i >= 0 && i < len(s.Items) {
			out = append(out, s.Items[i])
		}
	}
	return out
}

// StateStore keeps one State per operator session.
type StateStore interface {
	// LoadState returns nil, nil when the session has no state.
	LoadState(ctx context.Context, session string) (*State, error)
	SaveState(ctx context.Context, session string, st *State) error
	ClearState(ctx context.Context, session string) error
}

// MemoryStore is an in-process StateStore.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (m *MemoryStore) LoadState(_ context.Context, session string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[session]
	if !ok {
		return nil, nil
	}
	st.Items = slices.Clone(st.Items)
	st.Approved = slices.Clone(st.Approved)
	st.Journal = slices.Clone(st.Journal)
	return &st, nil
}

func (m *MemoryStore) SaveState(_ context.Context, session string, st *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *st
	cp.Items = slices.Clone(st.Items)
	cp.Approved = slices.Clone(st.Approved)
	cp.Journal = slices.Clone(st.Journal)
	m.states[session] = cp
	return nil
}

func (m *MemoryStore) ClearState(_ context.Context, session string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, session)
	return nil
}
