package reconcile

import (
	"encoding/json"
	"fmt"

	"github.com/MikeSquared-Agency/reckon/internal/extractor"
	"github.com/MikeSquared-Agency/reckon/internal/tracker"
)

// Action is the proposed next step for an incident.
type Action string

const (
	ActionCloseExisting Action = "close_existing"
	ActionCreateDone    Action = "create_done"
	ActionCreateStarted Action = "create_started"
	ActionNone          Action = "none"
)

// Mapping links a chat to the tracker project its work lands in.
type Mapping struct {
	ChatID      string
	ChatTitle   string
	ProjectID   string
	ProjectName string
	// JournalCompany overrides the project name in journal entries.
	JournalCompany string
}

// Match is the tracker item an incident was paired with.
type Match struct {
	MatchedID         string `json:"matched_item_id"`
	MatchedSequenceID int    `json:"matched_sequence_id"`
	MatchedName       string `json:"matched_item_name"`
	MatchedStatus     string `json:"matched_item_status"`
	MatchedPriority   string `json:"matched_item_priority"`
}

// Item is one proposed action, held in conversation state between turns.
// It encodes as a single flat JSON object; a nil Match leaves the matched_*
// keys out entirely.
type Item struct {
	extractor.Incident
	ChatID      string `json:"chat_id"`
	ChatTitle   string `json:"chat_title"`
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
	*Match
	Action      Action  `json:"proposed_action"`
	JournalName *string `json:"journal_name"`
}

// NewItem binds an incident to its source chat, project and matched item.
func NewItem(inc extractor.Incident, m Mapping, matched *tracker.Item) Item {
	it := Item{
		Incident:    inc,
		ChatID:      m.ChatID,
		ChatTitle:   m.ChatTitle,
		ProjectID:   m.ProjectID,
		ProjectName: m.ProjectName,
		Action:      ProposeAction(inc, matched),
	}
	if matched != nil {
		it.Match = &Match{
			MatchedID:         matched.ID,
			MatchedSequenceID: matched.SequenceID,
			MatchedName:       matched.Name,
			MatchedStatus:     matched.Status,
			MatchedPriority:   matched.Priority,
		}
	}
	if m.JournalCompany != "" {
		name := m.JournalCompany
		it.JournalName = &name
	}
	return it
}

// ProposeAction derives the action for an incident given its match.
// A matched, still open incident needs nothing.
func ProposeAction(inc extractor.Incident, matched *tracker.Item) Action {
	switch {
	case matched != nil && inc.IsResolved:
		return ActionCloseExisting
	case matched != nil:
		return ActionNone
	case inc.IsResolved:
		return ActionCreateDone
	default:
		return ActionCreateStarted
	}
}

// Matched returns the matched tracker item, or nil.
func (it Item) Matched() *tracker.Item {
	if it.Match == nil {
		return nil
	}
	return &tracker.Item{
		ID:         it.MatchedID,
		Name:       it.MatchedName,
		SequenceID: it.MatchedSequenceID,
		Status:     it.MatchedStatus,
		Priority:   it.MatchedPriority,
	}
}

// Company is the display name used for journal entries.
func (it Item) Company() string {
	if it.JournalName != nil && *it.JournalName != "" {
		return *it.JournalName
	}
	return it.ProjectName
}

func EncodeItems(items []Item) ([]byte, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	return data, nil
}

func DecodeItems(data []byte) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return items, nil
}
