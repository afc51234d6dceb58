package reconcile

import "time"

// JournalEntry is a bookkeeping record for work finished today.
type JournalEntry struct {
	UserID      string    `json:"user_id"`
	Date        time.Time `json:"date"`
	Company     string    `json:"company"`
	Description string    `json:"description"`
	Duration    string    `json:"duration"`
}

// JournalEntries returns an entry for every resolved item whose action
// succeeded. items and outcomes are parallel.
func JournalEntries(items []Item, outcomes []Outcome, userID string, date time.Time) []JournalEntry {
	var out []JournalEntry
	for i, it := range items {
		if i >= len(outcomes) || !outcomes[i].OK || !it.IsResolved {
			continue
		}
		desc := it.Title
		if it.ResolutionSummary != nil && *it.ResolutionSummary != "" {
			desc += ": " + *it.ResolutionSummary
		}
		dur := ""
		if it.EstimatedDuration != nil {
			dur = *it.EstimatedDuration
		}
		out = append(out, JournalEntry{
			UserID:      userID,
			Date:        date,
			Company:     it.Company(),
			Description: desc,
			Duration:    dur,
		})
	}
	return out
}
