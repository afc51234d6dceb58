package extractor

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Incident is one unit of work found in a chat transcript. It is produced
// by the extractor and never mutated afterwards.
type Incident struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	IsResolved        bool     `json:"is_resolved"`
	ResolutionSummary *string  `json:"resolution_summary"`
	MentionedUsers    []string `json:"mentioned_users"`
	EstimatedDuration *string  `json:"estimated_duration"`
	Confidence        float64  `json:"confidence"`
}

const defaultConfidence = 0.5

// rawIncident mirrors the model's output where any field may be missing.
type rawIncident struct {
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	IsResolved        bool       `json:"is_resolved"`
	ResolutionSummary *string    `json:"resolution_summary"`
	MentionedUsers    []string   `json:"mentioned_users"`
	EstimatedDuration *looseText `json:"estimated_duration"`
	Confidence        *float64   `json:"confidence"`
}

type rawResponse struct {
	Incidents []json.RawMessage `json:"incidents"`
}

// looseText accepts a JSON string or number. Models sometimes emit
// "estimated_duration": 2 instead of "2h".
type looseText string

func (t *looseText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = looseText(s)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*t = looseText(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}
