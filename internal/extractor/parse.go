package extractor

import (
	"encoding/json"
	"strings"
)

// ParseIncidents decodes a model response into incidents. It accepts a bare
// JSON object, one wrapped in a fenced code block, or one embedded in prose.
// Anything it cannot decode yields an empty list.
func ParseIncidents(raw string) []Incident {
	body := jsonBody(raw)
	if body == "" {
		return []Incident{}
	}

	var resp rawResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return []Incident{}
	}

	out := make([]Incident, 0, len(resp.Incidents))
	for _, msg := range resp.Incidents {
		var r rawIncident
		if err := json.Unmarshal(msg, &r); err != nil {
			continue
		}
		title := strings.TrimSpace(r.Title)
		if title == "" {
			continue
		}

		inc := Incident{
			Title:             title,
			Description:       r.Description,
			IsResolved:        r.IsResolved,
			ResolutionSummary: r.ResolutionSummary,
			MentionedUsers:    r.MentionedUsers,
			Confidence:        defaultConfidence,
		}
		if inc.MentionedUsers == nil {
			inc.MentionedUsers = []string{}
		}
		if r.EstimatedDuration != nil && *r.EstimatedDuration != "" {
			d := string(*r.EstimatedDuration)
			inc.EstimatedDuration = &d
		}
		if r.Confidence != nil {
			inc.Confidence = clamp01(*r.Confidence)
		}
		out = append(out, inc)
	}
	return out
}

// jsonBody returns the contents of the first fenced code block, or else the
// first balanced top-level {...} span.
func jsonBody(raw string) string {
	if fenced, ok := fencedBlock(raw); ok {
		return fenced
	}
	return firstObject(raw)
}

func fencedBlock(raw string) (string, bool) {
	start := strings.Index(raw, "```")
	if start < 0 {
		return "", false
	}
	rest := raw[start+3:]
	// Drop the info string ("json") up to the end of the line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	} else {
		return "", false
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

func firstObject(raw string) string {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return ""
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
