package hermes

import (
	"encoding/json"
	"testing"
)

func TestRunCompletedEncoding(t *testing.T) {
	evt := RunCompleted{
		RunID:     "run-001",
		Session:   "C123",
		Items:     3,
		Succeeded: 2,
		Failed:    1,
		Timestamp: "2025-03-04T19:00:00Z",
	}

	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal RunCompleted: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal RunCompleted: %v", err)
	}
	for _, key := range []string{"run_id", "session", "items", "succeeded", "failed", "timestamp"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("expected key %q in %s", key, data)
		}
	}
	if raw["failed"] != float64(1) {
		t.Errorf("expected failed 1, got %v", raw["failed"])
	}
}

func TestItemExecutedParsing(t *testing.T) {
	raw := `{
		"run_id": "run-001",
		"chat_id": "C123",
		"project_id": "proj-1",
		"action": "close_existing",
		"title": "Server down",
		"ok": true,
		"message": "#42 закрыта"
	}`

	var evt ItemExecuted
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		t.Fatalf("failed to parse ItemExecuted: %v", err)
	}
	if evt.Action != "close_existing" {
		t.Errorf("expected action close_existing, got %q", evt.Action)
	}
	if !evt.OK {
		t.Error("expected ok true")
	}
	if evt.Message != "#42 закрыта" {
		t.Errorf("expected message '#42 закрыта', got %q", evt.Message)
	}
}
