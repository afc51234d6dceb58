package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const statesJSON = `{"results":[
	{"id":"st-backlog","name":"Backlog","group":"backlog"},
	{"id":"st-todo","name":"Todo","group":"unstarted"},
	{"id":"st-progress","name":"In Progress","group":"started"},
	{"id":"st-review","name":"Review","group":"started"},
	{"id":"st-done","name":"Done","group":"completed"},
	{"id":"st-shipped","name":"Shipped","group":"completed"},
	{"id":"st-cancel","name":"Cancelled","group":"cancelled"}
]}`

type fakePlane struct {
	mu         sync.Mutex
	stateCalls int
	patches    map[string]string
	created    []map[string]string
}

func (f *fakePlane) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1/workspaces/ops/projects/proj-1/"

	mux.HandleFunc(base+"states/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.stateCalls++
		f.mu.Unlock()
		fmt.Fprint(w, statesJSON)
	})
	mux.HandleFunc(base+"issues/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "plane-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodGet:
			if r.URL.Query().Get("cursor") == "" {
				fmt.Fprint(w, `{"results":[
					{"id":"i-1","name":"Fix login bug","sequence_id":12,"state":"st-progress","priority":"high"},
					{"id":"i-2","name":"Old done task","sequence_id":3,"state":"st-shipped","priority":"none"}
				],"next_cursor":"100:1:0","next_page_results":true}`)
				return
			}
			fmt.Fprint(w, `{"results":[
				{"id":"i-3","name":"Update docs","sequence_id":14,"state":"st-todo","priority":"low"},
				{"id":"i-4","name":"Dropped","sequence_id":15,"state":"st-cancel","priority":"low"}
			],"next_cursor":"","next_page_results":false}`)
		case http.MethodPost:
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode create body: %v", err)
			}
			f.mu.Lock()
			f.created = append(f.created, body)
			f.mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"id":"i-new","name":%q,"sequence_id":42,"state":"st-todo","priority":"none"}`, body["name"])
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc(base+"issues/i-1/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		if f.patches == nil {
			f.patches = make(map[string]string)
		}
		f.patches["i-1"] = body["state"]
		f.mu.Unlock()
		fmt.Fprint(w, `{"id":"i-1"}`)
	})
	mux.HandleFunc(base+"issues/i-locked/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "x"+strings.Repeat("ж", 400))
	})
	mux.HandleFunc(base+"issues/i-missing/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"detail":"Not found."}`)
	})
	return mux
}

func newTestPlane(t *testing.T) (*Plane, *fakePlane) {
	t.Helper()
	fake := &fakePlane{}
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	p, err := NewPlane(server.URL+"/", "plane-key", "ops", 100, discardLogger())
	if err != nil {
		t.Fatalf("NewPlane: %v", err)
	}
	return p, fake
}

func TestNewPlane_NotConfigured(t *testing.T) {
	for _, args := range [][3]string{
		{"", "key", "ws"},
		{"http://x", "", "ws"},
		{"http://x", "key", ""},
	} {
		_, err := NewPlane(args[0], args[1], args[2], 5, discardLogger())
		if !errors.Is(err, ErrNotConfigured) {
			t.Errorf("NewPlane(%q, %q, %q) = %v, want ErrNotConfigured", args[0], args[1], args[2], err)
		}
	}
}

func TestListOpenItems(t *testing.T) {
	p, fake := newTestPlane(t)

	items, err := p.ListOpenItems(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 open items across pages, got %d: %+v", len(items), items)
	}
	if items[0].ID != "i-1" || items[0].SequenceID != 12 || items[0].Status != "In Progress" || items[0].Priority != "high" {
		t.Errorf("unexpected first item: %+v", items[0])
	}
	if items[1].Name != "Update docs" || items[1].Status != "Todo" {
		t.Errorf("unexpected second item: %+v", items[1])
	}

	if _, err := p.ListOpenItems(context.Background(), "proj-1"); err != nil {
		t.Fatal(err)
	}
	if fake.stateCalls != 1 {
		t.Errorf("expected states fetched once, got %d", fake.stateCalls)
	}
}

func TestCreateItem(t *testing.T) {
	p, fake := newTestPlane(t)

	item, err := p.CreateItem(context.Background(), "proj-1", "Server down", "502 <everywhere>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.ID != "i-new" || item.SequenceID != 42 || item.Name != "Server down" {
		t.Errorf("unexpected item: %+v", item)
	}
	if len(fake.created) != 1 {
		t.Fatalf("expected one create call, got %d", len(fake.created))
	}
	if !strings.Contains(fake.created[0]["description_html"], "&lt;everywhere&gt;") {
		t.Errorf("expected escaped description, got %q", fake.created[0]["description_html"])
	}
}

func TestCloseAndTransition(t *testing.T) {
	p, fake := newTestPlane(t)

	if err := p.CloseItem(context.Background(), "proj-1", "i-1"); err != nil {
		t.Fatalf("CloseItem: %v", err)
	}
	if fake.patches["i-1"] != "st-done" {
		t.Errorf("expected first completed state, got %q", fake.patches["i-1"])
	}

	if err := p.TransitionStatus(context.Background(), "proj-1", "i-1", StatusStarted); err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if fake.patches["i-1"] != "st-progress" {
		t.Errorf("expected first started state, got %q", fake.patches["i-1"])
	}
}

func TestTransition_APIError(t *testing.T) {
	p, _ := newTestPlane(t)

	err := p.CloseItem(context.Background(), "proj-1", "i-missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", apiErr.StatusCode)
	}
}

func TestAPIError_TruncatesOnRuneBoundary(t *testing.T) {
	p, _ := newTestPlane(t)

	err := p.CloseItem(context.Background(), "proj-1", "i-locked")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if !utf8.ValidString(apiErr.Body) {
		t.Errorf("error body is not valid UTF-8: %q", apiErr.Body)
	}
	if !strings.HasSuffix(apiErr.Body, "...") || len(apiErr.Body) > maxErrorBody+3 {
		t.Errorf("unexpected truncation: %d bytes", len(apiErr.Body))
	}
}

func TestTransition_UnknownGroup(t *testing.T) {
	p, _ := newTestPlane(t)

	if err := p.TransitionStatus(context.Background(), "proj-1", "i-1", StatusGroup("triage")); err == nil {
		t.Fatal("expected error for group without a state")
	}
}

func TestBadAPIKey(t *testing.T) {
	fake := &fakePlane{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	p, _ := NewPlane(server.URL, "wrong", "ops", 100, discardLogger())
	_, err := p.ListOpenItems(context.Background(), "proj-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
}
