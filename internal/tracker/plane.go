package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"
)

const maxErrorBody = 500

// Plane is a Client for the Plane REST API (v1).
type Plane struct {
	baseURL   string
	apiKey    string
	workspace string
	client    *http.Client
	limiter   *rate.Limiter
	logger    *slog.Logger

	mu     sync.Mutex
	states map[string]map[StatusGroup]string // project -> group -> state id
	byID   map[string]map[string]planeState  // project -> state id -> state
}

// NewPlane returns a Plane client. Requests are paced at rps per second.
func NewPlane(baseURL, apiKey, workspace string, rps int, logger *slog.Logger) (*Plane, error) {
	if baseURL == "" || apiKey == "" || workspace == "" {
		return nil, ErrNotConfigured
	}
	if rps <= 0 {
		rps = 5
	}
	return &Plane{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		workspace: workspace,
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(rps), rps),
		logger:    logger,
		states:    make(map[string]map[StatusGroup]string),
		byID:      make(map[string]map[string]planeState),
	}, nil
}

type planeState struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

type planeIssue struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SequenceID int    `json:"sequence_id"`
	State      string `json:"state"`
	Priority   string `json:"priority"`
}

type page[T any] struct {
	Results         []T    `json:"results"`
	NextCursor      string `json:"next_cursor"`
	NextPageResults bool   `json:"next_page_results"`
}

// ListOpenItems returns issues not in a completed or cancelled state.
func (p *Plane) ListOpenItems(ctx context.Context, projectID string) ([]Item, error) {
	if err := p.loadStates(ctx, projectID); err != nil {
		return nil, err
	}

	p.mu.Lock()
	known := p.byID[projectID]
	p.mu.Unlock()

	var items []Item
	cursor := ""
	for {
		q := url.Values{"per_page": {"100"}}
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		var pg page[planeIssue]
		if err := p.do(ctx, http.MethodGet, p.projectPath(projectID, "issues/")+"?"+q.Encode(), nil, &pg); err != nil {
			return nil, fmt.Errorf("list issues: %w", err)
		}
		for _, is := range pg.Results {
			st := known[is.State]
			if g := StatusGroup(st.Group); g == StatusCompleted || g == StatusCancelled {
				continue
			}
			items = append(items, Item{
				ID:         is.ID,
				Name:       is.Name,
				SequenceID: is.SequenceID,
				Status:     st.Name,
				Priority:   is.Priority,
			})
		}
		if !pg.NextPageResults || pg.NextCursor == "" {
			break
		}
		cursor = pg.NextCursor
	}

	p.logger.Debug("listed open items", "project_id", projectID, "count", len(items))
	return items, nil
}

// CreateItem creates an issue in the project's default state.
func (p *Plane) CreateItem(ctx context.Context, projectID, title, description string) (*Item, error) {
	body := map[string]string{
		"name":             title,
		"description_html": "<p>" + html.EscapeString(description) + "</p>",
	}
	var is planeIssue
	if err := p.do(ctx, http.MethodPost, p.projectPath(projectID, "issues/"), body, &is); err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}
	return &Item{ID: is.ID, Name: is.Name, SequenceID: is.SequenceID, Priority: is.Priority}, nil
}

// CloseItem moves an issue to the project's completed state.
func (p *Plane) CloseItem(ctx context.Context, projectID, itemID string) error {
	return p.TransitionStatus(ctx, projectID, itemID, StatusCompleted)
}

// TransitionStatus moves an issue to the first state of the target group.
func (p *Plane) TransitionStatus(ctx context.Context, projectID, itemID string, target StatusGroup) error {
	if err := p.loadStates(ctx, projectID); err != nil {
		return err
	}

	p.mu.Lock()
	stateID, ok := p.states[projectID][target]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("project %s has no %s state", projectID, target)
	}

	body := map[string]string{"state": stateID}
	if err := p.do(ctx, http.MethodPatch, p.projectPath(projectID, "issues/"+itemID+"/"), body, nil); err != nil {
		return fmt.Errorf("transition issue %s to %s: %w", itemID, target, err)
	}
	return nil
}

// loadStates caches the project's state ids by group on first use.
func (p *Plane) loadStates(ctx context.Context, projectID string) error {
	p.mu.Lock()
	_, cached := p.states[projectID]
	p.mu.Unlock()
	if cached {
		return nil
	}

	var pg page[planeState]
	if err := p.do(ctx, http.MethodGet, p.projectPath(projectID, "states/"), nil, &pg); err != nil {
		return fmt.Errorf("list states: %w", err)
	}

	groups := make(map[StatusGroup]string)
	byID := make(map[string]planeState, len(pg.Results))
	for _, s := range pg.Results {
		byID[s.ID] = s
		g := StatusGroup(s.Group)
		if _, seen := groups[g]; !seen {
			groups[g] = s.ID
		}
	}

	p.mu.Lock()
	p.states[projectID] = groups
	p.byID[projectID] = byID
	p.mu.Unlock()
	return nil
}

func (p *Plane) projectPath(projectID, suffix string) string {
	return fmt.Sprintf("%s/api/v1/workspaces/%s/projects/%s/%s", p.baseURL, p.workspace, projectID, suffix)
}

func (p *Plane) do(ctx context.Context, method, endpoint string, in, out any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-Key", p.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: truncateBody(string(respBody), maxErrorBody)}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// truncateBody cuts s to at most n bytes without splitting a rune.
func truncateBody(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

var _ Client = (*Plane)(nil)
