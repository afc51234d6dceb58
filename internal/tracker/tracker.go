// Package tracker talks to the issue tracker that reconciliation writes to.
package tracker

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when no tracker URL or key is set.
var ErrNotConfigured = errors.New("issue tracker not configured")

// Item is an open issue in a tracker project.
type Item struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SequenceID int    `json:"sequence_id"`
	Status     string `json:"status"`
	Priority   string `json:"priority"`
}

// StatusGroup names a tracker workflow stage independent of per-project
// state names.
type StatusGroup string

const (
	StatusBacklog   StatusGroup = "backlog"
	StatusUnstarted StatusGroup = "unstarted"
	StatusStarted   StatusGroup = "started"
	StatusCompleted StatusGroup = "completed"
	StatusCancelled StatusGroup = "cancelled"
)

// Client is the subset of tracker operations reconciliation needs.
type Client interface {
	ListOpenItems(ctx context.Context, projectID string) ([]Item, error)
	CreateItem(ctx context.Context, projectID, title, description string) (*Item, error)
	CloseItem(ctx context.Context, projectID, itemID string) error
	TransitionStatus(ctx context.Context, projectID, itemID string, target StatusGroup) error
}

// APIError is a non-2xx tracker response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tracker api error %d: %s", e.StatusCode, e.Body)
}
