package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/reckon/internal/extractor"
	"github.com/MikeSquared-Agency/reckon/internal/tracker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMappings struct {
	mappings []Mapping
	err      error
}

func (f *fakeMappings) ListActiveMappings(context.Context) ([]Mapping, error) {
	return f.mappings, f.err
}

type fakeTranscripts struct {
	byChat map[string]string
	errs   map[string]error
	since  []time.Time
}

func (f *fakeTranscripts) GetTranscript(_ context.Context, chatID string, since time.Time) (string, error) {
	f.since = append(f.since, since)
	if err := f.errs[chatID]; err != nil {
		return "", err
	}
	return f.byChat[chatID], nil
}

type fakeExtractor struct {
	byChat map[string][]extractor.Incident
	err    error
	calls  int
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, chatName string) ([]extractor.Incident, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.byChat[chatName], nil
}

type call struct {
	op, project, item string
	target           tracker.StatusGroup
}

type fakeTracker struct {
	open      map[string][]tracker.Item
	listErr   map[string]error
	createErr error
	closeErr  error
	moveErr   error
	nextSeq   int
	calls     []call
}

func (f *fakeTracker) ListOpenItems(_ context.Context, projectID string) ([]tracker.Item, error) {
	f.calls = append(f.calls, call{op: "list", project: projectID})
	if err := f.listErr[projectID]; err != nil {
		return nil, err
	}
	return f.open[projectID], nil
}

func (f *fakeTracker) CreateItem(_ context.Context, projectID, title, _ string) (*tracker.Item, error) {
	f.calls = append(f.calls, call{op: "create", project: projectID, item: title})
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextSeq++
	return &tracker.Item{ID: fmt.Sprintf("new-%d", f.nextSeq), Name: title, SequenceID: 100 + f.nextSeq}, nil
}

func (f *fakeTracker) CloseItem(_ context.Context, projectID, itemID string) error {
	f.calls = append(f.calls, call{op: "close", project: projectID, item: itemID})
	return f.closeErr
}

func (f *fakeTracker) TransitionStatus(_ context.Context, projectID, itemID string, target tracker.StatusGroup) error {
	f.calls = append(f.calls, call{op: "transition", project: projectID, item: itemID, target: target})
	return f.moveErr
}

func (f *fakeTracker) count(op string) int {
	n := 0
	for _, c := range f.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

var errBoom = errors.New("boom")
