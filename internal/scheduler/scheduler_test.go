package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr bool
	}{
		{"0 19 * * 1-5", false},
		{"@daily", false},
		{"*/5 * * * *", false},
		{"", true},
		{"not a schedule", true},
		{"0 19 * *", true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			_, err := ParseSchedule(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScheduleUsesLocation(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)
	sched, err := ParseSchedule("0 19 * * *")
	require.NoError(t, err)

	from := time.Date(2025, 3, 4, 10, 0, 0, 0, loc)
	next := sched.Next(from)
	assert.Equal(t, time.Date(2025, 3, 4, 19, 0, 0, 0, loc), next)
}

func TestAddRejectsBadSchedule(t *testing.T) {
	s := New(nil, discardLogger())
	err := s.Add("reckon", "nope", func(context.Context) error { return nil })
	assert.Error(t, err)
	assert.Empty(t, s.Next())
}

func TestNextReportsRegisteredTasks(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)
	s := New(loc, discardLogger())
	require.NoError(t, s.Add("reckon", "0 19 * * *", func(context.Context) error { return nil }))

	next := s.Next()
	require.Len(t, next, 1)
	got := next[0].In(loc)
	assert.Equal(t, 19, got.Hour())
	assert.Equal(t, 0, got.Minute())
}

func TestRunSkippedWhenStopped(t *testing.T) {
	s := New(nil, discardLogger())
	called := false
	s.run("reckon", func(context.Context) error {
		called = true
		return nil
	})
	assert.False(t, called)
}

func TestRunPassesBoundedContext(t *testing.T) {
	s := New(nil, discardLogger())
	s.Start(context.Background())
	defer s.Stop()

	var deadline time.Time
	var ok bool
	s.run("reckon", func(ctx context.Context) error {
		deadline, ok = ctx.Deadline()
		return errors.New("failure is logged, not raised")
	})
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(runTimeout), deadline, time.Minute)
}
