package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the per-provider circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	OpenFor     time.Duration `yaml:"open_for"`
	Interval    time.Duration `yaml:"interval"`
}

const (
	defaultBreakerFailures = 3
	defaultBreakerOpenFor  = 2 * time.Minute
	defaultBreakerInterval = 10 * time.Minute
)

// BreakerProvider fails fast while a provider keeps failing, so extraction
// fallback moves on without waiting out another timeout.
type BreakerProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker[*Result]
}

func NewBreakerProvider(inner Provider, cfg BreakerConfig, logger *slog.Logger) *BreakerProvider {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaultBreakerFailures
	}
	if cfg.OpenFor == 0 {
		cfg.OpenFor = defaultBreakerOpenFor
	}
	if cfg.Interval == 0 {
		cfg.Interval = defaultBreakerInterval
	}

	cb := gobreaker.NewCircuitBreaker[*Result](gobreaker.Settings{
		Name:        "llm:" + inner.Name(),
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("llm breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &BreakerProvider{inner: inner, breaker: cb}
}

// Name implements Provider.
func (b *BreakerProvider) Name() string { return b.inner.Name() }

// Complete implements Provider.
func (b *BreakerProvider) Complete(ctx context.Context, msgs []Message) (*Result, error) {
	res, err := b.breaker.Execute(func() (*Result, error) {
		return b.inner.Complete(ctx, msgs)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("provider %q circuit open: %w", b.inner.Name(), err)
	}
	return res, err
}

// Stream implements StreamingProvider when the wrapped provider streams.
// Only opening the stream counts against the breaker.
func (b *BreakerProvider) Stream(ctx context.Context, msgs []Message) (<-chan StreamChunk, error) {
	sp, ok := b.inner.(StreamingProvider)
	if !ok {
		return nil, fmt.Errorf("provider %q does not stream", b.inner.Name())
	}
	var ch <-chan StreamChunk
	_, err := b.breaker.Execute(func() (*Result, error) {
		var streamErr error
		ch, streamErr = sp.Stream(ctx, msgs)
		return nil, streamErr
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("provider %q circuit open: %w", b.inner.Name(), err)
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// State exposes the breaker state for status reporting.
func (b *BreakerProvider) State() gobreaker.State {
	return b.breaker.State()
}
