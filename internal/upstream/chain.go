// Package upstream reaches the agent platform: the companion HTTP service,
// the platform CLI, and the ordered fallback chain that tries them.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/scrypster/clawscope/internal/metrics"
)

// ErrAllStrategiesFailed is returned when every strategy in a chain failed.
var ErrAllStrategiesFailed = errors.New("all upstream strategies failed")

// Strategy is one way of fetching a resource.
type Strategy[T any] struct {
	// Name labels logs, metrics and provenance ("plugin", "cli").
	Name string

	// Timeout bounds this strategy alone. Zero means no extra bound.
	Timeout time.Duration

	Fetch func(ctx context.Context) (T, error)
}

// Chain tries strategies in order and stops at the first success. There is
// no retry and no backoff: each strategy gets exactly one attempt.
type Chain[T any] struct {
	resource   string
	strategies []Strategy[T]
}

// NewChain builds a chain for resource (used in logs and metrics).
func NewChain[T any](resource string, strategies ...Strategy[T]) *Chain[T] {
	return &Chain[T]{resource: resource, strategies: strategies}
}

// Run returns the first successful result and the name of the strategy that
// produced it.
func (c *Chain[T]) Run(ctx context.Context) (T, string, error) {
	var (
		zero    T
		lastErr error
	)
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}

		v, err := c.attempt(ctx, s)
		if err == nil {
			metrics.UpstreamFetchTotal.WithLabelValues(c.resource, s.Name, metrics.OutcomeSuccess).Inc()
			return v, s.Name, nil
		}

		metrics.UpstreamFetchTotal.WithLabelValues(c.resource, s.Name, metrics.OutcomeFailure).Inc()
		log.Warn().Err(err).Str("resource", c.resource).Str("strategy", s.Name).Msg("upstream strategy failed")
		lastErr = err
	}
	if lastErr == nil {
		return zero, "", fmt.Errorf("%w: %s: no strategies configured", ErrAllStrategiesFailed, c.resource)
	}
	return zero, "", fmt.Errorf("%w: %s: %w", ErrAllStrategiesFailed, c.resource, lastErr)
}

func (c *Chain[T]) attempt(ctx context.Context, s Strategy[T]) (T, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	return s.Fetch(ctx)
}
