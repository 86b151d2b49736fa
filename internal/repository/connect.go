package repository

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// Delays between connection attempts while the database comes up.
var connectDelays = []time.Duration{
	500 * time.Millisecond,
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
}

// connectJitter is the ±fraction of jitter applied to delays.
const connectJitter = 0.2

// newRepository is a seam for tests.
var newRepository = New

// nextConnectDelay returns the wait after the given failed attempt (0-indexed).
func nextConnectDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(connectDelays) {
		attempt = len(connectDelays) - 1
	}

	base := connectDelays[attempt]
	jitter := (rand.Float64()*2 - 1) * float64(base) * connectJitter
	return time.Duration(float64(base) + jitter)
}

// Connect calls New until it succeeds, attempts run out or ctx is done.
func Connect(ctx context.Context, databaseURL string, opts PoolOptions, attempts int, logger *slog.Logger) (*Repository, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		repo, err := newRepository(ctx, databaseURL, opts)
		if err == nil {
			return repo, nil
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}

		delay := nextConnectDelay(attempt)
		logger.Warn("database not ready",
			"attempt", attempt+1,
			"max_attempts", attempts,
			"retry_in", delay,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("connect cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("database unavailable after %d attempts: %w", attempts, lastErr)
}
