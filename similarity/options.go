package similarity

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hupe1980/vecgo/distance"
	"github.com/poiesic/recall/fragment"
	"github.com/poiesic/recall/metrics"
	"golang.org/x/time/rate"
)

const (
	// DefaultMaxDistance is the exclusive upper bound on the distance of a match.
	DefaultMaxDistance = 0.6

	// DefaultMaxResults caps the number of matches returned by Search.
	DefaultMaxResults = 32

	// DefaultSweepRate is the number of embeddings the sweep may recompute per second.
	DefaultSweepRate = 5

	defaultPoolSize         = 2
	defaultRetryAttempts    = 3
	defaultRetryDelay       = 500 * time.Millisecond
	defaultProgressInterval = 100
)

// Option configures an Index.
type Option func(*Index) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Index) error {
		if logger == nil {
			logger = slog.Default()
		}
		ix.logger = logger
		return nil
	}
}

// WithMetrics records search and maintenance activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(ix *Index) error {
		ix.metrics = m
		return nil
	}
}

// WithDistanceFunc replaces the distance between a query and a stored embedding.
// Default is CosineDistance.
func WithDistanceFunc(fn distance.Func) Option {
	return func(ix *Index) error {
		if fn == nil {
			fn = CosineDistance
		}
		ix.distanceFunc = fn
		return nil
	}
}

// WithMaxDistance sets the exclusive distance bound for matches.
func WithMaxDistance(d float32) Option {
	return func(ix *Index) error {
		if d <= 0 {
			return fmt.Errorf("%w: max distance %v", ErrInvalidOption, d)
		}
		ix.maxDistance = d
		return nil
	}
}

// WithMaxResults caps the number of matches returned by Search.
func WithMaxResults(n int) Option {
	return func(ix *Index) error {
		if n < 1 {
			return fmt.Errorf("%w: max results %d", ErrInvalidOption, n)
		}
		ix.maxResults = n
		return nil
	}
}

// WithFragmentOptions sets the context sizes used when quoting bookmark text.
func WithFragmentOptions(opts fragment.Options) Option {
	return func(ix *Index) error {
		ix.fragmentOpts = opts
		return nil
	}
}

// WithPoolSize sets the background worker pool size.
// The updater and the sweep each hold one worker, so sizes below 2 are raised to 2.
func WithPoolSize(size int) Option {
	return func(ix *Index) error {
		if size < defaultPoolSize {
			size = defaultPoolSize
		}
		ix.poolSize = size
		return nil
	}
}

// WithSweepRate limits how many embeddings the integrity sweep recomputes per second.
// rate.Inf disables throttling.
func WithSweepRate(limit rate.Limit, burst int) Option {
	return func(ix *Index) error {
		if limit <= 0 {
			return fmt.Errorf("%w: sweep rate %v", ErrInvalidOption, limit)
		}
		if burst < 1 {
			burst = 1
		}
		ix.sweepLimit = limit
		ix.sweepBurst = burst
		return nil
	}
}

// WithRetry configures retries of failed embedding calls during maintenance.
// The delay doubles after every failed attempt.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(ix *Index) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		ix.retryAttempts = maxAttempts
		ix.retryDelay = baseDelay
		return nil
	}
}

// WithProgressInterval sets how many nodes the sweep visits between progress log lines.
func WithProgressInterval(n int) Option {
	return func(ix *Index) error {
		if n < 1 {
			n = 1
		}
		ix.progressInterval = n
		return nil
	}
}
