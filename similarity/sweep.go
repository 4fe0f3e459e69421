package similarity

import (
	"context"
	"fmt"

	"github.com/poiesic/recall/storage"
	"golang.org/x/time/rate"
)

// SweepResult summarises one integrity sweep.
type SweepResult struct {
	Visited   int
	Current   int
	Refreshed int
	Failed    int
}

// Sweep visits every node, one at a time, and recomputes embeddings that are
// missing or stale. Recomputations are throttled by the configured sweep rate
// and retried with backoff. Individual failures are logged and counted; the
// sweep only stops early on storage errors or cancellation.
func (ix *Index) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	logger := ix.logger.With("op", "sweep")

	ids, err := ix.repository.GetAllNodeIDs(ctx)
	if err != nil {
		return result, fmt.Errorf("counting nodes: %w", err)
	}

	limiter := rate.NewLimiter(ix.sweepLimit, ix.sweepBurst)
	tracker := NewProgressTracker(logger, len(ids), ix.progressInterval)
	tracker.Start()

	algorithm := ix.CurrentAlgorithm()
	for node, err := range ix.repository.Nodes(ctx) {
		if err != nil {
			return result, err
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Visited++

		info, err := ix.repository.GetSimilarityInfo(ctx, node.Id)
		if storage.IsCorrupt(err) {
			// Rewriting the record repairs it.
			logger.Debug("node embedding is unreadable", "node", node.Id, "err", err)
			info, err = nil, nil
		}
		if err != nil {
			return result, fmt.Errorf("reading embedding of node %d: %w", node.Id, err)
		}
		if IsCurrent(info, algorithm, EmbeddingVersion) {
			result.Current++
			ix.metrics.SweepVisited("current")
			tracker.Increment(1)
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			return result, err
		}
		err = RetryWithBackoff(ctx, func() error {
			return ix.embedNode(ctx, node)
		}, ix.retryAttempts, ix.retryDelay)
		ix.metrics.EmbeddingUpdated("sweep", err)

		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			ix.metrics.SweepVisited("failed")
			logger.Warn("failed to refresh embedding", "node", node.Id, "err", err)
		} else {
			result.Refreshed++
			ix.metrics.SweepVisited("refreshed")
		}
		tracker.Increment(1)
	}

	tracker.Finish()
	logger.Info("sweep complete",
		"visited", result.Visited,
		"current", result.Current,
		"refreshed", result.Refreshed,
		"failed", result.Failed)
	return result, nil
}
