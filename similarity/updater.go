package similarity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/storage"
)

// eventQueue is an unbounded FIFO of changed node ids.
// push never blocks so storage listeners return immediately.
type eventQueue struct {
	mu     sync.Mutex
	ids    []core.ID
	notify chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{notify: make(chan struct{}, 1)}
}

func (q *eventQueue) push(id core.ID) int {
	q.mu.Lock()
	q.ids = append(q.ids, id)
	n := len(q.ids)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return n
}

func (q *eventQueue) drain() []core.ID {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := q.ids
	q.ids = nil
	return ids
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}

// Start registers for node changes and launches the background updater and
// the integrity sweep. It returns without waiting for either.
func (ix *Index) Start(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return ErrIndexClosed
	}
	if ix.started {
		return ErrAlreadyStarted
	}

	pool, err := ants.NewPool(ix.poolSize)
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	ix.queue = newEventQueue()
	ix.listenerID = ix.repository.AddListener(ix.onNodeEvent)

	ix.wg.Add(1)
	if err := pool.Submit(func() {
		defer ix.wg.Done()
		ix.runUpdater(runCtx)
	}); err != nil {
		ix.wg.Done()
		ix.repository.RemoveListener(ix.listenerID)
		cancel()
		pool.Release()
		return fmt.Errorf("starting updater: %w", err)
	}

	ix.wg.Add(1)
	if err := pool.Submit(func() {
		defer ix.wg.Done()
		if _, err := ix.Sweep(runCtx); err != nil && runCtx.Err() == nil {
			ix.logger.Warn("integrity sweep stopped", "err", err)
		}
	}); err != nil {
		ix.wg.Done()
		ix.repository.RemoveListener(ix.listenerID)
		cancel()
		ix.wg.Wait()
		pool.Release()
		return fmt.Errorf("starting sweep: %w", err)
	}

	ix.pool = pool
	ix.cancel = cancel
	ix.started = true
	ix.logger.Debug("similarity maintenance started", "poolSize", ix.poolSize)
	return nil
}

// Running reports whether background maintenance has been started and the
// index is not closed. While it runs, every stored node is embedded by the
// updater.
func (ix *Index) Running() bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.started && !ix.closed
}

// Close unregisters the storage listener, stops the background workers and
// releases the pool. Pending update events are dropped; the next sweep
// picks up their nodes. Close is idempotent.
func (ix *Index) Close() error {
	ix.mu.Lock()
	if ix.closed {
		ix.mu.Unlock()
		return nil
	}
	ix.closed = true
	started := ix.started
	ix.mu.Unlock()

	if !started {
		return nil
	}

	ix.repository.RemoveListener(ix.listenerID)
	ix.cancel()
	ix.wg.Wait()
	ix.pool.Release()
	return nil
}

func (ix *Index) onNodeEvent(event core.NodeEvent) {
	depth := ix.queue.push(event.Id)
	ix.metrics.SetQueueDepth(depth)
}

func (ix *Index) runUpdater(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ix.queue.notify:
		}

		for _, id := range ix.queue.drain() {
			if ctx.Err() != nil {
				return
			}
			err := RetryWithBackoff(ctx, func() error {
				err := ix.updateNode(ctx, id)
				if errors.Is(err, storage.ErrNotFound) {
					return Permanent(err)
				}
				return err
			}, ix.retryAttempts, ix.retryDelay)
			ix.metrics.EmbeddingUpdated("event", err)

			switch {
			case err == nil:
			case errors.Is(err, storage.ErrNotFound):
				ix.logger.Debug("changed node no longer exists", "node", id)
			case ctx.Err() != nil:
				return
			default:
				ix.logger.Warn("failed to update embedding", "node", id, "err", err)
			}
		}
		ix.metrics.SetQueueDepth(ix.queue.len())
	}
}
