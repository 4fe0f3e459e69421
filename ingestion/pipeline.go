package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/similarity"
	"github.com/poiesic/recall/storage"
)

// DefaultBatchSize is the number of nodes embedded per embedder call.
const DefaultBatchSize = 32

// Pipeline orchestrates the import of nodes and the computation of their
// embeddings.
type Pipeline struct {
	repository storage.NodeRepository
	index      *similarity.Index
	pool       *ants.Pool
	batchSize  int
	logger     *slog.Logger

	wg       sync.WaitGroup
	mu       sync.Mutex
	embedded int
	failures []error
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many nodes share one embedder call.
// Values below 1 are treated as 1.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.batchSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(repository storage.NodeRepository, index *similarity.Index, opts ...Option) (*Pipeline, error) {
	if repository == nil {
		return nil, ErrNodeRepositoryRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		repository: repository,
		index:      index,
		pool:       pool,
		batchSize:  DefaultBatchSize,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	return p, nil
}

// Ingest stores nodes and submits their embeddings for asynchronous
// computation. It returns the stored nodes as soon as they are committed.
// Embedding work keeps running after ctx is cancelled; use Wait to collect
// its outcome. When the index's background maintenance is running, the
// updater already embeds every stored node, so no batches are submitted and
// Wait does not count those nodes.
func (p *Pipeline) Ingest(ctx context.Context, nodes ...*core.Node) ([]*core.Node, error) {
	added, err := p.repository.AddNodes(ctx, nodes...)
	if err != nil {
		return nil, err
	}
	if len(added) == 0 {
		return added, nil
	}
	p.logger.Info("stored nodes", "nodes", len(added))
	if p.index.Running() {
		p.logger.Debug("maintenance running, leaving embeddings to the updater", "nodes", len(added))
		return added, nil
	}

	workCtx := context.WithoutCancel(ctx)
	for start := 0; start < len(added); start += p.batchSize {
		batch := added[start:min(start+p.batchSize, len(added))]

		p.wg.Add(1)
		err := p.pool.Submit(func() {
			defer p.wg.Done()
			p.embed(workCtx, batch)
		})
		if err != nil {
			p.wg.Done()
			p.record(0, err)
		}
	}
	return added, nil
}

func (p *Pipeline) embed(ctx context.Context, batch []*core.Node) {
	p.logger.Debug("embedding batch", "nodes", len(batch), "first", batch[0].Id)
	stored, err := p.index.EmbedNodes(ctx, batch...)
	if err != nil {
		p.logger.Error("error embedding batch", "first", batch[0].Id, "nodes", len(batch), "stored", stored, "err", err)
	}
	p.record(stored, err)
}

// record adds n successfully embedded nodes and, if err is set, one failure.
func (p *Pipeline) record(n int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.embedded += n
	if err != nil {
		p.failures = append(p.failures, err)
	}
}

// Wait blocks until all submitted embedding work has finished. It returns
// the number of nodes embedded since the previous Wait and the joined
// errors of the batches that failed.
func (p *Pipeline) Wait() (int, error) {
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	embedded, err := p.embedded, errors.Join(p.failures...)
	p.embedded, p.failures = 0, nil
	return embedded, err
}

// Release waits for in-flight work and releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	p.wg.Wait()
	if p.pool != nil {
		p.pool.Release()
	}
}
