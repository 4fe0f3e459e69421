package similarity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/vecgo/distance"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/fragment"
	"github.com/poiesic/recall/metrics"
	"github.com/poiesic/recall/storage"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	// EmbeddingVersion identifies the text normalisation applied before embedding.
	// Bump it whenever EmbeddingText changes so existing records become stale.
	EmbeddingVersion = 1

	// MaxEmbeddingRunes bounds the text sent to the embedder for a single node.
	MaxEmbeddingRunes = 2048
)

// Index answers similarity queries over the embeddings stored with each node
// and keeps those embeddings current.
type Index struct {
	repository storage.NodeRepository
	provider   ai.AIProvider

	embedderOnce sync.Once
	embedder     ai.Embedder

	distanceFunc     distance.Func
	maxDistance      float32
	maxResults       int
	fragmentOpts     fragment.Options
	poolSize         int
	sweepLimit       rate.Limit
	sweepBurst       int
	retryAttempts    int
	retryDelay       time.Duration
	progressInterval int

	logger  *slog.Logger
	metrics *metrics.Metrics
	queries singleflight.Group

	mu         sync.Mutex
	started    bool
	closed     bool
	pool       *ants.Pool
	listenerID storage.ListenerID
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	queue      *eventQueue
}

// New creates a similarity index over the nodes in repository.
// The provider's embedder is resolved on first use.
func New(repository storage.NodeRepository, provider ai.AIProvider, opts ...Option) (*Index, error) {
	if repository == nil {
		return nil, ErrNodeRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	ix := &Index{
		repository:       repository,
		provider:         provider,
		distanceFunc:     CosineDistance,
		maxDistance:      DefaultMaxDistance,
		maxResults:       DefaultMaxResults,
		fragmentOpts:     fragment.DefaultOptions(),
		poolSize:         defaultPoolSize,
		sweepLimit:       DefaultSweepRate,
		sweepBurst:       1,
		retryAttempts:    defaultRetryAttempts,
		retryDelay:       defaultRetryDelay,
		progressInterval: defaultProgressInterval,
		logger:           slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(ix); err != nil {
			return nil, err
		}
	}
	ix.logger = ix.logger.With("component", "similarity")

	return ix, nil
}

func (ix *Index) getEmbedder() ai.Embedder {
	ix.embedderOnce.Do(func() {
		ix.embedder = ix.provider.Embedder()
	})
	return ix.embedder
}

// CurrentAlgorithm returns the algorithm tag of the embeddings this index produces.
func (ix *Index) CurrentAlgorithm() string {
	return ix.getEmbedder().Algorithm()
}

// IsCurrent reports whether info was produced by this index's embedder and EmbeddingVersion.
func (ix *Index) IsCurrent(info *core.SimilarityInfo) bool {
	return IsCurrent(info, ix.CurrentAlgorithm(), EmbeddingVersion)
}

// IsCurrent reports whether info matches algorithm and version.
// A nil record is never current.
func IsCurrent(info *core.SimilarityInfo, algorithm string, version int) bool {
	return info.IsCurrent(algorithm, version)
}

// EmbeddingText returns the normalised text embedded for node: the bookmark
// title and description followed by the node text, whitespace collapsed and
// truncated to MaxEmbeddingRunes. Page text is left out to bound the input.
func EmbeddingText(node *core.Node) string {
	parts := make([]string, 0, 3)
	if node.Bookmark != nil {
		parts = append(parts, node.Bookmark.Title, node.Bookmark.Description)
	}
	parts = append(parts, node.Text)

	text := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	runes := []rune(text)
	if len(runes) > MaxEmbeddingRunes {
		text = strings.TrimSpace(string(runes[:MaxEmbeddingRunes]))
	}
	return text
}

// UpdateNode recomputes and stores the embedding of one node.
func (ix *Index) UpdateNode(ctx context.Context, id core.ID) error {
	err := ix.updateNode(ctx, id)
	ix.metrics.EmbeddingUpdated("direct", err)
	return err
}

func (ix *Index) updateNode(ctx context.Context, id core.ID) error {
	node, err := ix.repository.GetNode(ctx, id)
	if err != nil {
		return fmt.Errorf("loading node %d: %w", id, err)
	}
	return ix.embedNode(ctx, node)
}

func (ix *Index) embedNode(ctx context.Context, node *core.Node) error {
	embedder := ix.getEmbedder()

	vec, err := embedder.EmbedText(ctx, EmbeddingText(node))
	if err != nil {
		return fmt.Errorf("embedding node %d: %w", node.Id, err)
	}
	return ix.storeEmbedding(ctx, node.Id, embedder.Algorithm(), vec)
}

// EmbedNodes computes the embeddings of nodes with a single batched embedder
// call and stores them. It returns how many embeddings were stored. Storage
// failures of individual nodes are joined into the returned error; the
// remaining nodes are still stored.
func (ix *Index) EmbedNodes(ctx context.Context, nodes ...*core.Node) (int, error) {
	if len(nodes) == 0 {
		return 0, nil
	}
	embedder := ix.getEmbedder()

	texts := make([]string, len(nodes))
	for i, node := range nodes {
		texts[i] = EmbeddingText(node)
	}
	vecs, err := embedder.EmbedTexts(ctx, texts)
	if err == nil && len(vecs) != len(nodes) {
		err = fmt.Errorf("embedding result mismatch: expected %d, received %d", len(nodes), len(vecs))
	}
	if err != nil {
		for range nodes {
			ix.metrics.EmbeddingUpdated("batch", err)
		}
		return 0, fmt.Errorf("embedding %d nodes: %w", len(nodes), err)
	}

	var (
		stored int
		errs   []error
	)
	for i, node := range nodes {
		err := ix.storeEmbedding(ctx, node.Id, embedder.Algorithm(), vecs[i])
		ix.metrics.EmbeddingUpdated("batch", err)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		stored++
	}
	return stored, errors.Join(errs...)
}

func (ix *Index) storeEmbedding(ctx context.Context, id core.ID, algorithm string, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("embedding node %d: %w", id, ErrEmptyEmbedding)
	}
	info := &core.SimilarityInfo{
		Algorithm: algorithm,
		Version:   EmbeddingVersion,
		Embedding: core.NewVector(NormalizeVector(vec)),
	}
	if err := ix.repository.SetSimilarityInfo(ctx, id, info); err != nil {
		return fmt.Errorf("storing embedding of node %d: %w", id, err)
	}
	ix.logger.Debug("embedding updated", "node", id, "algorithm", algorithm)
	return nil
}

// Stats counts stored embedding records by state.
type Stats struct {
	Current int
	Stale   int
	Missing int
}

// Stats walks every node id and classifies its embedding record.
func (ix *Index) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	ids, err := ix.repository.GetAllNodeIDs(ctx)
	if err != nil {
		return stats, err
	}

	algorithm := ix.CurrentAlgorithm()
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		info, err := ix.repository.GetSimilarityInfo(ctx, id)
		if err != nil {
			return stats, err
		}
		switch {
		case info == nil:
			stats.Missing++
		case IsCurrent(info, algorithm, EmbeddingVersion):
			stats.Current++
		default:
			stats.Stale++
		}
	}
	return stats, nil
}
