package similarity

import (
	"context"
	"iter"
	"sync/atomic"
	"testing"

	"github.com/poiesic/recall/ai/mock"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/storage"
	badgerstore "github.com/poiesic/recall/storage/badger"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestIndex(t *testing.T, opts ...Option) (*Index, storage.NodeRepository, *mock.MockEmbedder) {
	t.Helper()
	ix, repo, _, embedder := newTestIndexWithBackend(t, opts...)
	return ix, repo, embedder
}

func newTestIndexWithBackend(t *testing.T, opts ...Option) (*Index, storage.NodeRepository, *badgerstore.Backend, *mock.MockEmbedder) {
	t.Helper()

	repo, _, backend, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})

	embedder := mock.NewWordEmbedder()
	opts = append([]Option{WithSweepRate(rate.Inf, 1), WithRetry(1, 0)}, opts...)
	ix, err := New(repo, mock.NewMockProviderWithEmbedder(embedder), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })

	return ix, repo, backend, embedder
}

func addNodes(t *testing.T, repo storage.NodeRepository, nodes ...*core.Node) []*core.Node {
	t.Helper()
	added, err := repo.AddNodes(context.Background(), nodes...)
	require.NoError(t, err)
	return added
}

func addEmbedded(t *testing.T, ix *Index, repo storage.NodeRepository, nodes ...*core.Node) []*core.Node {
	t.Helper()
	added := addNodes(t, repo, nodes...)
	for _, n := range added {
		require.NoError(t, ix.UpdateNode(context.Background(), n.Id))
	}
	return added
}

func ids(matches []Match) []core.ID {
	out := make([]core.ID, len(matches))
	for i, m := range matches {
		out[i] = m.Node.Id
	}
	return out
}

// countingRepository counts every read that reaches node storage.
type countingRepository struct {
	storage.NodeRepository
	reads atomic.Int64
}

func (c *countingRepository) GetNode(ctx context.Context, id core.ID) (*core.Node, error) {
	c.reads.Add(1)
	return c.NodeRepository.GetNode(ctx, id)
}

func (c *countingRepository) GetNodes(ctx context.Context, ids ...core.ID) ([]*core.Node, error) {
	c.reads.Add(1)
	return c.NodeRepository.GetNodes(ctx, ids...)
}

func (c *countingRepository) Nodes(ctx context.Context) iter.Seq2[*core.Node, error] {
	c.reads.Add(1)
	return c.NodeRepository.Nodes(ctx)
}

func (c *countingRepository) GetAllNodeIDs(ctx context.Context) ([]core.ID, error) {
	c.reads.Add(1)
	return c.NodeRepository.GetAllNodeIDs(ctx)
}

func (c *countingRepository) GetSimilarityInfo(ctx context.Context, id core.ID) (*core.SimilarityInfo, error) {
	c.reads.Add(1)
	return c.NodeRepository.GetSimilarityInfo(ctx, id)
}
