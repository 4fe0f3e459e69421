package ingestion

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/recall/ai/mock"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/similarity"
	"github.com/poiesic/recall/storage"
	"github.com/poiesic/recall/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPipeline(t *testing.T, opts ...Option) (*Pipeline, storage.NodeRepository, *similarity.Index, *mock.MockEmbedder) {
	t.Helper()

	repo, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})

	embedder := mock.NewWordEmbedder()
	index, err := similarity.New(repo, mock.NewMockProviderWithEmbedder(embedder))
	require.NoError(t, err)

	p, err := NewPipeline(repo, index, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)

	return p, repo, index, embedder
}

func TestNewPipeline_Validation(t *testing.T) {
	_, repo, index, _ := setupPipeline(t)

	_, err := NewPipeline(nil, index)
	assert.ErrorIs(t, err, ErrNodeRepositoryRequired)

	_, err = NewPipeline(repo, nil)
	assert.ErrorIs(t, err, ErrIndexRequired)
}

func TestPipeline_Ingest(t *testing.T) {
	p, repo, index, embedder := setupPipeline(t, WithBatchSize(2), WithPoolSize(2))
	ctx := context.Background()

	var calls atomic.Int32
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		calls.Add(1)
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{1, float32(i)}
		}
		return out, nil
	}

	nodes := make([]*core.Node, 5)
	for i := range nodes {
		nodes[i] = &core.Node{Text: fmt.Sprintf("note %d", i)}
	}
	added, err := p.Ingest(ctx, nodes...)
	require.NoError(t, err)
	require.Len(t, added, 5)

	embedded, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, 5, embedded)
	assert.Equal(t, int32(3), calls.Load(), "batches of 2, 2 and 1")

	stats, err := index.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, similarity.Stats{Current: 5}, stats)

	ids, err := repo.GetAllNodeIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 5)

	embedded, err = p.Wait()
	require.NoError(t, err)
	assert.Zero(t, embedded, "counters reset after Wait")
}

func TestPipeline_IngestEmbeddingFailure(t *testing.T) {
	p, repo, index, embedder := setupPipeline(t, WithBatchSize(1))
	ctx := context.Background()

	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		if texts[0] == "bad" {
			return nil, assert.AnError
		}
		return [][]float32{{1, 0}}, nil
	}

	_, err := p.Ingest(ctx, &core.Node{Text: "good"}, &core.Node{Text: "bad"})
	require.NoError(t, err, "storing succeeds even when embedding will fail")

	embedded, err := p.Wait()
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, embedded)

	stats, err := index.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, similarity.Stats{Current: 1, Missing: 1}, stats)

	ids, err := repo.GetAllNodeIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestPipeline_IngestPartialBatch(t *testing.T) {
	p, _, index, embedder := setupPipeline(t, WithBatchSize(2))
	ctx := context.Background()

	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		// an empty vector cannot be stored
		return [][]float32{{1, 0}, {}}, nil
	}

	_, err := p.Ingest(ctx, &core.Node{Text: "kept"}, &core.Node{Text: "dropped"})
	require.NoError(t, err)

	embedded, err := p.Wait()
	assert.ErrorIs(t, err, similarity.ErrEmptyEmbedding)
	assert.Equal(t, 1, embedded, "stored nodes of a failing batch are counted")

	stats, err := index.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, similarity.Stats{Current: 1, Missing: 1}, stats)
}

func TestPipeline_IngestInvalidNode(t *testing.T) {
	p, repo, _, embedder := setupPipeline(t)

	_, err := p.Ingest(context.Background(), &core.Node{Text: "ok"}, &core.Node{})
	assert.ErrorIs(t, err, core.ErrInvalidNode)

	ids, err := repo.GetAllNodeIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Zero(t, embedder.CallCount())
}

func TestPipeline_IngestNothing(t *testing.T) {
	p, _, _, embedder := setupPipeline(t)

	added, err := p.Ingest(context.Background())
	require.NoError(t, err)
	assert.Empty(t, added)

	embedded, err := p.Wait()
	require.NoError(t, err)
	assert.Zero(t, embedded)
	assert.Zero(t, embedder.CallCount())
}

func TestPipeline_CancelledContextStillEmbeds(t *testing.T) {
	p, _, index, _ := setupPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := p.Ingest(ctx, &core.Node{Text: "cats purr"})
	require.NoError(t, err)
	cancel()

	_, err = p.Wait()
	require.NoError(t, err)

	stats, err := index.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Current)
}

func TestPipeline_IngestLeavesEmbeddingToRunningMaintenance(t *testing.T) {
	p, _, index, embedder := setupPipeline(t)
	ctx := context.Background()
	require.NoError(t, index.Start(ctx))
	t.Cleanup(func() { index.Close() })

	var batches atomic.Int32
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		batches.Add(1)
		return nil, assert.AnError
	}

	added, err := p.Ingest(ctx, &core.Node{Text: "cats purr"}, &core.Node{Text: "dogs bark"})
	require.NoError(t, err)
	require.Len(t, added, 2)

	embedded, err := p.Wait()
	require.NoError(t, err)
	assert.Zero(t, embedded)

	require.Eventually(t, func() bool {
		stats, err := index.Stats(ctx)
		return err == nil && stats.Current == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, batches.Load(), "nodes are embedded once, by the updater")
}
