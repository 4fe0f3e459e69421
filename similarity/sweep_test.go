package similarity

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/metrics"
	badgerstore "github.com/poiesic/recall/storage/badger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep_RefreshesMissingAndStale(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	ix, repo, embedder := newTestIndex(t, WithMetrics(m))
	ctx := context.Background()

	current := addEmbedded(t, ix, repo, &core.Node{Text: "current"})[0]
	missing := addNodes(t, repo, &core.Node{Text: "missing"})[0]
	stale := addNodes(t, repo, &core.Node{Text: "stale"})[0]
	require.NoError(t, repo.SetSimilarityInfo(ctx, stale.Id, &core.SimilarityInfo{
		Algorithm: ix.CurrentAlgorithm(),
		Version:   EmbeddingVersion + 1,
		Embedding: core.NewVector([]float32{1}),
	}))
	embedder.Reset()

	result, err := ix.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Visited: 3, Current: 1, Refreshed: 2}, result)
	assert.Equal(t, []string{"missing", "stale"}, embedder.Texts(), "nodes are refreshed one at a time in id order")

	for _, id := range []core.ID{current.Id, missing.Id, stale.Id} {
		info, err := repo.GetSimilarityInfo(ctx, id)
		require.NoError(t, err)
		assert.True(t, ix.IsCurrent(info))
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SweepNodesTotal.WithLabelValues("refreshed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepNodesTotal.WithLabelValues("current")))
}

func TestSweep_RepairsUnreadableEmbedding(t *testing.T) {
	ix, repo, backend, embedder := newTestIndexWithBackend(t)
	ctx := context.Background()

	nodes := addEmbedded(t, ix, repo,
		&core.Node{Text: "intact"},
		&core.Node{Text: "damaged"},
	)
	require.NoError(t, badgerstore.WriteRawSimilarityInfo(backend, nodes[1].Id, []byte{0xff}))
	_, err := repo.GetSimilarityInfo(ctx, nodes[1].Id)
	require.Error(t, err)
	embedder.Reset()

	result, err := ix.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Visited: 2, Current: 1, Refreshed: 1}, result)
	assert.Equal(t, []string{"damaged"}, embedder.Texts())

	info, err := repo.GetSimilarityInfo(ctx, nodes[1].Id)
	require.NoError(t, err)
	assert.True(t, ix.IsCurrent(info))
}

func TestSweep_CountsFailures(t *testing.T) {
	ix, repo, embedder := newTestIndex(t, WithRetry(2, 0))
	addNodes(t, repo, &core.Node{Text: "bad"}, &core.Node{Text: "good"})

	embedder.EmbedTextFunc = func(_ context.Context, text string) ([]float32, error) {
		if text == "bad" {
			return nil, errors.New("model rejected input")
		}
		return []float32{1, 2, 3}, nil
	}

	result, err := ix.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Visited: 2, Refreshed: 1, Failed: 1}, result)
	assert.Equal(t, 3, embedder.CallCount(), "failing node is retried once")
}

func TestSweep_Cancelled(t *testing.T) {
	ix, repo, _ := newTestIndex(t)
	addNodes(t, repo, &core.Node{Text: "one"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ix.Sweep(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSweep_Empty(t *testing.T) {
	ix, _, _ := newTestIndex(t)
	result, err := ix.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, result)
}
