package similarity

import (
	"context"
	"strings"
	"testing"

	"github.com/poiesic/recall/ai/mock"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, mock.NewMockProvider())
	assert.ErrorIs(t, err, ErrNodeRepositoryRequired)

	ix, repo, _ := newTestIndex(t)
	require.NotNil(t, ix)

	_, err = New(repo, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)

	_, err = New(repo, mock.NewMockProvider(), WithMaxDistance(0))
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = New(repo, mock.NewMockProvider(), WithMaxResults(0))
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = New(repo, mock.NewMockProvider(), WithRetry(0, 0))
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}

func TestEmbeddingText(t *testing.T) {
	tests := []struct {
		name string
		node *core.Node
		want string
	}{
		{
			name: "plain note",
			node: &core.Node{Text: "  remember\tthe  milk \n"},
			want: "remember the milk",
		},
		{
			name: "bookmark without note",
			node: &core.Node{Bookmark: &core.Bookmark{URL: "https://x", Title: "Title", Description: "Desc"}},
			want: "Title Desc",
		},
		{
			name: "bookmark web text is left out",
			node: &core.Node{
				Text:     "note",
				Bookmark: &core.Bookmark{URL: "https://x", Title: "Title", WebText: "long page"},
			},
			want: "Title note",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EmbeddingText(tt.node))
		})
	}
}

func TestEmbeddingText_Truncated(t *testing.T) {
	node := &core.Node{Text: strings.Repeat("é", MaxEmbeddingRunes+10)}
	text := EmbeddingText(node)
	assert.Equal(t, MaxEmbeddingRunes, len([]rune(text)))
}

func TestUpdateNode(t *testing.T) {
	ix, repo, embedder := newTestIndex(t)
	ctx := context.Background()

	node := addNodes(t, repo, &core.Node{Text: "cats purr"})[0]
	require.NoError(t, ix.UpdateNode(ctx, node.Id))

	info, err := repo.GetSimilarityInfo(ctx, node.Id)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "mock-words", info.Algorithm)
	assert.Equal(t, EmbeddingVersion, info.Version)
	assert.Equal(t, []int{mock.DefaultDimension}, info.Embedding.Shape)
	assert.True(t, ix.IsCurrent(info))
	assert.Equal(t, []string{"cats purr"}, embedder.Texts())
}

func TestUpdateNode_NotFound(t *testing.T) {
	ix, _, _ := newTestIndex(t)
	err := ix.UpdateNode(context.Background(), 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateNode_EmptyEmbedding(t *testing.T) {
	ix, repo, embedder := newTestIndex(t)
	node := addNodes(t, repo, &core.Node{Text: "cats"})[0]
	embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return nil, nil
	}
	assert.ErrorIs(t, ix.UpdateNode(context.Background(), node.Id), ErrEmptyEmbedding)
}

func TestIsCurrent(t *testing.T) {
	info := &core.SimilarityInfo{Algorithm: "a", Version: 2}
	assert.True(t, IsCurrent(info, "a", 2))
	assert.False(t, IsCurrent(info, "a", 1))
	assert.False(t, IsCurrent(info, "b", 2))
	assert.False(t, IsCurrent(nil, "a", 2))
}

func TestStats(t *testing.T) {
	ix, repo, _ := newTestIndex(t)
	ctx := context.Background()

	addEmbedded(t, ix, repo, &core.Node{Text: "one"}, &core.Node{Text: "two"})
	addNodes(t, repo, &core.Node{Text: "three"})
	stale := addNodes(t, repo, &core.Node{Text: "four"})[0]
	require.NoError(t, repo.SetSimilarityInfo(ctx, stale.Id, &core.SimilarityInfo{
		Algorithm: "old",
		Version:   EmbeddingVersion,
		Embedding: core.NewVector([]float32{1}),
	}))

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Current: 2, Stale: 1, Missing: 1}, stats)
}

func TestEmbedNodes(t *testing.T) {
	ix, repo, embedder := newTestIndex(t)
	ctx := context.Background()

	nodes := addNodes(t, repo, &core.Node{Text: "cats purr"}, &core.Node{Text: "dogs bark"})
	var batches int
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		batches++
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{float32(i + 1), 0, 0}
		}
		return out, nil
	}

	stored, err := ix.EmbedNodes(ctx, nodes...)
	require.NoError(t, err)
	assert.Equal(t, 2, stored)
	assert.Equal(t, 1, batches)
	assert.Equal(t, []string{"cats purr", "dogs bark"}, embedder.Texts())

	for _, n := range nodes {
		info, err := repo.GetSimilarityInfo(ctx, n.Id)
		require.NoError(t, err)
		require.True(t, ix.IsCurrent(info))
		assert.InDeltaSlice(t, []float32{1, 0, 0}, info.Embedding.Data, 1e-6, "stored normalized")
	}

	stored, err = ix.EmbedNodes(ctx)
	assert.NoError(t, err)
	assert.Zero(t, stored)
}

func TestEmbedNodes_Errors(t *testing.T) {
	ix, repo, embedder := newTestIndex(t)
	ctx := context.Background()
	nodes := addNodes(t, repo, &core.Node{Text: "one"}, &core.Node{Text: "two"})

	t.Run("embedder failure", func(t *testing.T) {
		embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
			return nil, assert.AnError
		}
		stored, err := ix.EmbedNodes(ctx, nodes...)
		assert.ErrorIs(t, err, assert.AnError)
		assert.Zero(t, stored)
	})

	t.Run("short result", func(t *testing.T) {
		embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
			return [][]float32{{1}}, nil
		}
		_, err := ix.EmbedNodes(ctx, nodes...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mismatch")
	})

	t.Run("one node missing", func(t *testing.T) {
		embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1, 0}, {0, 1}}, nil
		}
		ghost := &core.Node{Id: 999, Text: "ghost"}
		stored, err := ix.EmbedNodes(ctx, nodes[0], ghost)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.Equal(t, 1, stored)

		info, err := repo.GetSimilarityInfo(ctx, nodes[0].Id)
		require.NoError(t, err)
		assert.True(t, ix.IsCurrent(info), "other nodes are still stored")
	})
}
