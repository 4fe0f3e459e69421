package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/recall/cache"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/knn"
	"github.com/poiesic/recall/storage"
	badgerstore "github.com/poiesic/recall/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newArea(t *testing.T) storage.KVArea {
	t.Helper()
	repo, area, backend, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	return area
}

type failingSetArea struct {
	storage.KVArea
	fail bool
}

var errInjected = errors.New("injected failure")

func (f *failingSetArea) Set(ctx context.Context, entries map[string][]byte) error {
	if f.fail {
		return errInjected
	}
	return f.KVArea.Set(ctx, entries)
}

func TestSignature(t *testing.T) {
	assert.Equal(t, Signature("openai:m", 1), Signature("openai:m", 1))
	assert.NotEqual(t, Signature("openai:m", 1), Signature("openai:m", 2))
	assert.NotEqual(t, Signature("openai:m", 1), Signature("openai:n", 1))
	assert.Len(t, Signature("a", 1), 64)
}

func TestCreate_Validation(t *testing.T) {
	_, err := Create(context.Background(), nil, "sig")
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = Create(context.Background(), cache.New(newArea(t), "clf"), "")
	assert.ErrorIs(t, err, ErrEmptySignature)
}

func TestAddExample_SurvivesReload(t *testing.T) {
	ctx := context.Background()
	store := cache.New(newArea(t), "clf")

	c, err := Create(ctx, store, "sig")
	require.NoError(t, err)
	require.NoError(t, c.AddExample(ctx, []float32{1, 0}, "work"))
	require.NoError(t, c.AddExample(ctx, []float32{3, 4}, "work"))
	require.NoError(t, c.AddExample(ctx, []float32{0, 1}, "home"))

	reloaded, err := Create(ctx, store, "sig")
	require.NoError(t, err)
	assert.Equal(t, []string{"work", "home"}, reloaded.Labels())

	v, ok, err := store.Get(ctx, cache.LabelClassKey{Label: "work"})
	require.NoError(t, err)
	require.True(t, ok)
	class := v.(cache.LabelClassValue).Class
	assert.Equal(t, []int{2, 2}, class.Shape)
	assert.InDeltaSlice(t, []float32{1, 0, 0.6, 0.8}, class.Data, 1e-6, "stored examples are normalised")

	want, err := c.PredictClass([]float32{0.2, 1}, 3)
	require.NoError(t, err)
	got, err := reloaded.PredictClass([]float32{0.2, 1}, 3)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "work", got.Label, "two of the three nearest examples are work")
}

func TestClearClass_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := cache.New(newArea(t), "clf")

	c, err := Create(ctx, store, "sig")
	require.NoError(t, err)
	require.NoError(t, c.AddExample(ctx, []float32{1, 0}, "a"))
	require.NoError(t, c.AddExample(ctx, []float32{0, 1}, "b"))
	require.NoError(t, c.ClearClass(ctx, "a"))
	assert.Equal(t, []string{"b"}, c.Labels())

	reloaded, err := Create(ctx, store, "sig")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, reloaded.Labels())

	pred, err := reloaded.PredictClass([]float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "b", pred.Label, "only b remains")

	_, ok, err := store.Get(ctx, cache.LabelClassKey{Label: "a"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreate_SignatureMismatchDiscardsExamples(t *testing.T) {
	ctx := context.Background()
	store := cache.New(newArea(t), "clf")

	c, err := Create(ctx, store, Signature("model-a", 1))
	require.NoError(t, err)
	require.NoError(t, c.AddExample(ctx, []float32{1, 0}, "a"))

	c, err = Create(ctx, store, Signature("model-b", 1))
	require.NoError(t, err)
	assert.Empty(t, c.Labels())
	_, err = c.PredictClass([]float32{1, 0}, 1)
	assert.ErrorIs(t, err, knn.ErrEmptyDataset)

	c, err = Create(ctx, store, Signature("model-a", 1))
	require.NoError(t, err)
	assert.Empty(t, c.Labels(), "switching back does not resurrect wiped examples")
}

func TestCreate_SkipsLabelWithoutClass(t *testing.T) {
	ctx := context.Background()
	store := cache.New(newArea(t), "clf")
	_, err := store.EnsureValid(ctx, "sig")
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx,
		cache.Entry{Key: cache.AllLabelsKey{}, Value: cache.AllLabelsValue{Labels: []string{"ghost", "real"}}},
		cache.Entry{Key: cache.LabelClassKey{Label: "real"}, Value: cache.LabelClassValue{
			Class: core.Tensor{Data: []float32{1, 0}, Shape: []int{1, 2}},
		}},
	))

	c, err := Create(ctx, store, "sig")
	require.NoError(t, err)
	assert.Equal(t, []string{"real"}, c.Labels())
}

func TestAddExample_NotTransactional(t *testing.T) {
	ctx := context.Background()
	area := &failingSetArea{KVArea: newArea(t)}
	store := cache.New(area, "clf")

	c, err := Create(ctx, store, "sig")
	require.NoError(t, err)

	area.fail = true
	err = c.AddExample(ctx, []float32{1, 0}, "a")
	assert.ErrorIs(t, err, errInjected)

	// memory keeps the example, the store does not
	pred, err := c.PredictClass([]float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", pred.Label)

	area.fail = false
	reloaded, err := Create(ctx, store, "sig")
	require.NoError(t, err)
	assert.Empty(t, reloaded.Labels())
}

func TestAddExample_InvalidVector(t *testing.T) {
	ctx := context.Background()
	c, err := Create(ctx, cache.New(newArea(t), "clf"), "sig")
	require.NoError(t, err)

	assert.ErrorIs(t, c.AddExample(ctx, []float32{0, 0}, "a"), knn.ErrZeroVector)
	assert.Empty(t, c.Labels())
}
