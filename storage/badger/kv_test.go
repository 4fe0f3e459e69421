package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVArea(t *testing.T) {
	nodeRepo, area, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		nodeRepo.Close()
		backend.Close()
	}()
	ctx := context.Background()

	err = area.Set(ctx, map[string][]byte{
		"knn/all-labels":          []byte("labels"),
		"knn/label->class:cats":   []byte("cats"),
		"knn/label->class:dogs":   []byte("dogs"),
		"other/label->class:cats": []byte("other"),
	})
	require.NoError(t, err)

	values, err := area.Get(ctx, "knn/all-labels", "knn/missing")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"knn/all-labels": []byte("labels")}, values)

	keys, err := area.Keys(ctx, "knn/label->class:")
	require.NoError(t, err)
	assert.Equal(t, []string{"knn/label->class:cats", "knn/label->class:dogs"}, keys)

	require.NoError(t, area.Delete(ctx, "knn/label->class:cats", "knn/never-set"))

	keys, err = area.Keys(ctx, "knn/")
	require.NoError(t, err)
	assert.Equal(t, []string{"knn/all-labels", "knn/label->class:dogs"}, keys)
}

func TestKVArea_DoesNotSeeNodes(t *testing.T) {
	nodeRepo, area, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		nodeRepo.Close()
		backend.Close()
	}()

	keys, err := area.Keys(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}
