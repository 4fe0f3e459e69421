package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeGlob(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"knn/all-labels", "knn/all-labels"},
		{"a*b", `a\*b`},
		{"label->class:[x]?", `label->class:\[x\]\?`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeGlob(tt.in), tt.in)
	}
}

func TestIsNilError(t *testing.T) {
	assert.True(t, isNilError(goredis.Nil))
	assert.True(t, isNilError(fmt.Errorf("wrapped: %w", goredis.Nil)))
	assert.False(t, isNilError(assert.AnError))
	assert.False(t, isNilError(nil))
}

// TestKVArea_Live runs against a real server when RECALL_TEST_REDIS_ADDR is set.
func TestKVArea_Live(t *testing.T) {
	addr := os.Getenv("RECALL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RECALL_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	namespace := fmt.Sprintf("recall-test-%d:", time.Now().UnixNano())
	area, err := NewKVArea(ctx, Options{Addr: addr, Namespace: namespace})
	require.NoError(t, err)
	defer area.Close()
	defer func() {
		keys, _ := area.Keys(ctx, "")
		_ = area.Delete(ctx, keys...)
	}()

	require.NoError(t, area.Set(ctx, map[string][]byte{
		"knn/all-labels":        []byte{1, 2, 3},
		"knn/label->class:cats": []byte("cats"),
		"knn/label->class:dogs": []byte("dogs"),
	}))

	values, err := area.Get(ctx, "knn/all-labels", "knn/missing")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"knn/all-labels": {1, 2, 3}}, values)

	values, err = area.Get(ctx, "knn/label->class:cats")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"knn/label->class:cats": []byte("cats")}, values)

	values, err = area.Get(ctx, "knn/missing")
	require.NoError(t, err)
	assert.Empty(t, values)

	keys, err := area.Keys(ctx, "knn/label->class:")
	require.NoError(t, err)
	assert.Equal(t, []string{"knn/label->class:cats", "knn/label->class:dogs"}, keys)

	require.NoError(t, area.Delete(ctx, "knn/label->class:cats"))
	keys, err = area.Keys(ctx, "knn/")
	require.NoError(t, err)
	assert.Equal(t, []string{"knn/all-labels", "knn/label->class:dogs"}, keys)
}
