package similarity

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/recall/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForCurrent(t *testing.T, ix *Index, id core.ID) *core.SimilarityInfo {
	t.Helper()
	var info *core.SimilarityInfo
	require.Eventually(t, func() bool {
		var err error
		info, err = ix.repository.GetSimilarityInfo(context.Background(), id)
		return err == nil && ix.IsCurrent(info)
	}, 5*time.Second, 10*time.Millisecond)
	return info
}

func TestStart_EmbedsCreatedNodes(t *testing.T) {
	ix, repo, _ := newTestIndex(t)
	require.NoError(t, ix.Start(context.Background()))

	node := addNodes(t, repo, &core.Node{Text: "cats purr"})[0]
	waitForCurrent(t, ix, node.Id)

	matches, err := ix.Search(context.Background(), "cats purr", nil)
	require.NoError(t, err)
	assert.Equal(t, []core.ID{node.Id}, ids(matches))
}

func TestStart_ReembedsUpdatedNodes(t *testing.T) {
	ix, repo, _ := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, ix.Start(ctx))

	node := addNodes(t, repo, &core.Node{Text: "cats purr"})[0]
	waitForCurrent(t, ix, node.Id)

	node.Text = "dogs bark"
	_, err := repo.UpdateNodes(ctx, node)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		matches, err := ix.Search(ctx, "dogs bark", nil)
		return err == nil && len(matches) == 1 && matches[0].Node.Id == node.Id
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStart_SweepsExistingNodes(t *testing.T) {
	ix, repo, _ := newTestIndex(t)
	nodes := addNodes(t, repo, &core.Node{Text: "one"}, &core.Node{Text: "two"})

	require.NoError(t, ix.Start(context.Background()))
	for _, n := range nodes {
		waitForCurrent(t, ix, n.Id)
	}
}

func TestStart_Twice(t *testing.T) {
	ix, _, _ := newTestIndex(t)
	require.NoError(t, ix.Start(context.Background()))
	assert.ErrorIs(t, ix.Start(context.Background()), ErrAlreadyStarted)
}

func TestRunning(t *testing.T) {
	ix, _, _ := newTestIndex(t)
	assert.False(t, ix.Running())

	require.NoError(t, ix.Start(context.Background()))
	assert.True(t, ix.Running())

	require.NoError(t, ix.Close())
	assert.False(t, ix.Running())
}

func TestClose(t *testing.T) {
	ix, repo, embedder := newTestIndex(t)
	require.NoError(t, ix.Start(context.Background()))
	require.NoError(t, ix.Close())
	require.NoError(t, ix.Close(), "close is idempotent")
	assert.ErrorIs(t, ix.Start(context.Background()), ErrIndexClosed)

	embedder.Reset()
	addNodes(t, repo, &core.Node{Text: "after close"})
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, embedder.CallCount(), "listener is unregistered")
}

func TestClose_WithoutStart(t *testing.T) {
	ix, _, _ := newTestIndex(t)
	assert.NoError(t, ix.Close())
}

func TestEventQueue_Order(t *testing.T) {
	q := newEventQueue()
	assert.Equal(t, 1, q.push(3))
	assert.Equal(t, 2, q.push(1))
	assert.Equal(t, 3, q.push(2))

	select {
	case <-q.notify:
	default:
		t.Fatal("push should signal the worker")
	}

	assert.Equal(t, []core.ID{3, 1, 2}, q.drain())
	assert.Zero(t, q.len())
	assert.Empty(t, q.drain())
}
