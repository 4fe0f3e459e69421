package storage

import (
	"context"
	"iter"

	"github.com/poiesic/recall/core"
)

// NodeListener is notified after a node change has been committed.
// Listeners are called synchronously by the repository and must not block.
type NodeListener func(event core.NodeEvent)

// ListenerID identifies a registered NodeListener.
type ListenerID uint64

// NodeRepository provides operations for managing saved nodes and their
// similarity search annotations.
// Implementations must be thread-safe and support concurrent access.
type NodeRepository interface {
	// AddNodes adds one or more nodes to storage.
	// Generates new IDs from sequence and sets CreatedAt/UpdatedAt.
	// Emits a NodeCreated event per node after commit.
	AddNodes(ctx context.Context, nodes ...*core.Node) ([]*core.Node, error)

	// UpdateNodes updates existing nodes.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if any node doesn't exist.
	// Emits a NodeUpdated event per node after commit.
	UpdateNodes(ctx context.Context, nodes ...*core.Node) ([]*core.Node, error)

	// GetNode retrieves a single node by ID.
	// Returns ErrNotFound if the node doesn't exist.
	GetNode(ctx context.Context, id core.ID) (*core.Node, error)

	// GetNodes retrieves multiple nodes by their IDs, in the order requested.
	// Returns only the nodes that exist (no error for missing nodes).
	GetNodes(ctx context.Context, ids ...core.ID) ([]*core.Node, error)

	// Nodes returns a lazy, finite, forward-only sequence over all nodes in ID order.
	// Iteration stops at the first error, which is yielded with a nil node.
	Nodes(ctx context.Context) iter.Seq2[*core.Node, error]

	// GetAllNodeIDs returns the IDs of all stored nodes in ascending order.
	GetAllNodeIDs(ctx context.Context) ([]core.ID, error)

	// GetSimilarityInfo returns the embedding record of a node.
	// Returns nil, nil if the node has no record.
	GetSimilarityInfo(ctx context.Context, id core.ID) (*core.SimilarityInfo, error)

	// SetSimilarityInfo replaces the embedding record of a node.
	// Returns ErrNotFound if the node doesn't exist. Does not emit events.
	SetSimilarityInfo(ctx context.Context, id core.ID, info *core.SimilarityInfo) error

	// AddListener registers fn for node create/update events.
	AddListener(fn NodeListener) ListenerID

	// RemoveListener unregisters a listener. Unknown IDs are ignored.
	RemoveListener(id ListenerID)

	// Close releases the ID sequence and other repository resources.
	Close() error
}

// KVArea is a flat key/value area with string keys and opaque values.
// It backs the typed cache store. Implementations need not be transactional
// across calls.
type KVArea interface {
	// Get returns the values of the keys that exist. Missing keys are absent from the map.
	Get(ctx context.Context, keys ...string) (map[string][]byte, error)

	// Set writes all entries.
	Set(ctx context.Context, entries map[string][]byte) error

	// Delete removes the keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Keys lists the keys starting with prefix in lexicographic order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
