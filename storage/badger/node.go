package badger

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/storage"
)

// nodePageSize is the number of nodes read per transaction by Nodes.
const nodePageSize = 100

// NodeRepository implements storage.NodeRepository for BadgerDB.
type NodeRepository struct {
	backend *Backend
	idSeq   *badger.Sequence

	mu             sync.RWMutex
	listeners      map[storage.ListenerID]storage.NodeListener
	nextListenerID storage.ListenerID
}

var _ storage.NodeRepository = (*NodeRepository)(nil)

// NewNodeRepository creates a new NodeRepository.
func NewNodeRepository(backend *Backend) (*NodeRepository, error) {
	idSeq, err := backend.GetSequence(nodeIDSeq)
	if err != nil {
		return nil, err
	}

	return &NodeRepository{
		backend:   backend,
		idSeq:     idSeq,
		listeners: make(map[storage.ListenerID]storage.NodeListener),
	}, nil
}

// Close releases the ID sequence.
func (r *NodeRepository) Close() error {
	return r.idSeq.Release()
}

// AddListener registers fn for node change events.
func (r *NodeRepository) AddListener(fn storage.NodeListener) storage.ListenerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextListenerID++
	r.listeners[r.nextListenerID] = fn
	return r.nextListenerID
}

// RemoveListener unregisters a listener.
func (r *NodeRepository) RemoveListener(id storage.ListenerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.listeners, id)
}

// emit notifies listeners in registration order.
func (r *NodeRepository) emit(kind core.NodeEventKind, nodes []*core.Node) {
	r.mu.RLock()
	ids := make([]storage.ListenerID, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]storage.NodeListener, len(ids))
	for i, id := range ids {
		fns[i] = r.listeners[id]
	}
	r.mu.RUnlock()

	for _, node := range nodes {
		event := core.NodeEvent{Kind: kind, Id: node.Id}
		for _, fn := range fns {
			fn(event)
		}
	}
}

// AddNodes adds one or more nodes to storage.
func (r *NodeRepository) AddNodes(ctx context.Context, nodes ...*core.Node) ([]*core.Node, error) {
	for _, node := range nodes {
		if err := core.ValidateNode(node); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, node := range nodes {
			// Always generate new ID from sequence
			nextID, err := r.idSeq.Next()
			if err != nil {
				return err
			}
			// BadgerDB sequences can return 0 on first call, so we skip it
			if nextID == 0 {
				nextID, err = r.idSeq.Next()
				if err != nil {
					return err
				}
			}
			node.Id = core.ID(nextID)

			node.CreatedAt = time.Now().UTC()
			node.UpdatedAt = node.CreatedAt

			if err := tx.Set(makeNodeKey(node.Id), storage.MarshalNode(node)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	r.emit(core.NodeCreated, nodes)
	return nodes, nil
}

// UpdateNodes updates existing nodes.
func (r *NodeRepository) UpdateNodes(ctx context.Context, nodes ...*core.Node) ([]*core.Node, error) {
	for _, node := range nodes {
		if err := core.ValidateNode(node); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, node := range nodes {
			key := makeNodeKey(node.Id)

			old, err := readNode(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}

			node.CreatedAt = old.CreatedAt
			node.UpdatedAt = time.Now().UTC()

			if err := tx.Set(key, storage.MarshalNode(node)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	r.emit(core.NodeUpdated, nodes)
	return nodes, nil
}

// GetNode retrieves a single node by ID.
func (r *NodeRepository) GetNode(ctx context.Context, id core.ID) (*core.Node, error) {
	var result *core.Node
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readNode(tx, makeNodeKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetNodes retrieves multiple nodes by their IDs.
func (r *NodeRepository) GetNodes(ctx context.Context, ids ...core.ID) ([]*core.Node, error) {
	var result []*core.Node
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			node, err := readNode(tx, makeNodeKey(id))
			if err != nil {
				return err
			}
			if node != nil {
				result = append(result, node)
			}
		}
		return nil
	}, false)
	return result, err
}

// Nodes returns a lazy sequence over all nodes in ID order.
// Nodes are read in pages so no transaction stays open while the caller
// processes a node.
func (r *NodeRepository) Nodes(ctx context.Context) iter.Seq2[*core.Node, error] {
	return func(yield func(*core.Node, error) bool) {
		var after []byte
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			var page []*core.Node
			err := r.backend.WithTx(func(tx *badger.Txn) error {
				var err error
				after, err = scanPrefix(tx, []byte(nodePrefix), after, nodePageSize, false, func(item *badger.Item) error {
					return item.Value(func(val []byte) error {
						node, err := storage.UnmarshalNode(val)
						if err != nil {
							return err
						}
						page = append(page, node)
						return nil
					})
				})
				return err
			}, false)
			if err != nil {
				yield(nil, err)
				return
			}

			for _, node := range page {
				if !yield(node, nil) {
					return
				}
			}
			if len(page) < nodePageSize {
				return
			}
		}
	}
}

// GetAllNodeIDs returns the IDs of all stored nodes in ascending order.
func (r *NodeRepository) GetAllNodeIDs(ctx context.Context) ([]core.ID, error) {
	var ids []core.ID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		_, err := scanPrefix(tx, []byte(nodePrefix), nil, 0, true, func(item *badger.Item) error {
			if id, ok := idFromKey(nodePrefix, item.Key()); ok {
				ids = append(ids, id)
			}
			return nil
		})
		return err
	}, false)
	return ids, err
}

// GetSimilarityInfo returns the embedding record of a node, or nil if absent.
func (r *NodeRepository) GetSimilarityInfo(ctx context.Context, id core.ID) (*core.SimilarityInfo, error) {
	var info *core.SimilarityInfo
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeSimilarityKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			info, unmarshalErr = storage.UnmarshalSimilarityInfo(val)
			return unmarshalErr
		})
	}, false)
	return info, err
}

// SetSimilarityInfo replaces the embedding record of an existing node.
func (r *NodeRepository) SetSimilarityInfo(ctx context.Context, id core.ID, info *core.SimilarityInfo) error {
	if err := core.ValidateSimilarityInfo(info); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if _, err := tx.Get(makeNodeKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		if err := tx.Set(makeSimilarityKey(id), storage.MarshalSimilarityInfo(info)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// readNode reads a node from the transaction. Returns nil, nil if absent.
func readNode(tx *badger.Txn, key []byte) (*core.Node, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var node *core.Node
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		node, unmarshalErr = storage.UnmarshalNode(val)
		return unmarshalErr
	})
	return node, err
}
