package badger

import (
	"encoding/binary"

	"github.com/poiesic/recall/core"
)

// Key prefixes for different data types
const (
	nodePrefix           = "node:"
	nodeSimilarityPrefix = "nodesim:"
	nodeIDSeq            = "nodeseq"
	kvPrefix             = "kv:"
)

// makeIDKey generates prefix + big endian id so keys sort in ID order.
func makeIDKey(prefix string, id core.ID) []byte {
	prefixBytes := []byte(prefix)
	buf := make([]byte, len(prefixBytes)+8)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeNodeKey generates a key for a node by ID.
func makeNodeKey(id core.ID) []byte {
	return makeIDKey(nodePrefix, id)
}

// makeSimilarityKey generates a key for the embedding record of a node.
func makeSimilarityKey(id core.ID) []byte {
	return makeIDKey(nodeSimilarityPrefix, id)
}

// idFromKey extracts the ID from a key built by makeIDKey.
func idFromKey(prefix string, key []byte) (core.ID, bool) {
	if len(key) != len(prefix)+8 {
		return 0, false
	}
	return core.ID(binary.BigEndian.Uint64(key[len(prefix):])), true
}

// makeKVKey namespaces a flat key/value area key.
func makeKVKey(key string) []byte {
	return []byte(kvPrefix + key)
}
