package core

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored nodes.
// It is generated from a database sequence and is never 0 for a persisted node.
type ID uint64

// Digest returns a hex encoded BLAKE2b-256 digest of the given parts.
// Parts are separated by a zero byte so ("ab", "c") and ("a", "bc") differ.
func Digest(parts ...string) string {
	h, _ := blake2b.New(32, nil) // 32 bytes = 256 bits
	for i, part := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Bookmark holds the web page attributes of a node created from a browser capture.
type Bookmark struct {
	URL         string
	Title       string
	Description string
	WebText     string // Text extracted from the page (populated by the capture collaborator)
}

// Node is a saved item: a note, a bookmark, or both.
type Node struct {
	Id        ID
	Text      string    // Plain text of the note body
	Bookmark  *Bookmark // Nil for plain notes
	CreatedAt time.Time // When the node was inserted into the database
	UpdatedAt time.Time // When the node was last updated
}

// HasWebText reports whether the node carries bookmark page text that can be quoted.
func (n *Node) HasWebText() bool {
	return n.Bookmark != nil && n.Bookmark.WebText != ""
}

// Tensor is a flat numeric array with shape metadata.
// A single embedding has shape [dim]; a set of n examples has shape [n, dim].
type Tensor struct {
	Data  []float32
	Shape []int
}

// NewVector wraps a single vector as a rank one tensor.
func NewVector(v []float32) Tensor {
	return Tensor{Data: v, Shape: []int{len(v)}}
}

// Rows returns the number of rows of a rank two tensor, 1 for a vector and 0 when empty.
func (t Tensor) Rows() int {
	switch len(t.Shape) {
	case 0:
		return 0
	case 1:
		if t.Shape[0] == 0 {
			return 0
		}
		return 1
	default:
		return t.Shape[0]
	}
}

// Cols returns the size of the innermost dimension.
func (t Tensor) Cols() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[len(t.Shape)-1]
}

// Row returns row i of the tensor without copying.
func (t Tensor) Row(i int) []float32 {
	cols := t.Cols()
	return t.Data[i*cols : (i+1)*cols]
}

// SimilarityInfo is the embedding record attached to a node.
// The record is only trusted when Algorithm and Version match what the
// similarity index currently produces.
type SimilarityInfo struct {
	Algorithm string
	Version   int
	Embedding Tensor
}

// IsCurrent reports whether the record was produced by the given algorithm and version.
func (s *SimilarityInfo) IsCurrent(algorithm string, version int) bool {
	return s != nil && s.Algorithm == algorithm && s.Version == version
}

// NodeEventKind identifies a change applied to a node in storage.
type NodeEventKind int

const (
	// NodeCreated is emitted after a node was added.
	NodeCreated NodeEventKind = iota + 1
	// NodeUpdated is emitted after an existing node was modified.
	NodeUpdated
)

// NodeEvent describes a committed node change.
type NodeEvent struct {
	Kind NodeEventKind
	Id   ID
}
