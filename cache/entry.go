package cache

import (
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/storage"
)

// Kind discriminates the key and value variants.
type Kind int

const (
	KindAllLabels Kind = iota + 1
	KindLabelClass
	KindSignature
)

func (k Kind) String() string {
	switch k {
	case KindAllLabels:
		return "all-labels"
	case KindLabelClass:
		return "label->class"
	case KindSignature:
		return "cache-signature"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Key identifies a cache entry.
type Key interface {
	Kind() Kind
	name() string
}

// Value is the payload of a cache entry.
type Value interface {
	Kind() Kind
	marshal() []byte
}

// Entry pairs a key with its value.
type Entry struct {
	Key   Key
	Value Value
}

// AllLabelsKey addresses the list of labels with stored examples.
type AllLabelsKey struct{}

func (AllLabelsKey) Kind() Kind   { return KindAllLabels }
func (AllLabelsKey) name() string { return "all-labels" }

// LabelClassKey addresses the example tensor of one label.
type LabelClassKey struct {
	Label string
}

func (LabelClassKey) Kind() Kind     { return KindLabelClass }
func (k LabelClassKey) name() string { return "label->class:" + k.Label }

// SignatureKey addresses the signature record of the store.
type SignatureKey struct{}

func (SignatureKey) Kind() Kind   { return KindSignature }
func (SignatureKey) name() string { return "cache-signature" }

// AllLabelsValue lists labels in insertion order.
type AllLabelsValue struct {
	Labels []string
}

func (AllLabelsValue) Kind() Kind { return KindAllLabels }

func (v AllLabelsValue) marshal() []byte {
	return storage.MarshalStrings(v.Labels)
}

// LabelClassValue holds the example tensor of a label.
type LabelClassValue struct {
	Class core.Tensor
}

func (LabelClassValue) Kind() Kind { return KindLabelClass }

func (v LabelClassValue) marshal() []byte {
	buf := make([]byte, storage.SizeTensor(v.Class))
	storage.MarshalTensor(v.Class, buf)
	return buf
}

// SignatureValue records what the cached data was derived from.
// Signature is chosen by the caller; InternalVersion is the encoding
// version of this package.
type SignatureValue struct {
	Signature       string
	InternalVersion int
}

func (SignatureValue) Kind() Kind { return KindSignature }

func (v SignatureValue) marshal() []byte {
	buf := make([]byte, ord.String.Size(v.Signature)+varint.Int.Size(v.InternalVersion))
	n := ord.String.Marshal(v.Signature, buf)
	varint.Int.Marshal(v.InternalVersion, buf[n:])
	return buf
}

func unmarshalValue(kind Kind, data []byte) (Value, error) {
	switch kind {
	case KindAllLabels:
		labels, err := storage.UnmarshalStrings(data)
		if err != nil {
			return nil, err
		}
		return AllLabelsValue{Labels: labels}, nil
	case KindLabelClass:
		t, _, err := storage.UnmarshalTensor(data)
		if err != nil {
			return nil, err
		}
		return LabelClassValue{Class: t}, nil
	case KindSignature:
		sig, n, err := ord.String.Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("%w: signature: %v", storage.ErrSerializationFailed, err)
		}
		version, _, err := varint.Int.Unmarshal(data[n:])
		if err != nil {
			return nil, fmt.Errorf("%w: signature version: %v", storage.ErrSerializationFailed, err)
		}
		return SignatureValue{Signature: sig, InternalVersion: version}, nil
	default:
		return nil, fmt.Errorf("unknown cache kind %v", kind)
	}
}
