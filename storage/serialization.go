// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/recall/core"
)

// Record layouts are hand-written MUS encodings. Field order is part of the
// on-disk format: append new fields at the end, never reorder.

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: id: %v", ErrSerializationFailed, err)
	}
	return core.ID(v), nil
}

// MarshalNode serializes a Node to bytes.
func MarshalNode(node *core.Node) []byte {
	buf := make([]byte, sizeNode(node))
	marshalNode(node, buf)
	return buf
}

// UnmarshalNode deserializes a Node from bytes.
func UnmarshalNode(data []byte) (*core.Node, error) {
	node, _, err := unmarshalNode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: node: %v", ErrSerializationFailed, err)
	}
	return node, nil
}

// MarshalSimilarityInfo serializes an embedding record to bytes.
// Algorithm and version lead the encoding so PeekSimilarityHeader can read
// them without decoding the embedding.
func MarshalSimilarityInfo(info *core.SimilarityInfo) []byte {
	size := ord.String.Size(info.Algorithm) + varint.Int.Size(info.Version) + SizeTensor(info.Embedding)
	buf := make([]byte, size)
	n := ord.String.Marshal(info.Algorithm, buf)
	n += varint.Int.Marshal(info.Version, buf[n:])
	MarshalTensor(info.Embedding, buf[n:])
	return buf
}

// UnmarshalSimilarityInfo deserializes an embedding record from bytes.
func UnmarshalSimilarityInfo(data []byte) (*core.SimilarityInfo, error) {
	algorithm, version, n, err := peekHeader(data)
	if err != nil {
		return nil, err
	}
	embedding, _, err := UnmarshalTensor(data[n:])
	if err != nil {
		return nil, err
	}
	return &core.SimilarityInfo{Algorithm: algorithm, Version: version, Embedding: embedding}, nil
}

// PeekSimilarityHeader reads only the algorithm and version of an encoded
// embedding record.
func PeekSimilarityHeader(data []byte) (algorithm string, version int, err error) {
	algorithm, version, _, err = peekHeader(data)
	return
}

func peekHeader(data []byte) (string, int, int, error) {
	algorithm, n, err := ord.String.Unmarshal(data)
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: algorithm: %v", ErrSerializationFailed, err)
	}
	version, n1, err := varint.Int.Unmarshal(data[n:])
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: version: %v", ErrSerializationFailed, err)
	}
	return algorithm, version, n + n1, nil
}

// SizeTensor returns the encoded size of a tensor.
func SizeTensor(t core.Tensor) int {
	size := varint.PositiveInt.Size(len(t.Shape))
	for _, d := range t.Shape {
		size += varint.PositiveInt.Size(d)
	}
	size += varint.PositiveInt.Size(len(t.Data))
	for _, f := range t.Data {
		size += raw.Float32.Size(f)
	}
	return size
}

// MarshalTensor writes a tensor into bs, which must hold SizeTensor(t) bytes,
// and returns the number of bytes written.
func MarshalTensor(t core.Tensor, bs []byte) int {
	n := varint.PositiveInt.Marshal(len(t.Shape), bs)
	for _, d := range t.Shape {
		n += varint.PositiveInt.Marshal(d, bs[n:])
	}
	n += varint.PositiveInt.Marshal(len(t.Data), bs[n:])
	for _, f := range t.Data {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

// UnmarshalTensor reads a tensor from bs and returns the number of bytes consumed.
func UnmarshalTensor(bs []byte) (core.Tensor, int, error) {
	var t core.Tensor
	rank, n, err := unmarshalLen(bs)
	if err != nil {
		return t, n, fmt.Errorf("%w: tensor rank: %v", ErrSerializationFailed, err)
	}
	if rank > 0 {
		t.Shape = make([]int, rank)
	}
	for i := range t.Shape {
		d, n1, err := varint.PositiveInt.Unmarshal(bs[n:])
		if err != nil {
			return t, n, fmt.Errorf("%w: tensor shape: %v", ErrSerializationFailed, err)
		}
		t.Shape[i] = d
		n += n1
	}
	length, n1, err := unmarshalLen(bs[n:])
	n += n1
	if err != nil {
		return t, n, fmt.Errorf("%w: tensor length: %v", ErrSerializationFailed, err)
	}
	if length > 0 {
		t.Data = make([]float32, length)
	}
	for i := range t.Data {
		f, n1, err := raw.Float32.Unmarshal(bs[n:])
		if err != nil {
			return t, n, fmt.Errorf("%w: tensor data: %v", ErrSerializationFailed, err)
		}
		t.Data[i] = f
		n += n1
	}
	return t, n, nil
}

// MarshalStrings serializes a list of strings to bytes.
func MarshalStrings(values []string) []byte {
	size := varint.PositiveInt.Size(len(values))
	for _, v := range values {
		size += ord.String.Size(v)
	}
	buf := make([]byte, size)
	n := varint.PositiveInt.Marshal(len(values), buf)
	for _, v := range values {
		n += ord.String.Marshal(v, buf[n:])
	}
	return buf
}

// UnmarshalStrings deserializes a list of strings from bytes.
func UnmarshalStrings(data []byte) ([]string, error) {
	count, n, err := unmarshalLen(data)
	if err != nil {
		return nil, fmt.Errorf("%w: strings length: %v", ErrSerializationFailed, err)
	}
	values := make([]string, 0, count)
	for range count {
		v, n1, err := ord.String.Unmarshal(data[n:])
		if err != nil {
			return nil, fmt.Errorf("%w: strings: %v", ErrSerializationFailed, err)
		}
		values = append(values, v)
		n += n1
	}
	return values, nil
}

// unmarshalLen reads a collection length. Every element takes at least one
// byte, so a length beyond the remaining input means the data was cut short.
func unmarshalLen(bs []byte) (int, int, error) {
	l, n, err := varint.PositiveInt.Unmarshal(bs)
	if err != nil {
		return 0, n, err
	}
	if l < 0 || l > len(bs)-n {
		return 0, n, ErrTruncatedData
	}
	return l, n, nil
}

func sizeNode(node *core.Node) int {
	size := varint.Uint64.Size(uint64(node.Id)) + ord.String.Size(node.Text)
	size += ord.Bool.Size(node.Bookmark != nil)
	if b := node.Bookmark; b != nil {
		size += ord.String.Size(b.URL) + ord.String.Size(b.Title) +
			ord.String.Size(b.Description) + ord.String.Size(b.WebText)
	}
	size += varint.Int64.Size(node.CreatedAt.UnixMicro())
	size += varint.Int64.Size(node.UpdatedAt.UnixMicro())
	return size
}

func marshalNode(node *core.Node, bs []byte) int {
	n := varint.Uint64.Marshal(uint64(node.Id), bs)
	n += ord.String.Marshal(node.Text, bs[n:])
	n += ord.Bool.Marshal(node.Bookmark != nil, bs[n:])
	if b := node.Bookmark; b != nil {
		n += ord.String.Marshal(b.URL, bs[n:])
		n += ord.String.Marshal(b.Title, bs[n:])
		n += ord.String.Marshal(b.Description, bs[n:])
		n += ord.String.Marshal(b.WebText, bs[n:])
	}
	n += varint.Int64.Marshal(node.CreatedAt.UnixMicro(), bs[n:])
	n += varint.Int64.Marshal(node.UpdatedAt.UnixMicro(), bs[n:])
	return n
}

func unmarshalNode(bs []byte) (*core.Node, int, error) {
	var (
		node core.Node
		n    int
	)
	id, n1, err := varint.Uint64.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	node.Id = core.ID(id)
	n += n1
	if node.Text, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	hasBookmark, n1, err := ord.Bool.Unmarshal(bs[n:])
	if err != nil {
		return nil, n, err
	}
	n += n1
	if hasBookmark {
		b := &core.Bookmark{}
		for _, field := range []*string{&b.URL, &b.Title, &b.Description, &b.WebText} {
			if *field, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
				return nil, n, err
			}
			n += n1
		}
		node.Bookmark = b
	}
	created, n1, err := varint.Int64.Unmarshal(bs[n:])
	if err != nil {
		return nil, n, err
	}
	n += n1
	updated, n1, err := varint.Int64.Unmarshal(bs[n:])
	if err != nil {
		return nil, n, err
	}
	n += n1
	node.CreatedAt = time.UnixMicro(created).UTC()
	node.UpdatedAt = time.UnixMicro(updated).UTC()
	return &node, n, nil
}
