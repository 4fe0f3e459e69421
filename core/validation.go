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

package core

import (
	"fmt"
)

// ValidateNode validates a Node according to domain rules.
//
// Validation rules:
//   - Text must not be empty unless the node carries a bookmark URL
//
// NOT validated:
//   - ID (0 is valid before the storage sequence assigns one)
//   - Bookmark.WebText (populated by the capture collaborator)
func ValidateNode(node *Node) error {
	if node == nil {
		return fmt.Errorf("%w: node is nil", ErrInvalidNode)
	}

	if node.Text == "" && (node.Bookmark == nil || node.Bookmark.URL == "") {
		return fmt.Errorf("%w: %w", ErrInvalidNode, ErrEmptyContent)
	}

	return nil
}

// ValidateTensor checks that the product of the shape equals the data length.
func ValidateTensor(t Tensor) error {
	size := 1
	for _, dim := range t.Shape {
		if dim < 0 {
			return fmt.Errorf("%w: negative dimension %d", ErrShapeMismatch, dim)
		}
		size *= dim
	}
	if len(t.Shape) == 0 {
		size = 0
	}
	if size != len(t.Data) {
		return fmt.Errorf("%w: shape %v describes %d values, have %d", ErrShapeMismatch, t.Shape, size, len(t.Data))
	}
	return nil
}

// ValidateSimilarityInfo validates an embedding record before it is persisted.
func ValidateSimilarityInfo(info *SimilarityInfo) error {
	if info == nil {
		return fmt.Errorf("%w: info is nil", ErrInvalidSimilarityInfo)
	}

	if info.Algorithm == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSimilarityInfo, ErrEmptyAlgorithm)
	}

	if err := ValidateTensor(info.Embedding); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSimilarityInfo, err)
	}

	return nil
}
