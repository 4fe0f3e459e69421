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

import "errors"

// Domain validation errors
var (
	// ErrInvalidNode indicates a Node failed validation.
	ErrInvalidNode = errors.New("invalid node")

	// ErrEmptyContent indicates a node has neither text nor a bookmark URL.
	ErrEmptyContent = errors.New("node has no text and no bookmark url")

	// ErrInvalidSimilarityInfo indicates an embedding record failed validation.
	ErrInvalidSimilarityInfo = errors.New("invalid similarity info")

	// ErrEmptyAlgorithm indicates the embedding algorithm tag is empty.
	ErrEmptyAlgorithm = errors.New("algorithm cannot be empty")

	// ErrShapeMismatch indicates a tensor's shape does not describe its data.
	ErrShapeMismatch = errors.New("tensor shape does not match data length")
)
