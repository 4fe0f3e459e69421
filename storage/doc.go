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

// Package storage provides the storage abstraction layer for recall.
//
// This package defines the contracts the retrieval components depend on, so
// the storage backend can be swapped without touching search code:
//
//   - NodeRepository: saved nodes, their embedding records and change listeners
//   - KVArea: a flat key/value area backing the typed cache store
//
// Backends live in sub-packages (storage/badger, storage/redis). Records are
// encoded with hand-written MUS serializers (serialization.go); embedding
// records lead with their algorithm tag and version so staleness can be
// checked with PeekSimilarityHeader before decoding the vector.
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines. Node listeners are invoked after the write
// transaction commits.
package storage
