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

package badger

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/storage"
)

// NewMemoryRepositories creates an in-memory node repository and KV area for testing.
// Returns nodeRepo, kvArea, backend, and error.
// Caller must close the repo and backend when done.
func NewMemoryRepositories() (storage.NodeRepository, storage.KVArea, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}

	nodeRepo, err := NewNodeRepository(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	return nodeRepo, NewKVArea(backend), backend, nil
}

// WriteRawSimilarityInfo stores data as the embedding record of id without
// encoding or validation. Tests use it to plant damaged records.
func WriteRawSimilarityInfo(backend *Backend, id core.ID, data []byte) error {
	return backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeSimilarityKey(id), data); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
