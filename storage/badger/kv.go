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
	"context"
	"errors"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/recall/storage"
)

// KVArea implements storage.KVArea for BadgerDB.
// Keys are stored under the "kv:" namespace next to node records.
type KVArea struct {
	backend *Backend
}

var _ storage.KVArea = (*KVArea)(nil)

// NewKVArea creates a new KVArea.
func NewKVArea(backend *Backend) *KVArea {
	return &KVArea{
		backend: backend,
	}
}

// Get returns the values of the keys that exist.
func (a *KVArea) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	err := a.backend.WithTx(func(tx *badger.Txn) error {
		for _, key := range keys {
			item, err := tx.Get(makeKVKey(key))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			result[key] = value
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Set writes all entries in one transaction.
func (a *KVArea) Set(ctx context.Context, entries map[string][]byte) error {
	return a.backend.WithTx(func(tx *badger.Txn) error {
		for key, value := range entries {
			if err := tx.Set(makeKVKey(key), value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Delete removes the keys. Missing keys are ignored.
func (a *KVArea) Delete(ctx context.Context, keys ...string) error {
	return a.backend.WithTx(func(tx *badger.Txn) error {
		for _, key := range keys {
			if err := tx.Delete(makeKVKey(key)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Keys lists the keys starting with prefix in lexicographic order.
func (a *KVArea) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := a.backend.WithTx(func(tx *badger.Txn) error {
		_, err := scanPrefix(tx, makeKVKey(prefix), nil, 0, true, func(item *badger.Item) error {
			keys = append(keys, strings.TrimPrefix(string(item.Key()), kvPrefix))
			return nil
		})
		return err
	}, false)
	return keys, err
}
