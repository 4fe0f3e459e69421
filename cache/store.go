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

package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/recall/metrics"
	"github.com/poiesic/recall/storage"
)

// CurrentInternalVersion is the encoding version of cached values.
// Changing it invalidates every existing store.
const CurrentInternalVersion = 1

// Store is a typed cache under a key prefix.
// It adds no locking; callers serialise writers.
type Store struct {
	area    storage.KVArea
	prefix  string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
	}
}

// WithMetrics counts invalidations in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New creates a store whose keys all start with prefix + "/".
func New(area storage.KVArea, prefix string, opts ...Option) *Store {
	s := &Store{
		area:   area,
		prefix: prefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "cache", "prefix", prefix)
	return s
}

// Prefix returns the store's key prefix.
func (s *Store) Prefix() string {
	return s.prefix
}

func (s *Store) storageKey(k Key) string {
	return s.prefix + "/" + k.name()
}

// Set writes all entries. Nothing is written when any entry pairs a key with
// a value of another kind or when a key repeats.
func (s *Store) Set(ctx context.Context, entries ...Entry) error {
	if s.area == nil {
		return ErrAreaRequired
	}

	out := make(map[string][]byte, len(entries))
	for _, e := range entries {
		if e.Key == nil || e.Value == nil {
			return fmt.Errorf("%w: incomplete entry", ErrKindMismatch)
		}
		if e.Key.Kind() != e.Value.Kind() {
			return fmt.Errorf("%w: key %v, value %v", ErrKindMismatch, e.Key.Kind(), e.Value.Kind())
		}
		k := s.storageKey(e.Key)
		if _, dup := out[k]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, k)
		}
		out[k] = e.Value.marshal()
	}
	if len(out) == 0 {
		return nil
	}
	return s.area.Set(ctx, out)
}

// Get reads one entry. The boolean is false when the key is absent.
func (s *Store) Get(ctx context.Context, key Key) (Value, bool, error) {
	values, err := s.GetMany(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return values[0], values[0] != nil, nil
}

// GetMany reads several entries. The result is aligned with keys and holds
// nil for absent keys.
func (s *Store) GetMany(ctx context.Context, keys ...Key) ([]Value, error) {
	if s.area == nil {
		return nil, ErrAreaRequired
	}

	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = s.storageKey(k)
	}
	raw, err := s.area.Get(ctx, names...)
	if err != nil {
		return nil, err
	}

	values := make([]Value, len(keys))
	for i, k := range keys {
		data, ok := raw[names[i]]
		if !ok {
			continue
		}
		v, err := unmarshalValue(k.Kind(), data)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", names[i], err)
		}
		values[i] = v
	}
	return values, nil
}

// Remove deletes entries. Absent keys are ignored.
func (s *Store) Remove(ctx context.Context, keys ...Key) error {
	if s.area == nil {
		return ErrAreaRequired
	}
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = s.storageKey(k)
	}
	return s.area.Delete(ctx, names...)
}

// EnsureValid checks the stored signature against expected and the current
// internal version. On mismatch, or when no signature is stored, it deletes
// every label class entry and the label list, then writes the new signature.
// It reports whether the store was invalidated.
func (s *Store) EnsureValid(ctx context.Context, expected string) (bool, error) {
	if s.area == nil {
		return false, ErrAreaRequired
	}
	want := SignatureValue{Signature: expected, InternalVersion: CurrentInternalVersion}

	v, ok, err := s.Get(ctx, SignatureKey{})
	if err != nil {
		// An undecodable signature is as good as a wrong one.
		s.logger.Warn("unreadable cache signature, invalidating", "err", err)
		ok = false
	}
	if ok {
		if got, _ := v.(SignatureValue); got == want {
			return false, nil
		}
		s.logger.Info("cache signature changed, invalidating", "stored", v, "expected", want)
	} else {
		s.logger.Debug("no cache signature, initialising")
	}

	classKeys, err := s.area.Keys(ctx, s.storageKey(LabelClassKey{}))
	if err != nil {
		return false, fmt.Errorf("listing label classes: %w", err)
	}
	if len(classKeys) > 0 {
		if err := s.area.Delete(ctx, classKeys...); err != nil {
			return false, fmt.Errorf("deleting label classes: %w", err)
		}
	}
	if err := s.Remove(ctx, AllLabelsKey{}); err != nil {
		return false, fmt.Errorf("deleting label list: %w", err)
	}
	if err := s.Set(ctx, Entry{Key: SignatureKey{}, Value: want}); err != nil {
		return false, fmt.Errorf("writing signature: %w", err)
	}

	s.metrics.CacheInvalidated()
	return true, nil
}
