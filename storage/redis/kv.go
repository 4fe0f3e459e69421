// Package redis provides a storage.KVArea backed by Redis through go-redis/v9.
// It lets the typed cache store live outside the node database, shared by
// several processes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/recall/storage"
	"github.com/redis/go-redis/v9"
)

const scanBatchSize = 100

// Options configures the Redis connection.
type Options struct {
	Addr      string
	Password  string
	DB        int
	PoolSize  int
	Namespace string // Prepended to every key, e.g. "recall:"
}

// KVArea implements storage.KVArea over a Redis keyspace.
type KVArea struct {
	rdb       redis.UniversalClient
	namespace string
}

var _ storage.KVArea = (*KVArea)(nil)

// NewKVArea connects to Redis and verifies the connection with a PING.
func NewKVArea(ctx context.Context, opts Options) (*KVArea, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewKVAreaFromClient(rdb, opts.Namespace), nil
}

// NewKVAreaFromClient wraps an existing client.
func NewKVAreaFromClient(rdb redis.UniversalClient, namespace string) *KVArea {
	return &KVArea{rdb: rdb, namespace: namespace}
}

// Close closes the underlying Redis connection.
func (a *KVArea) Close() error {
	return a.rdb.Close()
}

// Get returns the values of the keys that exist.
func (a *KVArea) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	if len(keys) == 1 {
		value, err := a.rdb.Get(ctx, a.namespace+keys[0]).Bytes()
		if isNilError(err) {
			return result, nil
		}
		if err != nil {
			return nil, fmt.Errorf("redis get: %w", err)
		}
		result[keys[0]] = value
		return result, nil
	}
	values, err := a.rdb.MGet(ctx, a.namespaced(keys)...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	for i, v := range values {
		if s, ok := v.(string); ok {
			result[keys[i]] = []byte(s)
		}
	}
	return result, nil
}

// Set writes all entries in one MSET, which Redis applies atomically.
func (a *KVArea) Set(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	values := make(map[string]any, len(entries))
	for key, value := range entries {
		values[a.namespace+key] = value
	}
	if err := a.rdb.MSet(ctx, values).Err(); err != nil {
		return fmt.Errorf("redis mset: %w", err)
	}
	return nil
}

// Delete removes the keys. Missing keys are ignored.
func (a *KVArea) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := a.rdb.Del(ctx, a.namespaced(keys)...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Keys lists the keys starting with prefix in lexicographic order.
func (a *KVArea) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := a.rdb.Scan(ctx, 0, escapeGlob(a.namespace+prefix)+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), a.namespace))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning prefix %s: %w", prefix, err)
	}
	// SCAN may return a key more than once.
	slices.Sort(keys)
	return slices.Compact(keys), nil
}

func (a *KVArea) namespaced(keys []string) []string {
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = a.namespace + key
	}
	return out
}

// escapeGlob quotes the characters SCAN MATCH treats as pattern syntax.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isNilError reports whether err is a Redis nil (key-not-found) error.
func isNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}
