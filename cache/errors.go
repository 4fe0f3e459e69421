package cache

import "errors"

var (
	// ErrKindMismatch is returned by Set when an entry pairs a key with a value of another kind.
	ErrKindMismatch = errors.New("cache key and value kinds differ")

	// ErrDuplicateKey is returned by Set when the same key appears twice.
	ErrDuplicateKey = errors.New("duplicate cache key")

	// ErrAreaRequired is returned when the store was created without a key/value area.
	ErrAreaRequired = errors.New("key/value area is required")
)
