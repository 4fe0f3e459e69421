package classifier

import "errors"

var (
	// ErrStoreRequired is returned by Create when no cache store is supplied.
	ErrStoreRequired = errors.New("cache store is required")

	// ErrEmptySignature is returned by Create when the expected signature is empty.
	ErrEmptySignature = errors.New("signature cannot be empty")
)
