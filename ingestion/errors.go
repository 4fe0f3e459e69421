package ingestion

import "errors"

var (
	// ErrNodeRepositoryRequired is returned when a node repository is not provided.
	ErrNodeRepositoryRequired = errors.New("node repository required")

	// ErrIndexRequired is returned when a similarity index is not provided.
	ErrIndexRequired = errors.New("similarity index required")

	// ErrInvalidRecord is returned for an import record without text or url.
	ErrInvalidRecord = errors.New("invalid import record")
)
