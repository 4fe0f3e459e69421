package similarity

import "errors"

var (
	// ErrNodeRepositoryRequired is returned when New receives a nil repository.
	ErrNodeRepositoryRequired = errors.New("node repository is required")

	// ErrAIProviderRequired is returned when New receives a nil provider.
	ErrAIProviderRequired = errors.New("AI provider is required")

	// ErrCancelled is returned (joined with the context error) when a search is cancelled.
	ErrCancelled = errors.New("similarity search cancelled")

	// ErrInvalidMaxAttempts indicates a retry configuration with no attempts.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrInvalidOption indicates an option value outside its valid range.
	ErrInvalidOption = errors.New("invalid option value")

	// ErrAlreadyStarted is returned by Start when the updater is already running.
	ErrAlreadyStarted = errors.New("similarity index already started")

	// ErrIndexClosed is returned by Start after Close.
	ErrIndexClosed = errors.New("similarity index closed")

	// ErrEmptyEmbedding is returned when the embedder produces a zero length vector.
	ErrEmptyEmbedding = errors.New("embedder returned an empty vector")
)
