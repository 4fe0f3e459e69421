// Package mock provides test double implementations of AI service interfaces.
//
// # Usage in Tests
//
//	// Unrelated deterministic vectors per distinct text
//	embedder := mock.NewMockEmbedder()
//
//	// Vectors that overlap when texts share words
//	embedder := mock.NewWordEmbedder()
//
//	// Custom behavior injection
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return nil, errors.New("service down")
//	}
//
//	count := embedder.CallCount()
package mock
