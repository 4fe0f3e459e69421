// Package ingestion provides bulk import of saved nodes.
//
// The Pipeline type stores a batch of nodes and then computes their
// embeddings asynchronously, one batched embedder call per chunk, on a
// worker pool. Embedding failures are logged and reported by Wait but never
// undo the stored nodes; the similarity sweep picks them up later.
//
// ReadRecords decodes the YAML import format:
//
//	- text: remember the milk
//	- url: https://example.com/cats
//	  title: Why cats purr
//	  webText: Cats purr when they are content.
package ingestion
