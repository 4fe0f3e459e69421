// Package lexical implements Okapi BM25+ relevance scoring over a corpus of
// bag-of-terms document statistics.
//
// The corpus only grows: AddDocument updates the counts and returns the
// per-document statistics, which the caller keeps and passes back to Search.
// Index bundles both behind a mutex for callers that do not want to manage
// them.
package lexical
