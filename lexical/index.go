package lexical

import "sync"

// Index couples a Corpus with the documents added to it.
// It is safe for concurrent use.
type Index struct {
	mu        sync.RWMutex
	corpus    *Corpus
	documents []*DocumentIndex
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{corpus: NewCorpus()}
}

// Add indexes text under id.
func (x *Index) Add(id, text string) *DocumentIndex {
	x.mu.Lock()
	defer x.mu.Unlock()
	doc := x.corpus.AddDocument(text, id)
	x.documents = append(x.documents, doc)
	return doc
}

// Search runs a BM25+ query over the indexed documents.
func (x *Index) Search(query string, limit int) []Match {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return Search(query, limit, x.corpus, x.documents)
}

// Len returns the number of indexed documents.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.documents)
}
