package lexical

import (
	"math"

	"github.com/poiesic/recall/nlp"
)

// BM25+ parameters.
const (
	B     = 0.75 // Length normalisation
	K1    = 2.0  // Term frequency saturation
	Delta = 1.0  // Lower bound contributed by any matching term
)

// Corpus holds collection-wide statistics.
// Invariant: DocumentFrequency[t] <= DocumentCount for every term.
type Corpus struct {
	DocumentCount     int
	TermCount         int            // Sum of all document lengths
	DocumentFrequency map[string]int // Number of documents containing each term
}

// NewCorpus returns an empty corpus.
func NewCorpus() *Corpus {
	return &Corpus{DocumentFrequency: make(map[string]int)}
}

// DocumentIndex holds the statistics of one document. It is not modified
// after creation; re-indexing a text produces a replacement.
type DocumentIndex struct {
	ID            string
	TermCount     int
	TermFrequency map[string]int
}

// Terms returns the index terms of text: stems of every token except
// punctuation and symbols.
func Terms(text string) []string {
	doc := nlp.Analyze(text)
	terms := make([]string, 0, len(doc.Tokens))
	for _, t := range doc.Tokens {
		if t.Kind == nlp.Punctuation || t.Kind == nlp.Symbol {
			continue
		}
		terms = append(terms, t.Stem)
	}
	return terms
}

// AddDocument indexes text under id and folds its statistics into the corpus.
func (c *Corpus) AddDocument(text, id string) *DocumentIndex {
	if c.DocumentFrequency == nil {
		c.DocumentFrequency = make(map[string]int)
	}

	terms := Terms(text)
	doc := &DocumentIndex{
		ID:            id,
		TermCount:     len(terms),
		TermFrequency: make(map[string]int),
	}
	for _, term := range terms {
		doc.TermFrequency[term]++
	}

	c.DocumentCount++
	c.TermCount += doc.TermCount
	for term := range doc.TermFrequency {
		c.DocumentFrequency[term]++
	}
	return doc
}

// AverageLength returns the mean document length, or 0 for an empty corpus.
func (c *Corpus) AverageLength() float64 {
	if c.DocumentCount == 0 {
		return 0
	}
	return float64(c.TermCount) / float64(c.DocumentCount)
}

// IDF returns the inverse document frequency of term:
// ln(1 + (N - df + 0.5) / (df + 0.5)). It never increases with df and is
// never negative while df <= N.
func (c *Corpus) IDF(term string) float64 {
	n := float64(c.DocumentCount)
	df := float64(c.DocumentFrequency[term])
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// Saturation returns the BM25+ term frequency component of term in doc:
// delta + f(k1+1) / (f + k1(1 - b + b|d|/avgdl)).
func (c *Corpus) Saturation(doc *DocumentIndex, term string) float64 {
	f := float64(doc.TermFrequency[term])
	ratio := 1.0
	if avg := c.AverageLength(); avg > 0 {
		ratio = float64(doc.TermCount) / avg
	}
	return Delta + f*(K1+1)/(f+K1*(1-B+B*ratio))
}
