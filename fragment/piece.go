package fragment

import (
	"fmt"
	"slices"

	"github.com/poiesic/recall/lexical"
	"github.com/poiesic/recall/nlp"
)

// Options control how much context surrounds a match.
type Options struct {
	PrefixWords    int // Tokens of context before the match
	SuffixWords    int // Tokens of context after the match
	MaxMatchTokens int // Stop searching once a run this long is found; <= 0 means no limit
	HighlightGap   int // Highlighted tokens this close are merged into one highlight
}

// DefaultOptions returns the context sizes used for display.
func DefaultOptions() Options {
	return Options{
		PrefixWords:    8,
		SuffixWords:    8,
		MaxMatchTokens: 64,
		HighlightGap:   2,
	}
}

// Piece is a matched passage with its display context.
// Prefix + Match + Suffix is the exact source text of the displayed span.
type Piece struct {
	Prefix string
	Match  string
	Suffix string

	MatchRange               Range // Token positions of the match in the source document
	MatchTokensCount         int
	MatchValuableTokensCount int // Matched tokens that are not punctuation, symbols or stop words
}

// Empty reports whether nothing matched.
func (p Piece) Empty() bool {
	return p.MatchTokensCount == 0
}

// FindLongestCommonContinuousPiece finds the longest run of tokens whose stems
// appear contiguously in both documents and renders it from first's surface
// text with surrounding context. Returns a zero Piece when nothing matches.
func FindLongestCommonContinuousPiece(first, second *nlp.Document, opts Options) Piece {
	match := LongestCommonRun(first.Stems(), second.Stems(), opts.MaxMatchTokens)
	if match.Empty() {
		return Piece{}
	}
	return buildPiece(first, match, opts)
}

func buildPiece(doc *nlp.Document, match Range, opts Options) Piece {
	prefix, suffix := ExtendInterval(match, opts.PrefixWords, opts.SuffixWords, doc.Len()-1)

	p := Piece{
		Match:            doc.Text(match.Start, match.End),
		MatchRange:       match,
		MatchTokensCount: match.Len(),
	}
	if !prefix.Empty() {
		p.Prefix = doc.Text(prefix.Start, prefix.End) + doc.Tokens[match.Start].PrecedingSpace
	}
	if !suffix.Empty() {
		p.Suffix = doc.Tokens[suffix.Start].PrecedingSpace + doc.Text(suffix.Start, suffix.End)
	}
	for _, t := range doc.Tokens[match.Start:match.End] {
		if t.Valuable() {
			p.MatchValuableTokensCount++
		}
	}
	return p
}

// Quote is the sentence of a document that best answers a query.
type Quote struct {
	Piece
	Highlights []Range // Runs of query terms inside the match, in document positions
}

// FindQuote scores every sentence of doc against query with BM25+ and quotes
// the best one. Returns false when no sentence shares a term with the query.
func FindQuote(doc *nlp.Document, query string, opts Options) (Quote, bool) {
	terms := lexical.UniqueTerms(query)
	if len(terms) == 0 || doc.Len() == 0 {
		return Quote{}, false
	}

	sentences := doc.Sentences()
	corpus := lexical.NewCorpus()
	indexes := make([]*lexical.DocumentIndex, len(sentences))
	for i, s := range sentences {
		indexes[i] = corpus.AddDocument(doc.Text(s.Start, s.End), fmt.Sprint(i))
	}

	best, bestScore := -1, 0.0
	for i, idx := range indexes {
		// Strictly greater keeps the earliest sentence on ties.
		if score := lexical.Score(corpus, idx, terms); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return Quote{}, false
	}

	match := Range{Start: sentences[best].Start, End: sentences[best].End}
	quote := Quote{Piece: buildPiece(doc, match, opts)}

	var hits []int
	for pos := match.Start; pos < match.End; pos++ {
		t := doc.Tokens[pos]
		if t.Valuable() && slices.Contains(terms, t.Stem) {
			hits = append(hits, pos)
		}
	}
	quote.Highlights = rangesFromIntervals(SplitIntoContinuousIntervals(FillSmallGaps(hits, opts.HighlightGap)))
	return quote, true
}
