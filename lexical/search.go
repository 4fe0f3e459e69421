package lexical

import (
	"cmp"
	"slices"
)

// MinScore is the relevance floor. Matches scoring at or below it are dropped.
const MinScore = 1.0

// Match is a scored document.
type Match struct {
	ID    string
	Score float64
}

// Search scores documents against query and returns the best limit matches,
// highest score first with ties broken by ascending ID. limit <= 0 returns
// every match above the floor. A query without usable terms matches nothing.
func Search(query string, limit int, corpus *Corpus, documents []*DocumentIndex) []Match {
	terms := uniqueTerms(Terms(query))
	if len(terms) == 0 || corpus == nil {
		return []Match{}
	}

	matches := make([]Match, 0)
	for _, doc := range documents {
		if score := Score(corpus, doc, terms); score > MinScore {
			matches = append(matches, Match{ID: doc.ID, Score: score})
		}
	}

	SortMatches(matches)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Score sums idf * saturation over the distinct terms present in doc.
// Terms absent from doc contribute nothing.
func Score(corpus *Corpus, doc *DocumentIndex, terms []string) float64 {
	var score float64
	for _, term := range terms {
		if doc.TermFrequency[term] == 0 {
			continue
		}
		score += corpus.IDF(term) * corpus.Saturation(doc, term)
	}
	return score
}

// UniqueTerms returns the distinct index terms of text in first-seen order.
func UniqueTerms(text string) []string {
	return uniqueTerms(Terms(text))
}

// SortMatches orders matches by descending score, then ascending ID.
func SortMatches(matches []Match) {
	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
