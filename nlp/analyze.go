package nlp

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kljensen/snowball/english"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Kind classifies a token.
type Kind int

const (
	Word Kind = iota
	Number
	Punctuation
	Symbol
)

func (k Kind) String() string {
	switch k {
	case Word:
		return "word"
	case Number:
		return "number"
	case Punctuation:
		return "punctuation"
	case Symbol:
		return "symbol"
	default:
		return "unknown"
	}
}

// Token is one unit of analyzed text.
type Token struct {
	Text           string // Surface form as it appears in the source
	Stem           string // Normalised base form used for matching
	Kind           Kind
	Stop           bool   // English stop word
	PrecedingSpace string // Whitespace between the previous token and this one
}

// Valuable reports whether the token carries meaning on its own.
// Punctuation, symbols and stop words are not valuable.
func (t Token) Valuable() bool {
	return (t.Kind == Word || t.Kind == Number) && !t.Stop
}

// Span is a half-open range of token positions.
type Span struct {
	Start int
	End   int
}

// Len returns the number of tokens in the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Document is the analyzed form of a text.
type Document struct {
	Tokens []Token
}

// Len returns the number of tokens.
func (d *Document) Len() int {
	return len(d.Tokens)
}

// Stems returns the stems of all tokens, in order.
func (d *Document) Stems() []string {
	stems := make([]string, len(d.Tokens))
	for i, t := range d.Tokens {
		stems[i] = t.Stem
	}
	return stems
}

// Text reconstructs the source text of tokens [from, to). Whitespace before
// the first token is dropped. Out of range bounds are clamped.
func (d *Document) Text(from, to int) string {
	from = max(from, 0)
	to = min(to, len(d.Tokens))
	if from >= to {
		return ""
	}
	var b strings.Builder
	b.WriteString(d.Tokens[from].Text)
	for _, t := range d.Tokens[from+1 : to] {
		b.WriteString(t.PrecedingSpace)
		b.WriteString(t.Text)
	}
	return b.String()
}

// Sentences splits the document into sentences. A sentence ends after a run
// of terminators (. ! ? …) together with any closing quotes or brackets that
// follow it, or before a token preceded by a line break.
func (d *Document) Sentences() []Span {
	var spans []Span
	start := 0
	for i := 0; i < len(d.Tokens); i++ {
		if i > start && strings.ContainsAny(d.Tokens[i].PrecedingSpace, "\n\r") {
			spans = append(spans, Span{start, i})
			start = i
		}
		if !isTerminator(d.Tokens[i]) {
			continue
		}
		end := i + 1
		for end < len(d.Tokens) && d.Tokens[end].PrecedingSpace == "" &&
			(isTerminator(d.Tokens[end]) || isCloser(d.Tokens[end])) {
			end++
		}
		spans = append(spans, Span{start, end})
		start = end
		i = end - 1
	}
	if start < len(d.Tokens) {
		spans = append(spans, Span{start, len(d.Tokens)})
	}
	return spans
}

func isTerminator(t Token) bool {
	if t.Kind != Punctuation {
		return false
	}
	switch t.Text {
	case ".", "!", "?", "…":
		return true
	}
	return false
}

func isCloser(t Token) bool {
	if t.Kind != Punctuation {
		return false
	}
	r, _ := utf8.DecodeRuneInString(t.Text)
	return unicode.Is(unicode.Pe, r) || unicode.Is(unicode.Pf, r) || r == '"' || r == '\''
}

// fold applies NFKC normalisation and Unicode case folding.
// A Caser is stateful, so one is created per call.
func fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

// Analyze tokenizes text.
func Analyze(text string) *Document {
	doc := &Document{}
	var space strings.Builder

	emit := func(surface string, kind Kind) {
		t := Token{Text: surface, Kind: kind, PrecedingSpace: space.String()}
		space.Reset()
		switch kind {
		case Word:
			folded := fold(surface)
			t.Stop = english.IsStopWord(folded)
			t.Stem = english.Stem(folded, false)
			if t.Stem == "" {
				t.Stem = folded
			}
		case Number:
			t.Stem = fold(surface)
		default:
			t.Stem = surface
		}
		doc.Tokens = append(doc.Tokens, t)
	}

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case unicode.IsSpace(r):
			space.WriteString(text[i : i+size])
			i += size
		case unicode.IsLetter(r):
			end := scanWord(text, i)
			emit(text[i:end], Word)
			i = end
		case unicode.IsDigit(r):
			end := scanNumber(text, i)
			kind := Number
			// Digits running into letters ("3d") read as a word.
			if end < len(text) {
				if next, _ := utf8.DecodeRuneInString(text[end:]); unicode.IsLetter(next) {
					end = scanWord(text, i)
					kind = Word
				}
			}
			emit(text[i:end], kind)
			i = end
		case unicode.IsPunct(r):
			emit(text[i:i+size], Punctuation)
			i += size
		default:
			emit(text[i:i+size], Symbol)
			i += size
		}
	}
	return doc
}

// scanWord returns the end of a word starting at i. Letters, digits and
// combining marks continue a word; an apostrophe or hyphen joins two letter
// runs ("don't", "well-known").
func scanWord(text string, i int) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r):
			i += size
		case r == '\'' || r == '’' || r == '-':
			if i+size < len(text) {
				if next, _ := utf8.DecodeRuneInString(text[i+size:]); unicode.IsLetter(next) {
					i += size
					continue
				}
			}
			return i
		default:
			return i
		}
	}
	return i
}

// scanNumber returns the end of a number starting at i. A single '.' or ','
// between digits stays inside the number ("3.14", "1,000").
func scanNumber(text string, i int) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case unicode.IsDigit(r):
			i += size
		case r == '.' || r == ',':
			if i+size < len(text) {
				if next, _ := utf8.DecodeRuneInString(text[i+size:]); unicode.IsDigit(next) {
					i += size
					continue
				}
			}
			return i
		default:
			return i
		}
	}
	return i
}
