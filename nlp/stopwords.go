package nlp

import "github.com/kljensen/snowball/english"

// IsStopWord reports whether word is an English stop word. Case-insensitive.
func IsStopWord(word string) bool {
	return english.IsStopWord(fold(word))
}
