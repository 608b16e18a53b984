package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// smallWords lists the English articles, conjunctions, and short
// prepositions that stay lowercase in title case, except at the first or
// last position.
var smallWords = map[string]bool{
	"a": true, "an": true, "the": true,
	"of": true, "and": true, "or": true, "for": true,
	"to": true, "in": true, "on": true, "at": true, "by": true,
}

var wordCaser = cases.Title(language.English)

// TitleCase applies title casing with the usual small-word exceptions,
// always capitalizing the first and last word regardless of the exception
// list. Used for both media names (organizer naming grammar) and detected
// disc labels (analyst volume-label parsing).
func TitleCase(raw string) string {
	words := strings.Fields(raw)
	for i, word := range words {
		lower := strings.ToLower(word)
		if i != 0 && i != len(words)-1 && smallWords[lower] {
			words[i] = lower
			continue
		}
		words[i] = CapitalizeWord(word)
	}
	return strings.Join(words, " ")
}

// CapitalizeWord upper-cases the first letter of word and lower-cases the
// rest, using golang.org/x/text/cases so multi-byte scripts are handled the
// same way the language-aware casing tables expect.
func CapitalizeWord(word string) string {
	if word == "" {
		return word
	}
	return wordCaser.String(strings.ToLower(word))
}
