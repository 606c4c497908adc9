package ngram

import (
	"strings"
	"unicode"
)

// StopWordsEnglish are dropped before tokenizing. "and" is not a stop word.
var StopWordsEnglish = []string{"of", "to", "the", "a", "be", "have"}

// Words lowercases text, splits it on every rune that is not a letter or a
// digit and drops the given stop words.
func Words(text string, stopWords []string) []string {
	stop := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		stop[strings.ToLower(w)] = struct{}{}
	}

	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := stop[f]; ok {
			continue
		}
		words = append(words, f)
	}
	return words
}
