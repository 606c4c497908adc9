// Package ngram turns words into character n-gram multisets and frequency vectors.
package ngram

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultSize is the n-gram length used when none is configured.
const DefaultSize = 2

// BoundaryMarker pads word starts and ends. It never appears in the output of Words.
const BoundaryMarker = '#'

var (
	ErrInvalidSize    = errors.New("n-gram size must be at least 1")
	ErrInvalidPadding = errors.New("invalid padding mode")
)

// Padding selects which word boundaries get BoundaryMarker padding.
type Padding int

const (
	PaddingNone Padding = iota
	PaddingStart
	PaddingEnd
	PaddingBoth
)

// String returns the config name of the padding mode.
func (p Padding) String() string {
	switch p {
	case PaddingNone:
		return "none"
	case PaddingStart:
		return "start"
	case PaddingEnd:
		return "end"
	case PaddingBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ParsePadding parses "none", "start", "end" or "both". The empty string is "none".
func ParsePadding(s string) (Padding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return PaddingNone, nil
	case "start":
		return PaddingStart, nil
	case "end":
		return PaddingEnd, nil
	case "both":
		return PaddingBoth, nil
	default:
		return PaddingNone, fmt.Errorf("%w: %q", ErrInvalidPadding, s)
	}
}

// Tokens is a multiset of n-grams. Repetitions are meaningful: frequency
// vectors count them.
type Tokens []string

// Tokenize extracts every n-gram of the given size from each word, keeping
// repetitions, in word order and left to right within a word.
//
// With padding, size-1 boundary markers are added so that word edges produce
// their own n-grams: "truck" at size 3 gives [tru ruc uck] without padding and
// [##t #tr tru ruc uck ck# k##] with PaddingBoth. Words shorter than size
// after padding contribute nothing. Windows are measured in runes.
func Tokenize(words []string, size int, padding Padding) (Tokens, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}
	if padding < PaddingNone || padding > PaddingBoth {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPadding, padding)
	}

	pad := strings.Repeat(string(BoundaryMarker), size-1)
	tokens := Tokens{}

	for _, word := range words {
		if padding == PaddingStart || padding == PaddingBoth {
			word = pad + word
		}
		if padding == PaddingEnd || padding == PaddingBoth {
			word = word + pad
		}

		runes := []rune(word)
		for i := 0; i+size <= len(runes); i++ {
			tokens = append(tokens, string(runes[i:i+size]))
		}
	}

	return tokens, nil
}
