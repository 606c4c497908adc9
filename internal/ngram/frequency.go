package ngram

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/jacklau/clusterkit/internal/vecmath"
)

// Vocabulary maps every distinct n-gram of a corpus to a vector position,
// in order of first appearance.
type Vocabulary struct {
	index map[string]int
	terms []string
}

// NewVocabulary builds the vocabulary of all documents.
func NewVocabulary(docs []Tokens) *Vocabulary {
	v := &Vocabulary{index: make(map[string]int)}
	for _, doc := range docs {
		for _, tok := range doc {
			if _, ok := v.index[tok]; ok {
				continue
			}
			v.index[tok] = len(v.terms)
			v.terms = append(v.terms, tok)
		}
	}
	return v
}

// Len returns the number of distinct terms, i.e. the vector dimension.
func (v *Vocabulary) Len() int {
	return len(v.terms)
}

// Terms returns the terms in vector order.
func (v *Vocabulary) Terms() []string {
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}

// Frequencies counts each vocabulary term in tokens. Tokens outside the
// vocabulary are ignored.
func (v *Vocabulary) Frequencies(tokens Tokens) []float64 {
	freqs := make([]float64, len(v.terms))
	for _, tok := range tokens {
		if i, ok := v.index[tok]; ok {
			freqs[i]++
		}
	}
	return freqs
}

// IDF returns log10(N / df) for every term, where N is the number of docs and
// df the number of docs containing the term. A term found in every document
// gets 0.
func (v *Vocabulary) IDF(docs []Tokens) []float64 {
	df := make([]float64, len(v.terms))
	for _, doc := range docs {
		seen := make(map[int]struct{}, len(doc))
		for _, tok := range doc {
			i, ok := v.index[tok]
			if !ok {
				continue
			}
			if _, dup := seen[i]; dup {
				continue
			}
			seen[i] = struct{}{}
			df[i]++
		}
	}

	n := float64(len(docs))
	idf := make([]float64, len(v.terms))
	for i, d := range df {
		if d == 0 {
			continue
		}
		idf[i] = math.Log10(n / d)
	}
	return idf
}

// Weight multiplies a frequency vector by an IDF vector element-wise.
// Vectors of different lengths fail with vecmath.ErrDimensionMismatch.
func Weight(tf, idf []float64) ([]float64, error) {
	if len(tf) != len(idf) {
		return nil, fmt.Errorf("weighting: %w: %d vs %d", vecmath.ErrDimensionMismatch, len(tf), len(idf))
	}
	out := make([]float64, len(tf))
	if len(tf) == 0 {
		return out, nil
	}
	floats.MulTo(out, tf, idf)
	return out, nil
}
