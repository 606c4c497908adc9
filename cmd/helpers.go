package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jacklau/clusterkit/internal/similarity"
)

// maxMatrixLabel is the width of row and column labels in the matrix.
const maxMatrixLabel = 16

// readTexts returns the trimmed non-blank lines of r.
func readTexts(r io.Reader) ([]string, error) {
	var texts []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			texts = append(texts, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading texts: %w", err)
	}
	return texts, nil
}

// parseRunID parses a positive run ID argument.
func parseRunID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid run id %q", s)
	}
	return id, nil
}

// shorten cuts s to n runes, marking the cut with "~".
func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}

// printMatrix writes the pairwise similarity of texts, whose feature vectors
// are vectors[i].
func printMatrix(w io.Writer, texts []string, vectors [][]float64) error {
	idx := make([]int, len(texts))
	for i := range idx {
		idx[i] = i
	}

	m, err := similarity.NewMatrix(idx,
		func(i int) ([]float64, error) { return vectors[i], nil },
		func(i int) string { return shorten(texts[i], maxMatrixLabel) })
	if err != nil {
		return err
	}
	return m.Render(w)
}
