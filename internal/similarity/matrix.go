package similarity

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jacklau/clusterkit/internal/vecmath"
)

// Matrix is a labelled pairwise cosine similarity table. It is a reporting
// aid; the clustering engine does not use it.
type Matrix struct {
	Labels []string
	Values [][]float64
}

// NewMatrix computes the similarity of every pair of elements, the diagonal
// included.
func NewMatrix[E any](elements []E, features FeaturesFunc[E], label func(E) string) (*Matrix, error) {
	m := &Matrix{
		Labels: make([]string, len(elements)),
		Values: make([][]float64, len(elements)),
	}

	for i, a := range elements {
		m.Labels[i] = label(a)
		row := make([]float64, len(elements))
		for j, b := range elements {
			sim, err := CosineSimilarity(a, b, features)
			if err != nil {
				return nil, fmt.Errorf("similarity of %d and %d: %w", i, j, err)
			}
			row[j] = sim
		}
		m.Values[i] = row
	}

	return m, nil
}

// Render writes the matrix as an aligned table with values rounded to three decimals.
func (m *Matrix) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)

	header := append([]string{""}, m.Labels...)
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")

	for i, row := range m.Values {
		cells := make([]string, 0, len(row)+1)
		cells = append(cells, m.Labels[i])
		for _, v := range row {
			cells = append(cells, fmt.Sprintf("%.3f", vecmath.Round(v, 3)))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}

	return tw.Flush()
}
