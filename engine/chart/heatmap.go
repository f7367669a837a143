package chart

import (
	"github.com/astrobio/progression/engine/catalog"
	"github.com/astrobio/progression/pkg/fn"
)

// Pair is one weighted edge of a co-occurrence surface.
type Pair struct {
	X string  `json:"x"`
	Y string  `json:"y"`
	V float64 `json:"v"`
}

// Heatmap is a square matrix over Labels. A nil cell is not rendered.
type Heatmap struct {
	Labels   []string     `json:"labels"`
	Cells    [][]*float64 `json:"cells"`
	MaxValue float64      `json:"maxValue"`
}

// Matrix builds the category heatmap. Each topic is paired with its
// consensus bucket label, which is not itself an axis label, so every
// off-diagonal cell stays 0. The result is a placeholder surface; real
// pairwise data comes from MatrixFromPairs over graph co-occurrence.
func Matrix(topics []catalog.Topic) Heatmap {
	labels := fn.Map(topics, func(t catalog.Topic) string { return t.Name })
	pairs := fn.Map(topics, func(t catalog.Topic) Pair {
		return Pair{X: t.Name, Y: Classify(t.ConsensusPct).Label(), V: float64(t.MentionCount)}
	})
	return MatrixFromPairs(labels, pairs)
}

// MatrixFromPairs builds a symmetric matrix over the unique labels in
// first-seen order. Each pair adds V to both (x,y) and (y,x); pairs whose
// endpoints are not labels are skipped. The diagonal is always nil and
// MaxValue is at least 1.
func MatrixFromPairs(labels []string, pairs []Pair) Heatmap {
	labels = fn.Unique(labels)
	if labels == nil {
		labels = []string{}
	}
	idx := make(map[string]int, len(labels))
	for i, l := range labels {
		idx[l] = i
	}

	mat := make([][]float64, len(labels))
	for i := range mat {
		mat[i] = make([]float64, len(labels))
	}
	for _, p := range pairs {
		i, okX := idx[p.X]
		j, okY := idx[p.Y]
		if !okX || !okY {
			continue
		}
		mat[i][j] += p.V
		mat[j][i] += p.V
	}

	maxV := 1.0
	cells := make([][]*float64, len(labels))
	for i := range mat {
		cells[i] = make([]*float64, len(labels))
		for j := range mat[i] {
			if i == j {
				continue
			}
			v := mat[i][j]
			if v > maxV {
				maxV = v
			}
			cells[i][j] = &v
		}
	}
	return Heatmap{Labels: labels, Cells: cells, MaxValue: maxV}
}

// Value returns cell (i,j) and whether it is rendered.
func (h Heatmap) Value(i, j int) (float64, bool) {
	if i < 0 || j < 0 || i >= len(h.Cells) || j >= len(h.Cells[i]) || h.Cells[i][j] == nil {
		return 0, false
	}
	return *h.Cells[i][j], true
}
