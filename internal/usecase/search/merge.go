package search

import (
	"sort"

	"github.com/kailas-cloud/catalogsearch/internal/index"
)

// mergeMax unions two hit lists keeping, per position, the best score.
// Scores start from zero, so a merged score is never negative.
// Ties keep first-seen order: the first list, then positions only in the second.
func mergeMax(a, b []index.Hit) ([]int, []float64) {
	best := make(map[int]float64, len(a)+len(b))
	order := make([]int, 0, len(a)+len(b))

	add := func(hits []index.Hit) {
		for _, h := range hits {
			cur, seen := best[h.Position]
			if !seen {
				order = append(order, h.Position)
			}
			best[h.Position] = max(cur, float64(h.Score))
		}
	}
	add(a)
	add(b)

	sort.SliceStable(order, func(i, j int) bool { return best[order[i]] > best[order[j]] })

	scores := make([]float64, len(order))
	for i, pos := range order {
		scores[i] = best[pos]
	}
	return order, scores
}
