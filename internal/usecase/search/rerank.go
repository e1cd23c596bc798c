package search

import (
	"sort"
	"strings"
	"time"

	"github.com/kailas-cloud/catalogsearch/internal/domain/search/result"
	"github.com/kailas-cloud/catalogsearch/internal/domain/search/terms"
	"github.com/kailas-cloud/catalogsearch/internal/metrics"
)

// Rerank moves results whose name contains a product term of the query ahead of
// the rest, then orders by score. The sort is stable and never drops items;
// topK > 0 truncates afterwards.
func (s *Service) Rerank(query string, results []result.Result, topK int) []result.Result {
	start := time.Now()
	out, hits := Rerank(query, results, topK)
	metrics.SearchDuration.WithLabelValues("rerank").Observe(time.Since(start).Seconds())
	metrics.RerankKeywordHits.Observe(float64(hits))
	return out
}

// Rerank is the stateless form of Service.Rerank. It also reports how many
// results matched a term by name.
func Rerank(query string, results []result.Result, topK int) ([]result.Result, int) {
	if len(results) == 0 {
		return []result.Result{}, 0
	}

	out := make([]result.Result, len(results))
	copy(out, results)

	ts := terms.Product(query)
	if len(ts) == 0 {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
		return truncate(out, topK), 0
	}

	hit := make(map[int]bool, len(out))
	hits := 0
	for i := range out {
		if nameHasAny(out[i].Name, ts) {
			hit[i] = true
			hits++
		}
	}

	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		if hit[ia] != hit[ib] {
			return hit[ia]
		}
		return out[ia].Score > out[ib].Score
	})

	sorted := make([]result.Result, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return truncate(sorted, topK), hits
}

func nameHasAny(name string, ts []string) bool {
	lowered := strings.ToLower(name)
	for _, t := range ts {
		if strings.Contains(lowered, t) {
			return true
		}
	}
	return false
}

func truncate(rs []result.Result, topK int) []result.Result {
	if topK > 0 && len(rs) > topK {
		return rs[:topK]
	}
	return rs
}
