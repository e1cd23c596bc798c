package category

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	domcat "github.com/kailas-cloud/catalogsearch/internal/domain/category"
	"github.com/kailas-cloud/catalogsearch/internal/domain/search/terms"
	"github.com/kailas-cloud/catalogsearch/internal/metrics"
)

// minSharedPrefix is the common prefix, in runes, that counts as a morphological match
// (холодильная/холодильное, витрина/витрины).
const minSharedPrefix = 4

// Match is the category branch selected for a query.
type Match struct {
	ID            int64
	Name          string
	Children      []domcat.Ref
	DescendantIDs []int64
}

// Matcher resolves free text to a category branch.
type Matcher struct {
	cache  *Cache
	logger *zap.Logger
}

// NewMatcher creates a matcher over the category cache.
func NewMatcher(cache *Cache, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{cache: cache, logger: logger}
}

// Match returns the best category for query. Unavailable categories count as no match.
func (m *Matcher) Match(ctx context.Context, query string) (Match, bool) {
	tree, err := m.cache.EnsureLoaded(ctx)
	if err != nil {
		m.logger.Warn("categories unavailable, skipping category match", zap.Error(err))
		metrics.CategoryMatchTotal.WithLabelValues("unavailable").Inc()
		return Match{}, false
	}

	match, ok := BestMatch(tree, query)
	if !ok {
		metrics.CategoryMatchTotal.WithLabelValues("none").Inc()
		return Match{}, false
	}
	metrics.CategoryMatchTotal.WithLabelValues("matched").Inc()
	m.logger.Info("Matched category",
		zap.String("category", match.Name),
		zap.Int64("category_id", match.ID),
		zap.Int("descendants", len(match.DescendantIDs)),
	)
	return match, true
}

// BestMatch scores every category by the number of query terms that match any
// of its name terms. Higher score wins; on a tie a category with children beats
// a leaf, then source order decides.
func BestMatch(tree *domcat.Tree, query string) (Match, bool) {
	if tree == nil || tree.Len() == 0 {
		return Match{}, false
	}
	qTerms := terms.Query(query)
	if len(qTerms) == 0 {
		return Match{}, false
	}

	var (
		best       domcat.Node
		bestScore  int
		bestParent bool
	)
	for _, n := range tree.Nodes() {
		cTerms := terms.Category(n.Name)
		if len(cTerms) == 0 {
			continue
		}
		score := 0
		for _, qt := range qTerms {
			for _, ct := range cTerms {
				if wordsMatch(qt, ct) {
					score++
					break
				}
			}
		}
		if score == 0 {
			continue
		}
		parent := tree.HasChildren(n.ID)
		if score > bestScore || (score == bestScore && parent && !bestParent) {
			best, bestScore, bestParent = n, score, parent
		}
	}
	if bestScore == 0 {
		return Match{}, false
	}

	return Match{
		ID:            best.ID,
		Name:          best.Name,
		Children:      tree.Children(best.ID),
		DescendantIDs: tree.DescendantIDs(best.ID),
	}, true
}

// wordsMatch: equality, substring either way, or a shared minSharedPrefix-rune prefix.
func wordsMatch(qt, ct string) bool {
	if qt == ct || strings.Contains(ct, qt) || strings.Contains(qt, ct) {
		return true
	}
	return utf8.RuneCountInString(qt) >= minSharedPrefix &&
		utf8.RuneCountInString(ct) >= minSharedPrefix &&
		terms.Prefix(qt, minSharedPrefix) == terms.Prefix(ct, minSharedPrefix)
}
