package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval pipeline Prometheus metrics.
var (
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_stage_duration_seconds",
			Help:      "Duration of retrieval pipeline stages",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"stage"}, // embed, knn, filter, rerank
	)

	SearchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of results returned per search",
			Buckets:   []float64{0, 1, 3, 5, 10, 25, 50, 70, 100},
		},
	)

	SearchFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_fallback_total",
			Help:      "Searches retried without the category filter",
		},
	)

	CategoryMatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "category_match_total",
			Help:      "Category matcher outcomes",
		},
		[]string{"result"}, // matched, none, unavailable
	)

	RerankKeywordHits = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rerank_keyword_hits",
			Help:      "Results whose name contains a query product term",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 70},
		},
	)

	IndexVectors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_vectors",
			Help:      "Metadata records in the active index snapshot",
		},
	)

	ReplyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reply_total",
			Help:      "Chat replies by generator and outcome",
		},
		[]string{"responder", "status"},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers the retrieval pipeline metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchResults)
	prometheus.MustRegister(SearchFallbackTotal)
	prometheus.MustRegister(CategoryMatchTotal)
	prometheus.MustRegister(RerankKeywordHits)
	prometheus.MustRegister(IndexVectors)
	prometheus.MustRegister(ReplyTotal)
	searchMetricsRegistered = true
}
