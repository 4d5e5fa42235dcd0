package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmstxt",
			Name:      "pages_total",
			Help:      "Pages rendered, by renderer and outcome",
		},
		[]string{"renderer", "status"},
	)

	discoveryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmstxt",
			Name:      "discovery_total",
			Help:      "Generation runs by URL source (list, explicit, sitemap, crawl)",
		},
		[]string{"source"},
	)

	enrichTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmstxt",
			Name:      "enrich_total",
			Help:      "AI description calls by outcome",
		},
		[]string{"status"},
	)

	generateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "llmstxt",
			Name:      "generate_duration_seconds",
			Help:      "Wall time of a full generation run",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)
)
