package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Research metrics
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usecase_radar_search_requests_total",
			Help: "Search provider calls by topic and outcome",
		},
		[]string{"topic", "outcome"},
	)

	SearchRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usecase_radar_search_retries_total",
			Help: "Search retries after transient failures",
		},
		[]string{"topic"},
	)

	TopicDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usecase_radar_topic_degraded_total",
			Help: "Topics that fell back to empty research data",
		},
		[]string{"topic", "reason"},
	)

	ResearchCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "usecase_radar_research_cache_hits_total",
			Help: "Research bundles served from cache",
		},
	)

	// Generation metrics
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "usecase_radar_generation_duration_seconds",
			Help:    "Generation call duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"backend", "outcome"},
	)

	// Parse metrics
	ParsedUseCases = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "usecase_radar_parsed_use_cases",
			Help:    "Use cases recovered per generation",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 8, 10},
		},
	)

	PartialParses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "usecase_radar_partial_parses_total",
			Help: "Generations whose output was only partially recovered",
		},
	)

	// Pipeline metrics
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usecase_radar_pipeline_runs_total",
			Help: "Pipeline runs by outcome",
		},
		[]string{"outcome"},
	)
)
