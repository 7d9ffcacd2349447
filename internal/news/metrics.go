package news

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Laisky/topic-news/library/search"
)

var (
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topic_news_pipeline_runs_total",
			Help: "Total number of pipeline runs by final state",
		},
		[]string{"state"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "topic_news_pipeline_duration_seconds",
			Help:    "Duration of pipeline runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"state"},
	)

	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topic_news_search_requests_total",
			Help: "Total number of news searches by engine and outcome",
		},
		[]string{"engine", "outcome"},
	)
)

func recordSearch(engine string, outcome search.Outcome) {
	label := "ok"
	if outcome.Failed() {
		label = outcome.Error
	}
	SearchRequestsTotal.WithLabelValues(engine, label).Inc()
}

func recordRun(report *Report) {
	state := string(report.State)
	PipelineRunsTotal.WithLabelValues(state).Inc()
	PipelineDuration.WithLabelValues(state).Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
}
