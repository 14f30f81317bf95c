package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keywords_tool_calls_total",
			Help: "Total number of data backend tool calls",
		},
		[]string{"tool", "status"},
	)

	ToolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keywords_tool_call_duration_seconds",
			Help:    "Duration of data backend tool calls in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"tool"},
	)

	ToolResultsTruncated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keywords_tool_results_truncated_total",
			Help: "Tool calls whose result list was capped before reaching the caller",
		},
		[]string{"tool"},
	)

	FanoutDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keywords_fanout_degraded_total",
			Help: "Fan-out units that failed and were replaced with an empty result",
		},
		[]string{"tool"},
	)

	AgentTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keywords_agent_turns_total",
			Help: "Model invocations made by research agents",
		},
		[]string{"agent"},
	)

	AgentOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keywords_agent_outcomes_total",
			Help: "Agent runs by outcome",
		},
		[]string{"agent", "outcome"},
	)

	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keywords_pipeline_runs_total",
			Help: "Research pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "keywords_pipeline_duration_seconds",
			Help:    "Wall-clock duration of research pipeline runs",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200},
		},
	)

	EventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "keywords_progress_events_dropped_total",
			Help: "Progress events dropped because a stream subscriber was not keeping up",
		},
	)

	ScoredKeywordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keywords_scored_total",
			Help: "Scored keywords by opportunity tier",
		},
		[]string{"tier"},
	)
)

// RecordToolCall updates the tool-call counters for one adapter invocation.
func RecordToolCall(tool string, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ToolCallsTotal.WithLabelValues(tool, status).Inc()
	ToolCallDuration.WithLabelValues(tool).Observe(time.Since(started).Seconds())
}

func RecordPipeline(started time.Time, err error) {
	outcome := "completed"
	if err != nil {
		outcome = "failed"
	}
	PipelineRunsTotal.WithLabelValues(outcome).Inc()
	PipelineDuration.Observe(time.Since(started).Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}
