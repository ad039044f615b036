package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	chatRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabletalk_chat_runs_total",
			Help: "Total number of conversation loop runs by outcome.",
		},
		[]string{"outcome"},
	)
	chatTurns = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tabletalk_chat_turns",
			Help:    "Model round trips per conversation loop run.",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10, 15, 20},
		},
	)
	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabletalk_tool_calls_total",
			Help: "Total number of tool calls by tool and status.",
		},
		[]string{"tool", "status"},
	)
	toolCallDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tabletalk_tool_call_duration_ms",
			Help:    "Tool call latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
	)
	providerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabletalk_provider_errors_total",
			Help: "Total number of model provider failures by kind.",
		},
		[]string{"kind"},
	)
	loopOverflowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tabletalk_loop_overflows_total",
			Help: "Total number of conversation loops stopped at the turn limit.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		chatRunsTotal,
		chatTurns,
		toolCallsTotal,
		toolCallDurationMs,
		providerErrorsTotal,
		loopOverflowsTotal,
	)
}

// ObserveChatRun records a finished loop run.
func ObserveChatRun(outcome string, turns int) {
	chatRunsTotal.WithLabelValues(outcome).Inc()
	if turns > 0 {
		chatTurns.Observe(float64(turns))
	}
}

func ObserveToolCall(tool, status string, elapsed time.Duration) {
	toolCallsTotal.WithLabelValues(tool, status).Inc()
	toolCallDurationMs.Observe(float64(elapsed.Milliseconds()))
}

func IncrementProviderError(kind string) {
	providerErrorsTotal.WithLabelValues(kind).Inc()
}

func IncrementLoopOverflow() {
	loopOverflowsTotal.Inc()
}
