// Package metrics defines the Prometheus instruments shared across the
// service. They are registered on the default registry and exposed by the
// admin server at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuestionsTotal counts answered questions by terminal outcome
	// ("success" or "failure").
	QuestionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "askdoc",
		Name:      "questions_total",
		Help:      "Questions processed, labeled by terminal outcome.",
	}, []string{"outcome"})

	// ToolInvocationsTotal counts tool calls executed by the agent loop.
	ToolInvocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "askdoc",
		Name:      "tool_invocations_total",
		Help:      "Tool invocations, labeled by tool name and outcome.",
	}, []string{"tool", "outcome"})

	// AgentRounds observes how many tool-exchange rounds a question needed
	// before the model produced a final answer (or hit the ceiling).
	AgentRounds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "askdoc",
		Name:      "agent_rounds",
		Help:      "Tool-exchange rounds per question.",
		Buckets:   prometheus.LinearBuckets(0, 1, 11),
	})

	// ScopeFetchesTotal counts scope-document cache activity
	// ("hit", "refresh", "failure").
	ScopeFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "askdoc",
		Name:      "scope_fetches_total",
		Help:      "Scope document cache activity.",
	}, []string{"result"})

	// QueueDepth tracks questions waiting for a worker.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "askdoc",
		Name:      "queue_depth",
		Help:      "Questions currently queued for answering.",
	})

	// DroppedEventsTotal counts webhook events discarded because the queue
	// was full.
	DroppedEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "askdoc",
		Name:      "dropped_events_total",
		Help:      "Inbound events dropped due to a full queue.",
	})
)
