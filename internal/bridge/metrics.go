// ABOUTME: Prometheus instruments for dispatched actions
// ABOUTME: Counts outcomes per action and kind, dedupe hits, and provider call latency

package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	actionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubspot_gateway_action_total",
		Help: "The number of dispatched actions by action and outcome kind",
	}, []string{"action", "kind"})

	actionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hubspot_gateway_action_duration_seconds",
		Help:    "Time spent executing an action against the CRM",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	dedupeMatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubspot_gateway_dedupe_match_total",
		Help: "The number of create requests answered with an existing record",
	}, []string{"entity", "source"})
)
