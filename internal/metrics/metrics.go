// Package metrics defines and registers all custom Prometheus metrics for
// the feature-gating engine. It is the single source of truth for metric
// names, labels, and help strings; metrics register with the default
// registry at package init via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "featuregate"

// EvaluationsTotal counts single-flag evaluations.
// Labels:
//   - layer: the precedence layer that decided (e.g. "user_rule", "rollout")
//   - result: "enabled" or "disabled"
var EvaluationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "evaluations_total",
		Help:      "Total number of flag evaluations, by deciding layer and result.",
	},
	[]string{"layer", "result"},
)

// EvaluationDuration measures how long a single uncached evaluation takes,
// including store round-trips on cache miss.
var EvaluationDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of a single flag evaluation, cache miss path.",
		Buckets:   prometheus.DefBuckets,
	},
)

// CacheOpsTotal counts cache lookups.
// Labels:
//   - namespace: the cache namespace (userflags, flagmeta, rules, onboarding)
//   - result: "hit", "miss", or "error"
var CacheOpsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_ops_total",
		Help:      "Total number of cache lookups, by namespace and result.",
	},
	[]string{"namespace", "result"},
)

// OnboardingAdvancesTotal counts successful stage advancements.
// Label:
//   - stage: the stage advanced to
var OnboardingAdvancesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "onboarding_advances_total",
		Help:      "Total number of onboarding stage advancements, by target stage.",
	},
	[]string{"stage"},
)

// FlagWritesTotal counts write operations on flags and rules.
// Labels:
//   - entity: "flag" or "rule"
//   - op: "create", "update", or "delete"
var FlagWritesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "writes_total",
		Help:      "Total number of flag and rule write operations.",
	},
	[]string{"entity", "op"},
)
