package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var decisionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ringhub_ratelimit_decisions_total",
	Help: "Rate limit decisions by action, tier and outcome",
}, []string{"action", "tier", "outcome"})

var recordedActions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ringhub_ratelimit_recorded_actions_total",
	Help: "Accepted actions appended to the counter store",
}, []string{"action"})

var storeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ringhub_ratelimit_store_errors_total",
	Help: "Store or directory calls that failed and were resolved fail-open",
}, []string{"op"})

var reviewFlags = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ringhub_ratelimit_review_flags_total",
	Help: "Actors newly flagged for human review",
})

var cooldownsApplied = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ringhub_ratelimit_cooldowns_total",
	Help: "Cooldowns applied to actors",
})
