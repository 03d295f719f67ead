package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fieldjournal_query"

var (
	readsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reads_total",
		Help:      "Cache reads by key kind and outcome (hit, fetch, coalesced, pending, error).",
	}, []string{"kind", "outcome"})

	remoteCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "remote_calls_total",
		Help:      "Remote actor reads issued by the cache.",
	}, []string{"kind"})

	invalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invalidations_total",
		Help:      "Cache entries marked stale.",
	}, []string{"kind"})

	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mutations_total",
		Help:      "Mutations by operation and outcome.",
	}, []string{"op", "outcome"})
)
