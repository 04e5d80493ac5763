package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheLookups counts cache lookups by cache and result.
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reasoner_cache_lookups_total",
		Help: "Total cache lookups by cache and result",
	}, []string{"cache", "result"}) // cache: "structural" or "query"; result: "hit" or "miss"

	// planCompiles counts scan plans compiled on structural cache misses.
	planCompiles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reasoner_plan_compiles_total",
		Help: "Total scan plans compiled",
	})

	// derivedRecords counts new rule-derived answers recorded.
	derivedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reasoner_derived_answers_total",
		Help: "Total rule-derived answers recorded in query caches",
	})
)
