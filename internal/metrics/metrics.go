package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "untis_provider_calls_total",
		Help: "Remote calls made against the timetable provider.",
	}, []string{"grade", "method", "outcome"})

	ProviderLogins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "untis_provider_logins_total",
		Help: "Session logins, split into first logins and forced re-logins.",
	}, []string{"grade", "kind"})

	LookupFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "untis_lookup_failures_total",
		Help: "Lookup list fetches that degraded to an empty map.",
	}, []string{"grade", "lookup"})

	CacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "untis_cache_results_total",
		Help: "Response cache hits and misses.",
	}, []string{"result"})
)

// Outcome turns an error into the label used by ProviderCalls.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
