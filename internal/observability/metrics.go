package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace defines the global prefix for all metrics (e.g., indexgate_...).
const namespace = "indexgate"

// Decision reasons used as the "reason" label of FilterDecisions.
const (
	ReasonTodoIndex     = "todo_index"
	ReasonFrontendIndex = "frontend_index"
	ReasonNoRule        = "no_rule"
	ReasonRuleExcluded  = "rule_excluded"
	ReasonRuleIncluded  = "rule_included"
	ReasonFault         = "fault"
)

var (
	// -------------------------------------------------------------------------
	// FILTER (hot path)
	// -------------------------------------------------------------------------

	// FilterDecisions counts evaluated queries by the step that decided them.
	// Queries short-circuited by a disabled engine are not counted.
	// Metric: indexgate_filter_decisions_total
	FilterDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "filter",
		Name:      "decisions_total",
		Help:      "Total exclusion queries evaluated, by deciding step",
	}, []string{"reason"})

	// FilterFaults counts resolutions that failed internally and degraded to "not excluded".
	FilterFaults = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "filter",
		Name:      "faults_total",
		Help:      "Total decision computations that failed and fell back to indexing",
	})

	// FilterEngineBuilds counts engines built from settings, by result.
	FilterEngineBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "filter",
		Name:      "engine_builds_total",
		Help:      "Total exclusion engines built from settings snapshots",
	}, []string{"status"}) // success, invalid

	// FilterActiveVersion exposes the version of the engine currently serving queries.
	FilterActiveVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "filter",
		Name:      "active_version",
		Help:      "Version of the exclusion engine currently serving queries",
	})

	// -------------------------------------------------------------------------
	// DECISION CACHE (otter)
	// -------------------------------------------------------------------------

	DecisionCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "decision_cache",
		Name:      "hits_total",
		Help:      "Total decision cache hits",
	})

	DecisionCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "decision_cache",
		Name:      "misses_total",
		Help:      "Total decision cache misses (rule scans)",
	})

	// DecisionCacheRejected tracks decisions the cache refused to store.
	DecisionCacheRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "decision_cache",
		Name:      "rejected_total",
		Help:      "Total decisions not stored by the cache",
	})

	DecisionCacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "decision_cache",
		Name:      "invalidations_total",
		Help:      "Total wholesale decision cache invalidations",
	})

	// -------------------------------------------------------------------------
	// SESSION (registry)
	// -------------------------------------------------------------------------

	// SessionResets counts registry-wide resets (stats logged, caches cleared).
	SessionResets = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "resets_total",
		Help:      "Total session resets across registered engines",
	})

	// SettingsReloads counts settings change notifications handled by the host.
	SettingsReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "settings",
		Name:      "reloads_total",
		Help:      "Total settings reloads, by result",
	}, []string{"status"}) // success, invalid, load_failed

	// -------------------------------------------------------------------------
	// QUERY API (HTTP)
	// -------------------------------------------------------------------------

	// QueryAPIReqDuration measures the latency of HTTP requests.
	// Metric: indexgate_query_api_http_handling_seconds
	QueryAPIReqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "query_api",
		Name:      "http_handling_seconds",
		Help:      "Time taken to handle HTTP requests in the query API",
		Buckets:   lowLatencyBuckets,
	}, []string{"method", "path"})

	// QueryAPIReqTotal counts the total number of HTTP requests.
	QueryAPIReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "query_api",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests in the query API",
	}, []string{"method", "path", "code"})
)

// lowLatencyBuckets starts at 100µs: a decision served from the cache is far
// below the default 5ms bucket.
var lowLatencyBuckets = []float64{.0001, .00025, .0005, .001, .002, .005, .010, .025, .050, .100, .500}
