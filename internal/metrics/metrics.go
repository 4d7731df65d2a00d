// Package metrics exposes Prometheus collectors for Covenant.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opensource-finance/covenant/internal/domain"
)

const namespace = "covenant"

var (
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analyses_total",
		Help:      "Completed document analyses by overall risk level and contract type.",
	}, []string{"level", "contract_type"})

	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "analysis_duration_seconds",
		Help:      "End-to-end analysis latency.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	clausesScored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "clauses_scored_total",
		Help:      "Clauses scored across all analyses.",
	})

	escalations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "escalations_total",
		Help:      "Analyses whose score was escalated for many high-risk clauses.",
	})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "clause_cache_lookups_total",
		Help:      "Clause risk cache lookups by result.",
	}, []string{"result"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// ObserveAnalysis records a completed analysis.
func ObserveAnalysis(a *domain.Analysis, elapsed time.Duration) {
	level := domain.SeverityLow
	if a.Result != nil {
		level = a.Result.Level
		if a.Result.Escalated {
			escalations.Inc()
		}
	}
	analysesTotal.WithLabelValues(string(level), contractLabel(a.ContractType)).Inc()
	analysisDuration.Observe(elapsed.Seconds())
	clausesScored.Add(float64(len(a.Clauses)))
}

// ObserveCacheLookup records a clause risk cache hit or miss.
func ObserveCacheLookup(hit bool) {
	if hit {
		cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	cacheLookups.WithLabelValues("miss").Inc()
}

// ObserveHTTP records one served request. route is the matched pattern,
// not the raw path, to keep label cardinality bounded.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Unknown contract types share one label value.
func contractLabel(ct domain.ContractType) string {
	if ct.Known() {
		return string(ct)
	}
	return "other"
}
