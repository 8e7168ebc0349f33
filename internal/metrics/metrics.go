package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduler", Name: "http_requests_total", Help: "HTTP requests by route and status code",
	}, []string{"method", "route", "code"})
	HTTPErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scheduler", Name: "http_internal_errors_total", Help: "Requests that ended with an internal error",
	})
	LessonsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduler", Name: "lessons_created_total", Help: "Committed lessons by origin",
	}, []string{"origin"})
	Conflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduler", Name: "conflicts_total", Help: "Rejected bookings by operation",
	}, []string{"operation"})
	SeriesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduler", Name: "series_skipped_total", Help: "Series occurrences skipped by reason",
	}, []string{"reason"})
	SuggestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scheduler", Name: "suggest_seconds", Help: "Slot suggestion latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"algorithm"})
	EnrollmentTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduler", Name: "enrollment_transitions_total", Help: "Enrollment status changes by target status",
	}, []string{"status"})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "scheduler", Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPErrors, LessonsCreated, Conflicts, SeriesSkipped,
		SuggestDuration, EnrollmentTransitions, DBPing)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }

func ObserveSuggest(algorithm string, d time.Duration) {
	SuggestDuration.WithLabelValues(algorithm).Observe(d.Seconds())
}
