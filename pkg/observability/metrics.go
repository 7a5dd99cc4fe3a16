package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics must be global for registration
var (
	// HydrationsTotal counts ensure calls by outcome
	HydrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephemeris_hydrations_total",
			Help: "Total number of segment ensure calls",
		},
		[]string{"class", "result"}, // result: resident, cache, remote, unavailable, error
	)

	// HydrationDuration measures how long an ensure call took
	HydrationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ephemeris_hydration_duration_seconds",
			Help:    "Segment ensure duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~65s
		},
		[]string{"class", "result"},
	)

	// FetchAttempts counts remote location attempts
	FetchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephemeris_fetch_attempts_total",
			Help: "Total number of remote segment fetch attempts",
		},
		[]string{"outcome"}, // outcome: success, status, malformed, error
	)

	// BytesStaged counts bytes written into the resident store
	BytesStaged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ephemeris_bytes_staged_total",
			Help: "Total bytes written into the resident store",
		},
	)

	// PayloadCacheRequests counts payload cache lookups
	PayloadCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephemeris_payload_cache_requests_total",
			Help: "Total number of payload cache lookups",
		},
		[]string{"result"}, // result: hit, miss, error
	)

	// QueriesTotal counts orchestrator runs
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephemeris_queries_total",
			Help: "Total number of position queries",
		},
		[]string{"body", "status"}, // status: success, failed
	)

	// QueryDuration measures query execution duration
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ephemeris_query_duration_seconds",
			Help:    "Position query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"body"},
	)

	// RowErrors counts rows the engine rejected
	RowErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephemeris_row_errors_total",
			Help: "Total number of result rows that carry an engine error",
		},
		[]string{"body"},
	)

	// EngineState is 1 for the bridge's current state and 0 for the others
	EngineState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ephemeris_engine_state",
			Help: "Engine bridge state (1 for the current state)",
		},
		[]string{"state"},
	)

	// TasksEnqueued counts prefetch tasks enqueued
	TasksEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephemeris_tasks_enqueued_total",
			Help: "Total number of prefetch tasks enqueued",
		},
		[]string{"trigger"}, // trigger: schedule, manual
	)

	// TasksTotal counts prefetch tasks processed
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephemeris_tasks_total",
			Help: "Total number of prefetch tasks processed",
		},
		[]string{"status"}, // status: success, failed
	)

	// ErrorsTotal counts total number of errors
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephemeris_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordHydration records an ensure call
func RecordHydration(class, result string, duration float64) {
	HydrationsTotal.WithLabelValues(class, result).Inc()
	HydrationDuration.WithLabelValues(class, result).Observe(duration)
}

// RecordFetchAttempt records one remote location attempt
func RecordFetchAttempt(outcome string) {
	FetchAttempts.WithLabelValues(outcome).Inc()
}

// RecordBytesStaged records bytes written to the resident store
func RecordBytesStaged(n int) {
	BytesStaged.Add(float64(n))
}

// RecordPayloadCache records a payload cache lookup
func RecordPayloadCache(result string) {
	PayloadCacheRequests.WithLabelValues(result).Inc()
}

// RecordQuery records a finished query
func RecordQuery(body, status string, duration float64) {
	QueriesTotal.WithLabelValues(body, status).Inc()
	QueryDuration.WithLabelValues(body).Observe(duration)
}

// RecordRowError records a row the engine rejected
func RecordRowError(body string) {
	RowErrors.WithLabelValues(body).Inc()
}

// RecordEngineState marks state as current and clears the others
func RecordEngineState(current string, all []string) {
	for _, state := range all {
		value := 0.0
		if state == current {
			value = 1
		}

		EngineState.WithLabelValues(state).Set(value)
	}
}

// RecordTaskEnqueued records task enqueue
func RecordTaskEnqueued(trigger string) {
	TasksEnqueued.WithLabelValues(trigger).Inc()
}

// RecordTaskComplete records task completion
func RecordTaskComplete(status string) {
	TasksTotal.WithLabelValues(status).Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
