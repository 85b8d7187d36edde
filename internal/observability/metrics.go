package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	apiRequestsTotal  *prometheus.CounterVec
	apiLatencySeconds *prometheus.HistogramVec
	apiErrorsTotal    *prometheus.CounterVec

	activitiesIngestedTotal  *prometheus.CounterVec
	analysisRunsTotal        *prometheus.CounterVec
	analysisDurationSeconds  *prometheus.HistogramVec
	suggestionsEmittedTotal  *prometheus.CounterVec
	detectorFailuresTotal    *prometheus.CounterVec
	malformedEventsTotal     prometheus.Counter
	analysisEventsDispatched *prometheus.CounterVec
	streamClientsActive      prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_requests_total",
			Help: "Total number of proctor API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "proctor_latency_seconds",
			Help:    "Latency distribution for proctor API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_errors_total",
			Help: "Total number of error responses returned by proctor endpoints.",
		}, []string{"method", "route", "status"})

		activitiesIngestedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_activities_ingested_total",
			Help: "Activities appended to student logs, by outcome.",
		}, []string{"status"})

		analysisRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_analysis_runs_total",
			Help: "Analysis runs by scope and outcome.",
		}, []string{"scope", "status"})

		analysisDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "proctor_analysis_duration_seconds",
			Help:    "Duration of analysis runs.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"scope"})

		suggestionsEmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_suggestions_emitted_total",
			Help: "Suggestions published, by type.",
		}, []string{"type"})

		detectorFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_detector_failures_total",
			Help: "Detector runs that failed and were skipped.",
		}, []string{"detector"})

		malformedEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proctor_malformed_events_total",
			Help: "Activities dropped during normalization because of an unparseable timestamp.",
		})

		analysisEventsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_analysis_events_total",
			Help: "Analysis completion events sent to brokers, by broker and outcome.",
		}, []string{"broker", "status"})

		streamClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proctor_stream_clients_active",
			Help: "Reviewers connected to the analysis event stream.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			activitiesIngestedTotal,
			analysisRunsTotal,
			analysisDurationSeconds,
			suggestionsEmittedTotal,
			detectorFailuresTotal,
			malformedEventsTotal,
			analysisEventsDispatched,
			streamClientsActive,
		)
	})
}

// APIRequests exposes the counter for proctor API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for proctor API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for proctor API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// ActivitiesIngested exposes the ingestion counter.
func ActivitiesIngested() *prometheus.CounterVec {
	RegisterMetrics()
	return activitiesIngestedTotal
}

// AnalysisRuns exposes the analysis run counter.
func AnalysisRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return analysisRunsTotal
}

// AnalysisDuration exposes the analysis duration histogram.
func AnalysisDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return analysisDurationSeconds
}

// SuggestionsEmitted exposes the published suggestion counter.
func SuggestionsEmitted() *prometheus.CounterVec {
	RegisterMetrics()
	return suggestionsEmittedTotal
}

// DetectorFailures exposes the detector failure counter.
func DetectorFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return detectorFailuresTotal
}

// MalformedEvents exposes the dropped activity counter.
func MalformedEvents() prometheus.Counter {
	RegisterMetrics()
	return malformedEventsTotal
}

// AnalysisEvents exposes the broker dispatch counter.
func AnalysisEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return analysisEventsDispatched
}

// StreamClientsActive exposes the gauge of connected stream clients.
func StreamClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return streamClientsActive
}
