package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for portal requests and sync runs.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	Requests        *prometheus.CounterVec
	RequestLatency  *prometheus.HistogramVec
	RateLimited     *prometheus.CounterVec
	WindowRequests  *prometheus.GaugeVec
	PagesFetched    *prometheus.CounterVec
	RecordsFetched  *prometheus.GaugeVec
	AssetsSaved     prometheus.Counter
	AssetsFailed    prometheus.Counter
	LastRunSuccess  prometheus.Gauge
	LastRunDuration prometheus.Gauge
}

// New creates all collectors on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dragos_portal_requests_total",
				Help: "Portal API requests by kind and outcome",
			},
			[]string{"kind", "outcome"}, // kind: json, binary; outcome: ok, upstream_error, transport_error, rate_limited
		),

		RequestLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dragos_portal_request_seconds",
				Help:    "Latency of portal API requests",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),

		RateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dragos_portal_rate_limited_total",
				Help: "Requests rejected by the local rate governor",
			},
			[]string{"window"},
		),

		WindowRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dragos_portal_window_requests",
				Help: "Requests counted in the current quota window",
			},
			[]string{"window"},
		),

		PagesFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dragos_portal_pages_fetched_total",
				Help: "Collection pages fetched by resource",
			},
			[]string{"resource"},
		),

		RecordsFetched: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dragos_portal_records_fetched",
				Help: "Records returned by the last full fetch of each resource",
			},
			[]string{"resource"},
		),

		AssetsSaved: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dragos_portal_assets_saved_total",
				Help: "Report documents written to disk",
			},
		),

		AssetsFailed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dragos_portal_assets_failed_total",
				Help: "Report documents that could not be downloaded",
			},
		),

		LastRunSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dragos_portal_last_run_success_timestamp_seconds",
				Help: "Unix time of the last successful sync",
			},
		),

		LastRunDuration: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dragos_portal_last_run_duration_seconds",
				Help: "Duration of the last sync run",
			},
		),
	}
}

// ObserveRequest records one completed (or failed) HTTP request
func (m *Metrics) ObserveRequest(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(kind, outcome).Inc()
	m.RequestLatency.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveWindows publishes the governor's current window counts
func (m *Metrics) ObserveWindows(minute, week int) {
	if m == nil {
		return
	}
	m.WindowRequests.WithLabelValues("minute").Set(float64(minute))
	m.WindowRequests.WithLabelValues("week").Set(float64(week))
}

// ObserveRateLimited counts a request rejected by the governor
func (m *Metrics) ObserveRateLimited(kind, window string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(window).Inc()
	m.Requests.WithLabelValues(kind, "rate_limited").Inc()
}

// ObservePage counts one collection page
func (m *Metrics) ObservePage(resource string) {
	if m == nil {
		return
	}
	m.PagesFetched.WithLabelValues(resource).Inc()
}

// ObserveRecords sets the size of the last full fetch for a resource
func (m *Metrics) ObserveRecords(resource string, n int) {
	if m == nil {
		return
	}
	m.RecordsFetched.WithLabelValues(resource).Set(float64(n))
}

// ObserveAsset counts a report document download attempt
func (m *Metrics) ObserveAsset(saved bool) {
	if m == nil {
		return
	}
	if saved {
		m.AssetsSaved.Inc()
	} else {
		m.AssetsFailed.Inc()
	}
}

// ObserveRun records a finished sync run
func (m *Metrics) ObserveRun(finished time.Time, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.LastRunSuccess.Set(float64(finished.Unix()))
	m.LastRunDuration.Set(elapsed.Seconds())
}

// WriteTextfile writes all metrics in the node_exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
