// Package metrics exposes collector counters in the Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "twdataset_api_requests_total",
		Help: "API requests by endpoint and outcome",
	}, []string{"endpoint", "outcome"})
	APIRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "twdataset_api_request_duration_seconds",
		Help:    "API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
	PostsFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "twdataset_posts_fetched_total",
		Help: "Posts kept after sensitive filtering",
	}, []string{"topic"})
	Enrichment = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "twdataset_enrichment_total",
		Help: "Enrichment outcomes by stage and status",
	}, []string{"stage", "status"})
	SnapshotsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "twdataset_snapshots_written_total",
		Help: "Engagement snapshot files written",
	}, []string{"topic"})
	WindowSleep = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "twdataset_window_sleep_seconds",
		Help:    "Time slept waiting for a quota window to reset",
		Buckets: []float64{1, 10, 60, 300, 600, 900, 1800, 3600},
	})
	CycleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "twdataset_cycle_duration_seconds",
		Help:    "Duration of initial fetch and refresh cycles including sleeps",
		Buckets: []float64{60, 300, 900, 1800, 3600, 7200, 14400},
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(APIRequests, APIRequestDuration, PostsFetched, Enrichment,
		SnapshotsWritten, WindowSleep, CycleDuration)
}

// Handler returns a mux serving /metrics and /health
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return mux
}

// StartServer starts a metrics HTTP server on addr (e.g. ":9090") and returns
// it so the caller can shut it down. Nothing is started for an empty addr.
func StartServer(addr string, onError func(error)) *http.Server {
	if addr == "" {
		return nil
	}
	srv := &http.Server{Addr: addr, Handler: Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed && onError != nil {
			onError(err)
		}
	}()
	return srv
}

// ObserveRequest records one API call
func ObserveRequest(endpoint, outcome string, d time.Duration) {
	APIRequests.WithLabelValues(endpoint, outcome).Inc()
	APIRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveCycle records the length of a scheduler cycle, sleeps included
func ObserveCycle(kind string, d time.Duration) {
	CycleDuration.WithLabelValues(kind).Observe(d.Seconds())
}
