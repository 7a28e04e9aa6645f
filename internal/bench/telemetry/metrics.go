package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Process-global metrics. No per-run labels, so cardinality stays fixed.
var (
	iterationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "collbench_iterations_total",
		Help: "Total timed iterations executed by local workers",
	})
	samplesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "collbench_samples_total",
		Help: "Total latency samples merged into distributions",
	})
	barrierWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "collbench_barrier_wait_seconds",
		Help:    "Time spent blocked in the group barrier",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
	})
	groupSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "collbench_group_size",
		Help: "Process-group size of the current run",
	})
)

func init() {
	// Register eagerly. If no metrics endpoint is exposed, the
	// registration is harmless.
	prometheus.MustRegister(iterationsTotal, samplesTotal, barrierWaitSeconds, groupSize)
}

// ObserveIterations records completed timed iterations.
func ObserveIterations(n int) {
	if n > 0 {
		iterationsTotal.Add(float64(n))
	}
}

// ObserveSamples records samples merged into a distribution.
func ObserveSamples(n int) {
	if n > 0 {
		samplesTotal.Add(float64(n))
	}
}

// ObserveBarrierWait records one barrier round's blocking time.
func ObserveBarrierWait(d time.Duration) {
	barrierWaitSeconds.Observe(d.Seconds())
}

// SetGroupSize records the group population after rendezvous.
func SetGroupSize(n int) {
	groupSize.Set(float64(n))
}

// StartMetricsEndpoint exposes /metrics on addr in a background
// goroutine. Best-effort: a benchmark run does not fail because its
// metrics endpoint cannot bind.
func StartMetricsEndpoint(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}
