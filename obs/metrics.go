package obs

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	rowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pl",
			Subsystem: "poster",
			Name:      "rows_total",
			Help:      "Listing rows finished, by platform and terminal status.",
		},
		[]string{"platform", "status"},
	)
	rowDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pl",
			Subsystem: "poster",
			Name:      "row_duration_seconds",
			Help:      "Wall time from row start to terminal status.",
			Buckets:   []float64{5, 10, 20, 40, 80, 160, 320, 640, 1280},
		},
		[]string{"platform"},
	)
	stepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pl",
			Subsystem: "poster",
			Name:      "steps_total",
			Help:      "Step events emitted, by platform and label.",
		},
		[]string{"platform", "label"},
	)
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pl",
			Subsystem: "orchestrator",
			Name:      "jobs_total",
			Help:      "Jobs finished, by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(rowsTotal, rowDuration, stepsTotal, jobsTotal)
}

func ObserveRow(platform, status string, duration time.Duration) {
	rowsTotal.WithLabelValues(platform, status).Inc()
	rowDuration.WithLabelValues(platform).Observe(duration.Seconds())
}

func CountStep(platform, label string) {
	stepsTotal.WithLabelValues(platform, label).Inc()
}

func CountJob(outcome string) {
	jobsTotal.WithLabelValues(outcome).Inc()
}

// Serve exposes /metrics on addr; no-op when addr is empty.
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("metrics server: %v", err)
		}
	}()
}
