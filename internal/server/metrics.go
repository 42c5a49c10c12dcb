package server

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mirrors the deleted root metrics.go's ConnState-counting idea
// one layer up: instead of hooking http.Server.ConnState (which went
// away with the Garcon generation), requests and render latency are
// counted from dispatcher middleware.
type Metrics struct {
	Registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the counters under namespace on a fresh
// registry (rather than the global DefaultRegisterer), so building more
// than one Server in a process — every test in this package does —
// never collides on a duplicate collector registration.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total HTTP requests handled, by route and status class.",
		}, []string{"route", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time spent producing a response, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Instrument wraps next, recording its status class and latency under
// routeLabel (a low-cardinality label, e.g. "image" or "info").
func (m *Metrics) Instrument(routeLabel string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		m.duration.WithLabelValues(routeLabel).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(routeLabel, statusClass(sw.status)).Inc()
	})
}

// Serve starts a background HTTP server exposing this Metrics'
// registry under /metrics, mirroring pprof.StartServer's "port 0
// disables it" convention.
func (m *Metrics) Serve(port int) {
	if port == 0 {
		return
	}

	addr := "localhost:" + strconv.Itoa(port)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	log.Print("Enable Prometheus endpoint: http://" + addr + "/metrics")

	go func() {
		log.Fatal(http.ListenAndServe(addr, mux))
	}()
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func statusClass(code int) string {
	switch {
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
