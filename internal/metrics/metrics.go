// Package metrics exposes Prometheus collectors for the HTTP surface and the
// assessment engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"dental-quest-service/internal/app"
	"dental-quest-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements app.Recorder on top of its own registry.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	started         *prometheus.CounterVec
	finished        *prometheus.CounterVec
	abandoned       *prometheus.CounterVec
	scores          *prometheus.HistogramVec
	persistFailures prometheus.Counter
}

var _ app.Recorder = (*Metrics)(nil)

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		started: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assessment_attempts_started_total",
				Help: "Attempts started, by assessment kind",
			},
			[]string{"kind"},
		),
		finished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assessment_attempts_finished_total",
				Help: "Attempts finalized, by kind, submit reason and pass state",
			},
			[]string{"kind", "reason", "passed"},
		),
		abandoned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assessment_attempts_abandoned_total",
				Help: "Attempts abandoned before submission",
			},
			[]string{"kind"},
		),
		scores: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assessment_score_percent",
				Help:    "Distribution of final score percentages",
				Buckets: []float64{20, 40, 60, 70, 80, 90, 100},
			},
			[]string{"kind"},
		),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assessment_persist_failures_total",
			Help: "Results whose progress write-back gave up after retries",
		}),
	}
	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.started,
		m.finished,
		m.abandoned,
		m.scores,
		m.persistFailures,
	)
	return m
}

func (m *Metrics) AttemptStarted(kind domain.Kind) {
	m.started.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) AttemptFinished(kind domain.Kind, reason app.SubmitReason, result domain.AssessmentResult) {
	m.finished.WithLabelValues(string(kind), string(reason), strconv.FormatBool(result.Passed)).Inc()
	m.scores.WithLabelValues(string(kind)).Observe(float64(result.ScorePercent))
}

func (m *Metrics) AttemptAbandoned(kind domain.Kind) {
	m.abandoned.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) PersistFailed() {
	m.persistFailures.Inc()
}

// Middleware records request counts and latency keyed by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
