package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"quiz-practice-service/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build routers side by side.
type Metrics struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	attemptsGraded  prometheus.Counter
	attemptAccuracy prometheus.Histogram
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quiz_http_request_duration_seconds",
				Help:    "Duration of HTTP requests by route and status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		attemptsGraded: factory.NewCounter(prometheus.CounterOpts{
			Name: "quiz_attempts_graded_total",
			Help: "Total number of quiz attempts graded",
		}),
		attemptAccuracy: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "quiz_attempt_accuracy_ratio",
			Help:    "Share of correct answers per graded attempt",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}
}

// Handler serves the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// AttemptGraded counts newly persisted attempts.
func (m *Metrics) AttemptGraded(_ context.Context, attempt domain.Attempt) {
	m.attemptsGraded.Inc()
	if attempt.TotalCount > 0 {
		m.attemptAccuracy.Observe(float64(attempt.CorrectCount) / float64(attempt.TotalCount))
	}
}

func (m *Metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
