package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tokenRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_requests_total",
			Help: "Token endpoint requests by realm, grant type and outcome",
		},
		[]string{"realm", "grant_type", "outcome"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// MetricsMiddleware records request durations. The route label is the registered mux pattern
// so realm ids and client ids never become label values.
func (s *Server) MetricsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := newStatusRecorder(w)
		next(wrapped, r)

		httpRequestDuration.
			WithLabelValues(r.Method, r.Pattern, strconv.Itoa(wrapped.statusCode)).
			Observe(time.Since(start).Seconds())
	}
}

// observeToken counts a token endpoint outcome; outcome is "success" or the OAuth error code.
func observeToken(realmID, grantType, outcome string) {
	if grantType == "" {
		grantType = "none"
	}
	tokenRequestsTotal.WithLabelValues(realmID, grantType, outcome).Inc()
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
