// Package metrics holds the Prometheus collectors of the learning service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "edtech"

var (
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// IndexBuildDuration observes full index rebuilds.
	IndexBuildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "index_build_duration_seconds",
		Help:      "Time spent building the term-weight index",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	})

	// CatalogItems is the number of items in the serving index.
	CatalogItems = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "catalog_items",
		Help:      "Catalog items in the serving index",
	})

	// VocabularySize is the number of terms in the serving index.
	VocabularySize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "index_vocabulary_terms",
		Help:      "Terms in the serving index vocabulary",
	})

	// RecommendationsTotal counts recommendation queries by outcome.
	RecommendationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recommendations_total",
		Help:      "Recommendation queries by outcome",
	}, []string{"outcome"})

	// TutorRequestsTotal counts tutor generations by provider and outcome.
	TutorRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tutor_requests_total",
		Help:      "Tutor answers by provider and outcome",
	}, []string{"provider", "outcome"})

	// SentimentRequestsTotal counts feedback classifications by provider and outcome.
	SentimentRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sentiment_requests_total",
		Help:      "Feedback sentiment classifications by provider and outcome",
	}, []string{"provider", "outcome"})
)

func init() {
	prometheus.MustRegister(
		httpRequestDuration,
		httpRequestsTotal,
		IndexBuildDuration,
		CatalogItems,
		VocabularySize,
		RecommendationsTotal,
		TutorRequestsTotal,
		SentimentRequestsTotal,
	)
}

// Middleware records HTTP request duration and count.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			status := strconv.Itoa(ww.status)
			path := "unknown"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				path = rctx.RoutePattern()
			}

			httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		})
	}
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b)
}
