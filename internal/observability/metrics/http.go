package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/document-verifier/internal/core/domain"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	stageDuration   *prometheus.HistogramVec
	stageErrors     *prometheus.CounterVec
	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	routingTotal    *prometheus.CounterVec
	clarityScore    prometheus.Histogram
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docverify",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docverify",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docverify",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docverify",
			Subsystem: "extraction",
			Name:      "stage_duration_seconds",
			Help:      "Duration of upload, analysis and preview stages.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"service", "stage"},
	)
	stageErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docverify",
			Subsystem: "extraction",
			Name:      "stage_errors_total",
			Help:      "Failed extraction stages.",
		},
		[]string{"service", "stage"},
	)
	attemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docverify",
			Subsystem: "extraction",
			Name:      "attempts_total",
			Help:      "Finished extraction attempts by outcome and failure kind.",
		},
		[]string{"service", "outcome", "failure_kind"},
	)
	attemptDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docverify",
			Subsystem: "extraction",
			Name:      "attempt_duration_seconds",
			Help:      "End-to-end extraction attempt duration.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"service", "outcome"},
	)
	routingTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docverify",
			Subsystem: "extraction",
			Name:      "routing_decisions_total",
			Help:      "Routing decisions returned by the agent.",
		},
		[]string{"service", "decision"},
	)
	clarityScore := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docverify",
			Subsystem: "extraction",
			Name:      "clarity_score",
			Help:      "Distribution of reported document clarity scores.",
			Buckets:   []float64{20, 40, 60, 70, 80, 85, 90, 95, 100},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		stageDuration,
		stageErrors,
		attemptsTotal,
		attemptDuration,
		routingTotal,
		clarityScore,
	)

	return &HTTPServerMetrics{
		registry:        registry,
		service:         service,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		stageDuration:   stageDuration,
		stageErrors:     stageErrors,
		attemptsTotal:   attemptsTotal,
		attemptDuration: attemptDuration,
		routingTotal:    routingTotal,
		clarityScore:    clarityScore,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses session ids so label cardinality stays bounded.
func normalizePath(path string) string {
	const prefix = "/v1/sessions/"
	if !strings.HasPrefix(path, prefix) {
		return path
	}
	rest := strings.TrimPrefix(path, prefix)
	if idx := strings.Index(rest, "/"); idx >= 0 {
		return prefix + "{session_id}" + rest[idx:]
	}
	return prefix + "{session_id}"
}

func (m *HTTPServerMetrics) ObserveStage(stage string, duration time.Duration, err error) {
	if stage == "" {
		stage = "unknown"
	}
	m.stageDuration.WithLabelValues(m.service, stage).Observe(duration.Seconds())
	if err != nil {
		m.stageErrors.WithLabelValues(m.service, stage).Inc()
	}
}

func (m *HTTPServerMetrics) ObserveOutcome(event domain.ExtractionEvent) {
	m.attemptsTotal.WithLabelValues(m.service, string(event.Outcome), string(event.FailureKind)).Inc()
	m.attemptDuration.WithLabelValues(m.service, string(event.Outcome)).Observe(event.Duration.Seconds())
	if event.Outcome != domain.OutcomeResultReady {
		return
	}

	decision := string(event.RoutingDecision)
	if decision == "" {
		decision = "unknown"
	}
	m.routingTotal.WithLabelValues(m.service, decision).Inc()
	m.clarityScore.Observe(event.ClarityScore)
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
