package httpadapter

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/kirillkom/document-verifier/internal/config"
	"github.com/kirillkom/document-verifier/internal/core/domain"
	"github.com/kirillkom/document-verifier/internal/core/ports"
	"github.com/kirillkom/document-verifier/internal/observability/metrics"
)

const defaultMaxRequestBytes = 12 << 20

// SpreadsheetExporter renders field records as a downloadable workbook.
type SpreadsheetExporter interface {
	Write(w io.Writer, records []domain.FieldRecord) error
	ContentType() string
}

// BreakerStates reports circuit breaker state per collaborator operation.
type BreakerStates interface {
	States() map[string]string
}

type Router struct {
	svc      ports.ExtractionService
	exporter SpreadsheetExporter
	metrics  *metrics.HTTPServerMetrics
	breakers BreakerStates
	cfg      config.Config
	now      func() time.Time
}

func NewRouter(
	cfg config.Config,
	svc ports.ExtractionService,
	exporter SpreadsheetExporter,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = defaultMaxRequestBytes
	}
	return &Router{
		svc:      svc,
		exporter: exporter,
		metrics:  httpMetrics,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithBreakers adds breaker states to the health response.
func (rt *Router) WithBreakers(breakers BreakerStates) *Router {
	rt.breakers = breakers
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/sessions", rt.createSession)
	mux.HandleFunc("GET /v1/sessions/{id}", rt.getSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", rt.deleteSession)
	mux.HandleFunc("PUT /v1/sessions/{id}/form", rt.updateForm)
	mux.HandleFunc("POST /v1/sessions/{id}/file", rt.selectFile)
	mux.HandleFunc("GET /v1/sessions/{id}/file", rt.previewFile)
	mux.HandleFunc("POST /v1/sessions/{id}/submit", rt.submit)
	mux.HandleFunc("POST /v1/sessions/{id}/reset", rt.reset)
	mux.HandleFunc("POST /v1/sessions/{id}/copy", rt.copyResult)
	mux.HandleFunc("GET /v1/sessions/{id}/export", rt.export)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIBackpressureMaxInFlight, rt.cfg.APIBackpressureWaitTimeout)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

type healthResponse struct {
	Status   string            `json:"status"`
	Breakers map[string]string `json:"breakers,omitempty"`
}

// healthz stays 200 while breakers are open.
func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if rt.breakers != nil {
		resp.Breakers = rt.breakers.States()
		for _, state := range resp.Breakers {
			if state != "closed" {
				resp.Status = "degraded"
				break
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
