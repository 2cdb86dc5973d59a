package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	service "github.com/okian/farmwatch/internal/app"
	"github.com/okian/farmwatch/pkg/metrics"
)

// HealthChecker reports service health.
type HealthChecker interface {
	Health(ctx context.Context) service.Health
}

type healthResponse struct {
	Status            string `json:"status"`
	ReasonerAvailable bool   `json:"reasoner_available"`
	Timestamp         string `json:"timestamp"`
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	checker HealthChecker
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// HandleHealth handles GET /health requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	hs := h.checker.Health(r.Context())
	writeJSON(w, http.StatusOK, healthResponse{
		Status:            hs.Status,
		ReasonerAvailable: hs.ReasonerAvailable,
		Timestamp:         hs.Timestamp.UTC().Format(time.RFC3339),
	})
}

// MetricsHandler serves the Prometheus registry.
type MetricsHandler struct {
	handler http.Handler
}

// NewMetricsHandler creates a handler bound to the custom metrics registry.
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{
		handler: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleMetrics handles GET /metrics requests.
func (h *MetricsHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}
