// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/okian/farmwatch/internal/app"
	"github.com/okian/farmwatch/internal/domain/model"
	"github.com/okian/farmwatch/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Assess scores a reading and schedules an alert when one is needed.
	Assess(ctx context.Context, r model.Reading) (model.Assessment, error)

	// Health reports liveness and reasoner availability.
	Health(ctx context.Context) service.Health
}

// Server wires HTTP routes for the business API.
type Server struct {
	riskHandler    *RiskHandler
	healthHandler  *HealthHandler
	metricsHandler *MetricsHandler
	statsHandler   *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		riskHandler:    NewRiskHandler(deps, logger.Named("api")),
		healthHandler:  NewHealthHandler(deps),
		metricsHandler: NewMetricsHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
	}
}

// Register attaches all HTTP routes to mux. Method patterns make the mux
// answer 405 for other methods.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("POST /calculate-risk", MetricsMiddleware(RecoverMiddleware(s.riskHandler.HandleCalculateRisk), "calculate_risk"))
	mux.HandleFunc("GET /health", MetricsMiddleware(s.healthHandler.HandleHealth, "health"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /metrics", MetricsMiddleware(s.metricsHandler.HandleMetrics, "metrics"))
}

type errorResponse struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Fields  []fieldError `json:"fields,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func writeValidationError(w http.ResponseWriter, err error, fields []fieldError) {
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
		Code:    "validation_error",
		Message: err.Error(),
		Fields:  fields,
	})
}
