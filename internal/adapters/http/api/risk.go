package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	service "github.com/okian/farmwatch/internal/app"
	"github.com/okian/farmwatch/internal/domain/model"
	"github.com/okian/farmwatch/internal/domain/phone"
	"github.com/okian/farmwatch/pkg/logger"
)

const (
	maxBodyBytes    = 1 << 20
	requestIDHeader = "X-Request-ID"
)

// riskRequest mirrors the OpenAPI schema for POST /calculate-risk. Numbers
// are pointers so a missing field is distinguishable from zero.
type riskRequest struct {
	FarmerID    string   `json:"farmer_id"`
	DHAPercent  *float64 `json:"plasma_dha_pct"`
	MRIVolume   *float64 `json:"mri_volume_norm"`
	PhoneNumber string   `json:"phone_number"`
	VillageName string   `json:"village_name"`
}

func (req riskRequest) validate() []fieldError {
	var fields []fieldError
	if strings.TrimSpace(req.FarmerID) == "" {
		fields = append(fields, fieldError{"farmer_id", "field required"})
	}
	switch {
	case req.DHAPercent == nil:
		fields = append(fields, fieldError{"plasma_dha_pct", "field required"})
	case *req.DHAPercent < model.MinDHAPercent || *req.DHAPercent > model.MaxDHAPercent:
		fields = append(fields, fieldError{"plasma_dha_pct", fmt.Sprintf("must be between %g and %g", model.MinDHAPercent, model.MaxDHAPercent)})
	}
	switch {
	case req.MRIVolume == nil:
		fields = append(fields, fieldError{"mri_volume_norm", "field required"})
	case *req.MRIVolume < model.MinMRIVolume || *req.MRIVolume > model.MaxMRIVolume:
		fields = append(fields, fieldError{"mri_volume_norm", fmt.Sprintf("must be between %g and %g", model.MinMRIVolume, model.MaxMRIVolume)})
	}
	switch {
	case strings.TrimSpace(req.PhoneNumber) == "":
		fields = append(fields, fieldError{"phone_number", "field required"})
	case phone.Digits(req.PhoneNumber) == "":
		fields = append(fields, fieldError{"phone_number", "must contain digits"})
	}
	if strings.TrimSpace(req.VillageName) == "" {
		fields = append(fields, fieldError{"village_name", "field required"})
	}
	return fields
}

func (req riskRequest) reading() model.Reading {
	return model.Reading{
		FarmerID:    req.FarmerID,
		DHAPercent:  *req.DHAPercent,
		MRIVolume:   *req.MRIVolume,
		PhoneNumber: req.PhoneNumber,
		VillageName: req.VillageName,
	}
}

type riskResponse struct {
	FarmerID    string  `json:"farmer_id"`
	RiskScore   float64 `json:"risk_score"`
	Certainty   float64 `json:"certainty"`
	AlertNeeded bool    `json:"alert_needed"`
	SMSSent     bool    `json:"sms_sent"`
	Timestamp   string  `json:"timestamp"`
}

// RiskHandler handles risk assessment requests.
type RiskHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewRiskHandler creates a new risk handler.
func NewRiskHandler(deps Dependencies, l logger.Logger) *RiskHandler {
	return &RiskHandler{deps: deps, logger: l}
}

// HandleCalculateRisk handles POST /calculate-risk requests.
func (h *RiskHandler) HandleCalculateRisk(w http.ResponseWriter, r *http.Request) {
	const op = "api.calculate_risk"

	var req riskRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &typeErr):
			writeValidationError(w, NewKind(op, ErrValidation), []fieldError{
				{Field: typeErr.Field, Message: "must be a " + typeErr.Type.String()},
			})
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("empty body")))
		default:
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		}
		return
	}
	if fields := req.validate(); len(fields) > 0 {
		writeValidationError(w, NewKind(op, ErrValidation), fields)
		return
	}

	a, err := h.deps.Assess(r.Context(), req.reading())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidReading):
			writeValidationError(w, WrapKind(op, ErrValidation, err), nil)
		case errors.Is(err, service.ErrNotStarted):
			writeError(w, http.StatusServiceUnavailable, "unavailable", NewKind(op, ErrUnavailable))
		default:
			h.logger.Error(r.Context(), "risk assessment failed",
				logger.String("farmer_id", req.FarmerID),
				logger.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "internal_error", NewKind(op, ErrInternal))
		}
		return
	}

	w.Header().Set(requestIDHeader, a.RequestID)
	writeJSON(w, http.StatusOK, riskResponse{
		FarmerID:    a.FarmerID,
		RiskScore:   a.RiskScore,
		Certainty:   a.Certainty,
		AlertNeeded: a.AlertNeeded,
		SMSSent:     a.SMSScheduled,
		Timestamp:   a.Timestamp.UTC().Format(time.RFC3339),
	})
}
