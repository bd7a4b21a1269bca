package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/pasture-weather-service/internal/biomass"
	"github.com/kjstillabower/pasture-weather-service/internal/lifecycle"
	"github.com/kjstillabower/pasture-weather-service/internal/models"
	"github.com/kjstillabower/pasture-weather-service/internal/observability"
	"github.com/kjstillabower/pasture-weather-service/internal/service"
	"github.com/kjstillabower/pasture-weather-service/internal/traffic"
	"github.com/kjstillabower/pasture-weather-service/internal/validation"
	"github.com/kjstillabower/pasture-weather-service/internal/weathergen"
)

// maxBodyBytes bounds request bodies; the largest valid request is a few KB.
const maxBodyBytes = 1 << 20

// HealthConfig holds what /health needs beyond the lifecycle phase.
type HealthConfig struct {
	Thresholds traffic.Thresholds
	StartTime  time.Time
	// CachePing, when set, reports cache reachability. Used when backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	simulations      *service.SimulationService
	limits           validation.Limits
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. healthConfig may be nil to report only the lifecycle phase.
func NewHandler(simulations *service.SimulationService, limits validation.Limits, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		simulations:  simulations,
		limits:       limits,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetClimateTypes handles GET /climate-types: the selectable climates with labels and base profiles.
func (h *Handler) GetClimateTypes(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, http.StatusOK, map[string]any{
		"climateTypes":     weathergen.Catalogue(),
		"transitionWindow": h.simulations.TransitionWindow(),
	})
}

// PostSimulation handles POST /simulations. ?view=columns returns parallel arrays instead of records.
func (h *Handler) PostSimulation(w http.ResponseWriter, r *http.Request) {
	cfg, seed, ok := h.decodeSimulation(w, r)
	if !ok {
		return
	}
	result, err := h.simulations.Simulate(r.Context(), cfg, seed)
	if err != nil {
		h.writeGenerationError(w, r, err)
		return
	}
	traffic.RecordGenerated()
	h.writeSimulation(w, r, result)
}

// PostSchedule handles POST /simulations/schedule: boundaries and horizon without weather.
func (h *Handler) PostSchedule(w http.ResponseWriter, r *http.Request) {
	cfg, _, ok := h.decodeSimulation(w, r)
	if !ok {
		return
	}
	result, err := h.simulations.Schedule(cfg)
	if err != nil {
		h.writeGenerationError(w, r, err)
		return
	}
	traffic.RecordGenerated()
	writeResponse(w, r, http.StatusOK, result)
}

// PostBiomassPayload handles POST /simulations/biomass-payload: the bare ordered day array
// the grass-growth model takes as its request body.
func (h *Handler) PostBiomassPayload(w http.ResponseWriter, r *http.Request) {
	cfg, seed, ok := h.decodeSimulation(w, r)
	if !ok {
		return
	}
	result, err := h.simulations.Simulate(r.Context(), cfg, seed)
	if err != nil {
		h.writeGenerationError(w, r, err)
		return
	}
	traffic.RecordGenerated()
	w.Header().Set("X-Simulation-Seed", fmt.Sprint(result.Seed))
	writeResponse(w, r, http.StatusOK, biomass.Payload(result.Records))
}

// ListPresets handles GET /simulations/presets.
func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, http.StatusOK, map[string]any{"presets": h.simulations.PresetNames()})
}

// GetPreset handles GET /simulations/presets/{name}.
func (h *Handler) GetPreset(w http.ResponseWriter, r *http.Request) {
	name, err := validation.ValidatePresetName(mux.Vars(r)["name"], h.limits.MaxPresetLength)
	if err != nil {
		traffic.RecordRejected()
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	result, err := h.simulations.Preset(r.Context(), name)
	if err != nil {
		h.writeGenerationError(w, r, err)
		return
	}
	traffic.RecordGenerated()
	h.writeSimulation(w, r, result)
}

// columnsResponse is the ?view=columns form of a simulation.
type columnsResponse struct {
	SimulationID string                       `json:"simulationId"`
	Seed         uint64                       `json:"seed"`
	TotalDays    int                          `json:"totalDays"`
	Boundaries   []weathergen.SegmentBoundary `json:"boundaries"`
	Columns      weathergen.Columns           `json:"columns"`
	Summary      weathergen.Summary           `json:"summary"`
	Cached       bool                         `json:"cached,omitempty"`
}

func (h *Handler) writeSimulation(w http.ResponseWriter, r *http.Request, result models.SimulationResult) {
	if r.URL.Query().Get("view") != "columns" {
		writeResponse(w, r, http.StatusOK, result)
		return
	}
	series := weathergen.Series{Records: result.Records, Boundaries: result.Boundaries}
	writeResponse(w, r, http.StatusOK, columnsResponse{
		SimulationID: result.SimulationID,
		Seed:         result.Seed,
		TotalDays:    result.TotalDays,
		Boundaries:   result.Boundaries,
		Columns:      series.Columns(),
		Summary:      result.Summary,
		Cached:       result.Cached,
	})
}

// decodeSimulation reads and validates the request body. On failure it has already
// written the 400 response and recorded the rejection.
func (h *Handler) decodeSimulation(w http.ResponseWriter, r *http.Request) (weathergen.SimulationConfig, *uint64, bool) {
	var req models.SimulationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		traffic.RecordRejected()
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "request body must be a simulation object: "+err.Error())
		return weathergen.SimulationConfig{}, nil, false
	}
	cfg, err := validation.ValidateSimulation(req, h.limits)
	if err != nil {
		h.writeGenerationError(w, r, err)
		return weathergen.SimulationConfig{}, nil, false
	}
	return cfg, req.Seed, true
}

// writeGenerationError maps err onto the error envelope and records the outcome:
// client errors count as rejected, everything else as failed.
func (h *Handler) writeGenerationError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classifyError(err)
	logger := observability.LoggerFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		traffic.RecordFailed()
		logger.Error("simulation failed", zap.Error(err))
		writeError(w, r, status, code, "Unable to generate weather series")
		return
	}
	traffic.RecordRejected()
	logger.Debug("simulation rejected", zap.String("code", code), zap.Error(err))
	writeError(w, r, status, code, err.Error())
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, weathergen.ErrUnknownClimateType):
		return http.StatusBadRequest, "UNKNOWN_CLIMATE_TYPE"
	case errors.Is(err, weathergen.ErrInvalidSegmentLength):
		return http.StatusBadRequest, "INVALID_SEGMENT_LENGTH"
	case errors.Is(err, weathergen.ErrNoSegments),
		errors.Is(err, validation.ErrTooManySegments),
		errors.Is(err, validation.ErrHorizonTooLong),
		errors.Is(err, validation.ErrAltitudeOutOfRange),
		errors.Is(err, validation.ErrRandomnessOutOfRange):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, service.ErrPresetNotFound):
		return http.StatusNotFound, "PRESET_NOT_FOUND"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "GENERATION_FAILED"
	}
	return http.StatusInternalServerError, "GENERATION_FAILED"
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	if prev := h.healthStatusPrev; prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"generator": "healthy"}
	if result.status == string(traffic.Degraded) {
		checks["generator"] = "unhealthy"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		checks["cache"] = "healthy"
		if h.healthConfig.CachePing() != nil {
			checks["cache"] = "unhealthy"
		}
	}
	writeJSON(w, result.statusCode, map[string]any{
		"status":    result.status,
		"service":   "pasture-weather-service",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus decides in order: shutting-down > starting > overloaded > idle > degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	switch lifecycle.Current() {
	case lifecycle.Draining:
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	case lifecycle.Starting:
		return healthResult{"starting", http.StatusServiceUnavailable, "warming"}
	}
	if h.healthConfig == nil {
		return healthResult{string(traffic.Healthy), http.StatusOK, ""}
	}
	a := traffic.Default().Assess(h.healthConfig.Thresholds, time.Since(h.healthConfig.StartTime))
	switch a.Condition {
	case traffic.Overloaded, traffic.Degraded:
		return healthResult{string(a.Condition), http.StatusServiceUnavailable, a.Reason}
	default:
		return healthResult{string(a.Condition), http.StatusOK, a.Reason}
	}
}
