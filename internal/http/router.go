package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/pasture-weather-service/internal/observability"
)

// RouterConfig configures NewRouter. Zero RequestTimeout and nil RateLimiter disable those middlewares.
type RouterConfig struct {
	Logger         *zap.Logger
	RequestTimeout time.Duration
	RateLimiter    *rate.Limiter
}

// NewRouter wires every route. Rate limiting and the request timeout apply to /simulations only.
func NewRouter(h *Handler, rc RouterConfig) *mux.Router {
	r := mux.NewRouter()
	r.Use(CorrelationIDMiddleware(rc.Logger), MetricsMiddleware)

	r.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	r.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	r.HandleFunc("/climate-types", h.GetClimateTypes).Methods(http.MethodGet)

	sims := r.PathPrefix("/simulations").Subrouter()
	sims.Use(RateLimitMiddleware(rc.RateLimiter), TimeoutMiddleware(rc.RequestTimeout))
	sims.HandleFunc("", h.PostSimulation).Methods(http.MethodPost)
	sims.HandleFunc("/schedule", h.PostSchedule).Methods(http.MethodPost)
	sims.HandleFunc("/biomass-payload", h.PostBiomassPayload).Methods(http.MethodPost)
	sims.HandleFunc("/presets", h.ListPresets).Methods(http.MethodGet)
	sims.HandleFunc("/presets/{name}", h.GetPreset).Methods(http.MethodGet)
	return r
}
