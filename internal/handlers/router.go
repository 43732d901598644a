package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"video-converter/internal/middleware"
)

// RouterConfig controls the optional parts of the router.
type RouterConfig struct {
	MetricsEnabled  bool
	LogHealthChecks bool
}

// Router builds the control API with request metrics and access logging.
func (h *Handlers) Router(config RouterConfig) *mux.Router {
	r := mux.NewRouter()

	// Health and version endpoints
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	if config.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	// API routes are registered on r itself; a subrouter would answer a
	// wrong method with the root 404 instead of 405.
	r.HandleFunc("/api/videos", h.ListVideos).Methods("GET")
	r.HandleFunc("/api/videos/select", h.SelectVideo).Methods("PUT")
	r.HandleFunc("/api/videos/select-all", h.SelectAll).Methods("POST")
	r.HandleFunc("/api/scan", h.StartScan).Methods("POST")
	r.HandleFunc("/api/convert", h.StartConvert).Methods("POST")
	r.HandleFunc("/api/cancel", h.Cancel).Methods("POST")
	r.HandleFunc("/api/log", h.GetLog).Methods("GET")
	r.HandleFunc("/api/settings", h.GetSettings).Methods("GET")
	r.HandleFunc("/api/history", h.ListHistory).Methods("GET")
	r.HandleFunc("/api/history/{id}", h.GetRun).Methods("GET")
	r.Handle("/api/events", h.hub).Methods("GET")

	logCfg := middleware.DefaultLoggingConfig()
	logCfg.LogHealthChecks = config.LogHealthChecks
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()), middleware.Logger(logCfg))

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	return r
}
