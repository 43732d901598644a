package handlers

import (
	"net/http"
	"runtime"
	"time"

	"video-converter/internal/startup"
)

const statusHealthy = "healthy"

// HealthResponse contains the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Operation string `json:"operation,omitempty"`
	Records   int    `json:"records"`

	// Bus state
	QueuedEvents  int    `json:"queuedEvents"`
	DroppedEvents uint64 `json:"droppedEvents"`
	StreamClients int    `json:"streamClients"`

	Resources *ResourceHealth `json:"resources,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// ResourceHealth is the resource monitor's most recent reading.
type ResourceHealth struct {
	HeapBytes     uint64  `json:"heapBytes"`
	ResidentBytes uint64  `json:"residentBytes"`
	CPU           float64 `json:"cpu"`
	// Usage is heap as a fraction of the memory limit, 0 without one.
	Usage  float64 `json:"usage"`
	Paused bool    `json:"paused"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status:        statusHealthy,
		Version:       startup.Version,
		Uptime:        time.Since(h.started).Round(time.Second).String(),
		StreamClients: h.hub.Len(),
		GoVersion:     runtime.Version(),
		NumCPU:        runtime.NumCPU(),
		NumGoroutine:  runtime.NumGoroutine(),
	}
	if h.session != nil {
		response.Operation = string(h.session.Busy())
		response.Records = h.session.Len()
	}
	if h.bus != nil {
		response.QueuedEvents = h.bus.Len()
		response.DroppedEvents = h.bus.Dropped()
	}
	if h.monitor != nil {
		sample := h.monitor.LastSample()
		response.Resources = &ResourceHealth{
			HeapBytes:     sample.HeapBytes,
			ResidentBytes: sample.ResidentBytes,
			CPU:           sample.CPU,
			Usage:         h.monitor.GetUsage(),
			Paused:        h.monitor.IsPaused(),
		}
	}

	writeJSONStatus(w, http.StatusOK, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}
