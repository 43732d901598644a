package handlers

import (
	"net/http"

	"video-converter/internal/logging"
	"video-converter/internal/settings"
)

type scanRequest struct {
	SourceDir string `json:"sourceDir"`
}

// StartScan starts a scan of the requested or configured source folder.
func (h *Handlers) StartScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	dir := req.SourceDir
	if dir == "" {
		dir = h.Settings().Paths.SourceDir
	} else {
		dir = settings.ExpandPath(dir)
	}

	if _, err := h.session.StartScan(h.baseCtx, dir); err != nil {
		writeError(w, err)
		return
	}

	h.settingsMu.Lock()
	h.settings.Paths.SourceDir = dir
	h.settingsMu.Unlock()

	logging.Info("Scan of %s started", dir)
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "scanning", "sourceDir": dir})
}

type convertRequest struct {
	OutputDir string `json:"outputDir"`
}

// StartConvert converts the selected records.
func (h *Handlers) StartConvert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	dir := req.OutputDir
	if dir == "" {
		dir = h.Settings().Paths.OutputDir
	} else {
		dir = settings.ExpandPath(dir)
	}

	if _, err := h.session.StartConvert(h.baseCtx, dir); err != nil {
		writeError(w, err)
		return
	}

	h.settingsMu.Lock()
	h.settings.Paths.OutputDir = dir
	h.settingsMu.Unlock()

	writeJSONStatus(w, http.StatusAccepted, map[string]interface{}{
		"status":    "converting",
		"outputDir": dir,
		"files":     len(h.session.Selected()),
	})
}

// Cancel stops the running scan or conversion.
func (h *Handlers) Cancel(w http.ResponseWriter, _ *http.Request) {
	op := h.session.Busy()
	cancelled := h.session.Cancel()
	writeJSONStatus(w, http.StatusOK, map[string]interface{}{"cancelled": cancelled, "operation": string(op)})
}

// GetLog returns the visible log, oldest first.
func (h *Handlers) GetLog(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatus(w, http.StatusOK, map[string]interface{}{"lines": h.logs.Lines()})
}

// GetSettings returns the effective settings.
func (h *Handlers) GetSettings(w http.ResponseWriter, _ *http.Request) {
	s := h.Settings()
	data, err := s.Encode()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/toml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logging.Debug("failed to write settings: %v", err)
	}
}
