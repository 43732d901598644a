package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"video-converter/internal/history"
)

// HistoryResponse lists past runs.
type HistoryResponse struct {
	Runs []history.Run `json:"runs"`
}

// RunResponse is one run and its items.
type RunResponse struct {
	Run   history.Run    `json:"run"`
	Items []history.Item `json:"items"`
}

// ListHistory returns recent runs, newest first.
func (h *Handlers) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSONError(w, "history is not enabled", http.StatusServiceUnavailable)
		return
	}

	limit := history.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.history.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, HistoryResponse{Runs: runs})
}

// GetRun returns one run with its per-file items.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSONError(w, "history is not enabled", http.StatusServiceUnavailable)
		return
	}

	id := mux.Vars(r)["id"]
	items, err := h.history.ListItems(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	run, err := h.history.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, RunResponse{Run: run, Items: items})
}
