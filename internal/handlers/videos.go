package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"video-converter/internal/media"
)

// VideosResponse is the current list.
type VideosResponse struct {
	SourceDir string              `json:"sourceDir"`
	Operation string              `json:"operation,omitempty"`
	Selected  int                 `json:"selected"`
	Videos    []media.VideoRecord `json:"videos"`
}

// ListVideos returns every record in list order.
func (h *Handlers) ListVideos(w http.ResponseWriter, _ *http.Request) {
	videos := h.session.Snapshot()
	resp := VideosResponse{
		SourceDir: h.session.SourceDir(),
		Operation: string(h.session.Busy()),
		Videos:    videos,
	}
	for _, v := range videos {
		if v.Selected {
			resp.Selected++
		}
	}
	writeJSONStatus(w, http.StatusOK, resp)
}

type selectRequest struct {
	Path     string `json:"path"`
	Selected *bool  `json:"selected"`
}

// SelectVideo sets the selection of one record.
func (h *Handlers) SelectVideo(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Path) == "" || req.Selected == nil {
		writeError(w, fmt.Errorf("%w: path and selected are required", errBadRequest))
		return
	}
	if err := h.session.Select(req.Path, *req.Selected); err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]interface{}{"path": req.Path, "selected": *req.Selected})
}

type selectAllRequest struct {
	Selected bool `json:"selected"`
}

// SelectAll sets the selection of every record.
func (h *Handlers) SelectAll(w http.ResponseWriter, r *http.Request) {
	req := selectAllRequest{Selected: true}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	n := h.session.SelectAll(req.Selected)
	writeJSONStatus(w, http.StatusOK, map[string]interface{}{"count": n, "selected": req.Selected})
}
