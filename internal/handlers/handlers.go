package handlers

import (
	"context"
	"sync"
	"time"

	"video-converter/internal/events"
	"video-converter/internal/history"
	"video-converter/internal/memory"
	"video-converter/internal/session"
	"video-converter/internal/settings"
)

// Options wires the handlers to the running application.
type Options struct {
	Session  *session.Session
	Bus      *events.Bus
	Logs     *events.LogBuffer
	History  *history.Store  // optional
	Monitor  *memory.Monitor // optional
	Settings *settings.Settings
	// BaseContext outlives requests; background operations run under it.
	BaseContext context.Context
}

// Handlers serves the control API.
type Handlers struct {
	session *session.Session
	bus     *events.Bus
	logs    *events.LogBuffer
	history *history.Store
	monitor *memory.Monitor
	hub     *Hub
	baseCtx context.Context
	started time.Time

	settingsMu sync.Mutex
	settings   settings.Settings
}

// New creates the handlers. The settings are copied; the last folders used
// are tracked on the copy and returned by Settings.
func New(opts Options) *Handlers {
	h := &Handlers{
		session: opts.Session,
		bus:     opts.Bus,
		logs:    opts.Logs,
		history: opts.History,
		monitor: opts.Monitor,
		hub:     NewHub(),
		baseCtx: opts.BaseContext,
		started: time.Now(),
	}
	if h.baseCtx == nil {
		h.baseCtx = context.Background()
	}
	if h.logs == nil {
		h.logs = events.NewLogBuffer(0)
	}
	if opts.Settings != nil {
		h.settings = *opts.Settings
	} else {
		h.settings = settings.Default()
	}
	return h
}

// Settings returns the settings including the folders used last.
func (h *Handlers) Settings() settings.Settings {
	h.settingsMu.Lock()
	defer h.settingsMu.Unlock()
	return h.settings
}

// Hub returns the event stream hub.
func (h *Handlers) Hub() *Hub {
	return h.hub
}

// HandleEvents is the bus pump callback: it folds each event into the
// session and the visible log, then forwards the batch to stream clients.
func (h *Handlers) HandleEvents(batch []events.Event) {
	for _, e := range batch {
		if h.session != nil {
			h.session.Apply(e)
		}
		if l, ok := e.(events.LogEvent); ok {
			h.logs.Append(l)
		}
	}
	h.hub.Broadcast(batch)
}
