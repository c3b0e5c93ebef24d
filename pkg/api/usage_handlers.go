package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/creditmeter/pkg/httputil"
	"github.com/platinummonkey/creditmeter/pkg/middleware"
	"github.com/platinummonkey/creditmeter/pkg/usage"
)

// UsageHandlers serves usage reads and records usage events
type UsageHandlers struct {
	s   *Server
	now func() time.Time
}

// NewUsageHandlers creates a new UsageHandlers
func NewUsageHandlers(s *Server) *UsageHandlers {
	return &UsageHandlers{s: s, now: time.Now}
}

// RegisterRoutes registers usage routes
func (h *UsageHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/usage", h.Summary).Methods(http.MethodGet)
	router.HandleFunc("/usage/daily", h.Daily).Methods(http.MethodGet)
	router.HandleFunc("/usage/events", h.ListEvents).Methods(http.MethodGet)
	router.HandleFunc("/usage/events", h.RecordEvent).Methods(http.MethodPost)
}

// Summary returns the usage dashboard
func (h *UsageHandlers) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.s.deps.Usage.Summary(r.Context(), middleware.UserID(r))
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, summary)
}

// Daily returns the trailing daily series for ?window=7|30
func (h *UsageHandlers) Daily(w http.ResponseWriter, r *http.Request) {
	days, err := httputil.ParseQueryInt(r, "window", int(usage.Window7))
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	window, err := usage.ParseWindow(days)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}

	series, err := usage.Collect(h.s.deps.Usage.DailySeries(r.Context(), middleware.UserID(r), window))
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, DailyUsageResponse{
		Window: int(window),
		Start:  window.Start(h.now()),
		Days:   series,
	})
}

// ListEvents returns recent usage events, newest first
func (h *UsageHandlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	events, err := h.s.deps.Ledger.List(r.Context(), middleware.UserID(r), limit)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, events)
}

// RecordEvent appends a usage event to one of the caller's projects
func (h *UsageHandlers) RecordEvent(w http.ResponseWriter, r *http.Request) {
	var req RecordUsageRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.ProjectID, "projectId") {
		return
	}

	ev, err := h.s.deps.Ledger.Record(r.Context(), middleware.UserID(r), req.ProjectID, req.Credits, req.Type, req.Metadata)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, ev)
}
