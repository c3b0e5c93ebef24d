package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/creditmeter/pkg/httputil"
	"github.com/platinummonkey/creditmeter/pkg/middleware"
)

// ProjectHandlers handles project requests
type ProjectHandlers struct {
	s *Server
}

// NewProjectHandlers creates a new ProjectHandlers
func NewProjectHandlers(s *Server) *ProjectHandlers {
	return &ProjectHandlers{s: s}
}

// RegisterRoutes registers project routes
func (h *ProjectHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/projects", h.List).Methods(http.MethodGet)
	router.HandleFunc("/projects", h.Create).Methods(http.MethodPost)
}

// List returns the caller's projects with usage totals
func (h *ProjectHandlers) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.s.deps.Projects.ListWithStats(r.Context(), middleware.UserID(r))
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, list)
}

// Create adds a project for the caller
func (h *ProjectHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	p, err := h.s.deps.Projects.Create(r.Context(), middleware.UserID(r), req.Name)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, p)
}
