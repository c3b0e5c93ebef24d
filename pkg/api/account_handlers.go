package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/creditmeter/pkg/httputil"
	"github.com/platinummonkey/creditmeter/pkg/middleware"
)

// AccountHandlers serves the current user
type AccountHandlers struct {
	s *Server
}

// NewAccountHandlers creates a new AccountHandlers
func NewAccountHandlers(s *Server) *AccountHandlers {
	return &AccountHandlers{s: s}
}

// RegisterRoutes registers account routes
func (h *AccountHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/me", h.Me).Methods(http.MethodGet)
}

// Me returns the caller with subscription status
func (h *AccountHandlers) Me(w http.ResponseWriter, r *http.Request) {
	view, err := h.s.deps.Users.View(r.Context(), middleware.UserID(r))
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, view)
}
