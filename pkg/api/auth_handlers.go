package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/creditmeter/pkg/httputil"
)

// AuthHandlers handles signup and login
type AuthHandlers struct {
	s *Server
}

// NewAuthHandlers creates a new AuthHandlers
func NewAuthHandlers(s *Server) *AuthHandlers {
	return &AuthHandlers{s: s}
}

// RegisterRoutes registers auth routes on a router mounted at /api/auth
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/signup", h.Signup).Methods(http.MethodPost)
	router.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	router.HandleFunc("/google", h.GoogleLogin).Methods(http.MethodPost)
}

// Signup creates an account and returns a session token
func (h *AuthHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "email and password are required")
		return
	}

	res, err := h.s.deps.Identity.Signup(r.Context(), req.Email, req.Password, strings.TrimSpace(req.Name))
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, res)
}

// Login exchanges email and password for a session token
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "email and password are required")
		return
	}

	res, err := h.s.deps.Identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, res)
}

// GoogleLogin exchanges a Google ID token for a session token
func (h *AuthHandlers) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req GoogleLoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Token, "token") {
		return
	}

	res, err := h.s.deps.Identity.GoogleLogin(r.Context(), req.Token)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, res)
}
