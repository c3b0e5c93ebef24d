package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/creditmeter/pkg/billing"
	"github.com/platinummonkey/creditmeter/pkg/httputil"
	"github.com/platinummonkey/creditmeter/pkg/middleware"
	"github.com/platinummonkey/creditmeter/pkg/observability"
)

// SubscriptionHandlers handles plan changes and provider callbacks
type SubscriptionHandlers struct {
	s *Server
}

// NewSubscriptionHandlers creates a new SubscriptionHandlers
func NewSubscriptionHandlers(s *Server) *SubscriptionHandlers {
	return &SubscriptionHandlers{s: s}
}

// RegisterRoutes registers the authenticated subscription routes
func (h *SubscriptionHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/plans", h.ListPlans).Methods(http.MethodGet)
	router.HandleFunc("/subscriptions/checkout", h.Checkout).Methods(http.MethodPost)
	router.HandleFunc("/subscriptions/cancel", h.Cancel).Methods(http.MethodPost)
	router.HandleFunc("/subscriptions/session/{id}", h.ConfirmSession).Methods(http.MethodGet)
	router.HandleFunc("/subscriptions/portal", h.Portal).Methods(http.MethodPost)
}

// ListPlans returns the plan catalog
func (h *SubscriptionHandlers) ListPlans(w http.ResponseWriter, r *http.Request) {
	list, err := h.s.deps.Plans.List(r.Context())
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, list)
}

// Checkout starts a paid checkout, or downgrades when the free price is
// requested
func (h *SubscriptionHandlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.PriceID, "priceId") {
		return
	}
	userID := middleware.UserID(r)

	if h.s.deps.Plans.IsFreePrice(req.PriceID) {
		view, err := h.s.deps.Subscriptions.CancelOrDowngradeToFree(r.Context(), userID)
		if err != nil {
			h.s.writeError(w, r, err)
			return
		}
		_ = httputil.WriteSuccess(w, PlanChangeResponse{Success: true, User: view})
		return
	}

	session, err := h.s.deps.Subscriptions.InitiateCheckout(r.Context(), userID, req.PriceID)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, CheckoutResponse{SessionID: session.ID, URL: session.URL})
}

// Cancel downgrades the caller to the free plan
func (h *SubscriptionHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	view, err := h.s.deps.Subscriptions.CancelOrDowngradeToFree(r.Context(), middleware.UserID(r))
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, PlanChangeResponse{Success: true, User: view})
}

// ConfirmSession applies a completed checkout session
func (h *SubscriptionHandlers) ConfirmSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	res, err := h.s.deps.Subscriptions.ConfirmSession(r.Context(), middleware.UserID(r), sessionID)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, res)
}

// Portal returns a billing portal URL for the caller
func (h *SubscriptionHandlers) Portal(w http.ResponseWriter, r *http.Request) {
	url, err := h.s.deps.Subscriptions.CreatePortalSession(r.Context(), middleware.UserID(r))
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, PortalResponse{URL: url})
}

// HandleWebhook verifies and applies a provider event. The body is passed
// through unparsed; anything other than a bad signature answers 500 so the
// provider retries.
func (h *SubscriptionHandlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			observability.FromContextOr(r.Context(), h.s.logger).Warnf("webhook body exceeds %d bytes", tooLarge.Limit)
			httputil.WritePayloadTooLarge(w, "request body too large")
			return
		}
		httputil.WriteBadRequest(w, "failed to read body")
		return
	}

	err = h.s.deps.Subscriptions.HandleProviderEvent(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		_ = httputil.WriteSuccess(w, WebhookResponse{Received: true})
	case errors.Is(err, billing.ErrInvalidSignature):
		httputil.WriteBadRequest(w, billing.ErrInvalidSignature.Error())
	default:
		observability.FromContextOr(r.Context(), h.s.logger).WithError(err).Error("webhook processing failed")
		httputil.WriteInternalError(w)
	}
}
