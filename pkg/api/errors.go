package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/creditmeter/pkg/auth"
	"github.com/platinummonkey/creditmeter/pkg/billing"
	"github.com/platinummonkey/creditmeter/pkg/httputil"
	"github.com/platinummonkey/creditmeter/pkg/observability"
	"github.com/platinummonkey/creditmeter/pkg/projects"
	"github.com/platinummonkey/creditmeter/pkg/usage"
	"github.com/platinummonkey/creditmeter/pkg/users"
)

// publicErrors maps engine sentinels to a status. The sentinel's own text
// is the public message.
var publicErrors = []struct {
	target error
	status int
}{
	{billing.ErrUnauthorized, http.StatusUnauthorized},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized},
	{auth.ErrInvalidGoogleToken, http.StatusUnauthorized},
	{billing.ErrProviderUnavailable, http.StatusServiceUnavailable},
	{billing.ErrNotProvisioned, http.StatusNotFound},
	{billing.ErrNotFound, http.StatusNotFound},
	{users.ErrNotFound, http.StatusNotFound},
	{projects.ErrNotFound, http.StatusNotFound},
	{usage.ErrProjectNotFound, http.StatusNotFound},
	{auth.ErrUserExists, http.StatusConflict},
	{billing.ErrInvalidSignature, http.StatusBadRequest},
}

// detailedErrors are validation failures whose full wrapped text is safe to
// return.
var detailedErrors = []error{
	billing.ErrInvalidOperation,
	usage.ErrInvalidWindow,
	usage.ErrInvalidUsage,
	projects.ErrNameRequired,
}

// statusFor maps an engine error to a status code and public message. A
// zero status means the error is not public.
func statusFor(err error) (int, string) {
	for _, pe := range publicErrors {
		if errors.Is(err, pe.target) {
			return pe.status, pe.target.Error()
		}
	}
	for _, target := range detailedErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, err.Error()
		}
	}
	return 0, ""
}

// writeError writes err with its mapped status, or logs it and writes a
// generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	if status == 0 {
		observability.FromContextOr(r.Context(), s.logger).
			WithError(err).
			WithField("path", r.URL.Path).
			Error("request failed")
		httputil.WriteInternalError(w)
		return
	}
	if status >= http.StatusInternalServerError {
		observability.FromContextOr(r.Context(), s.logger).WithError(err).Warn("dependency unavailable")
	}
	httputil.WriteErrorMessage(w, status, message)
}
