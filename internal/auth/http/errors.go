package http

import (
	"errors"
	"net/http"

	"github.com/sanasol-ws/dualauth/internal/auth/service"
	"github.com/sanasol-ws/dualauth/pkg/httpx"
	"github.com/sanasol-ws/dualauth/pkg/slogx"
)

// writeServiceError maps service error kinds to the {error: ...} envelope
// and status codes. Internal details never reach the wire.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrMalformedToken):
		httpx.WriteError(w, http.StatusBadRequest, service.ErrMalformedToken.Error())
	case errors.Is(err, service.ErrMissingClaim):
		httpx.WriteError(w, http.StatusBadRequest, service.ErrMissingClaim.Error())
	case errors.Is(err, service.ErrUnknownKey):
		httpx.WriteError(w, http.StatusUnauthorized, service.ErrUnknownKey.Error())
	case errors.Is(err, service.ErrInvalidSignature):
		httpx.WriteError(w, http.StatusUnauthorized, service.ErrInvalidSignature.Error())
	case errors.Is(err, service.ErrTokenExpired):
		httpx.WriteError(w, http.StatusUnauthorized, service.ErrTokenExpired.Error())
	case errors.Is(err, service.ErrPersistenceFatal):
		httpx.WriteError(w, http.StatusServiceUnavailable, service.ErrPersistenceFatal.Error())
	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error")
	}
}
