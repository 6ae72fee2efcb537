package http

import (
	"net/http"

	"github.com/sanasol-ws/dualauth/internal/auth/service"
	"github.com/sanasol-ws/dualauth/pkg/httpx"
)

// ProfileHandler serves GET /my-account/game-profile. This surface demands
// a verified bearer, unlike the availability-first session endpoints.
type ProfileHandler struct {
	ProfileService *service.ProfileService
}

func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bearer := httpx.BearerFromContext(r.Context())
	if bearer == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "missing_bearer")
		return
	}

	profile, err := h.ProfileService.GameProfile(r.Context(), bearer)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, profile)
}
