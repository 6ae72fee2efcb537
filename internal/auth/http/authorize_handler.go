package http

import (
	"net/http"

	"github.com/sanasol-ws/dualauth/internal/auth/domain"
	"github.com/sanasol-ws/dualauth/internal/auth/service"
	"github.com/sanasol-ws/dualauth/pkg/httpx"
)

// AuthorizeHandler serves POST /game-session/authorize.
type AuthorizeHandler struct {
	ExchangeService *service.ExchangeService
}

type authorizeRequest struct {
	IdentityToken string        `json:"identityToken"`
	Audience      string        `json:"audience"`
	Scopes        domain.Scopes `json:"scopes"`
}

func (h *AuthorizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if err := decodeBody(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	// The identity may arrive in the body or as the bearer.
	identityToken := req.IdentityToken
	if identityToken == "" {
		identityToken = httpx.BearerFromContext(r.Context())
	}

	grant, err := h.ExchangeService.Authorize(
		r.Context(),
		r.Host,
		identityToken,
		req.Audience,
		req.Scopes,
		httpx.SubjectFromContext(r.Context()),
	)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, grant)
}
