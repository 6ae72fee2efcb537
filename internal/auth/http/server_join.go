package http

import (
	"net/http"

	"github.com/sanasol-ws/dualauth/internal/auth/service"
	"github.com/sanasol-ws/dualauth/pkg/httpx"
)

// ServerJoinHandler serves POST /server-join/auth-token: the grant ->
// access-token exchange a game server performs while admitting a client.
type ServerJoinHandler struct {
	ExchangeService *service.ExchangeService
}

type serverJoinRequest struct {
	AuthorizationGrant string `json:"authorizationGrant"`
	X509Fingerprint    string `json:"x509Fingerprint"`
}

func (h *ServerJoinHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req serverJoinRequest
	if err := decodeBody(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	grant := req.AuthorizationGrant
	if grant == "" {
		grant = httpx.BearerFromContext(r.Context())
	}

	access, err := h.ExchangeService.Exchange(r.Context(), r.Host, grant, req.X509Fingerprint)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, access)
}
