package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sanasol-ws/dualauth/internal/auth/domain"
	"github.com/sanasol-ws/dualauth/internal/auth/service"
	"github.com/sanasol-ws/dualauth/pkg/httpx"
	"github.com/sanasol-ws/dualauth/pkg/slogx"
)

// CatchAllHandler is the legacy development fallback: clients probing
// unknown paths get a grant and an access token bound to one freshly
// generated audience. Production deployments leave this off and serve 404.
type CatchAllHandler struct {
	ExchangeService *service.ExchangeService
}

type catchAllResponse struct {
	AuthorizationGrant string    `json:"authorizationGrant"`
	AccessToken        string    `json:"accessToken"`
	TokenType          string    `json:"tokenType"`
	ExpiresIn          int       `json:"expiresIn"`
	ExpiresAt          time.Time `json:"expiresAt"`
	Scope              string    `json:"scope,omitempty"`
}

func (h *CatchAllHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slogx.FromContext(ctx).Warn("legacy catch-all serving unknown path", "path", r.URL.Path)

	audience := uuid.NewString()
	identity := httpx.BearerFromContext(ctx)

	grant, err := h.ExchangeService.Authorize(ctx, r.Host, identity, audience, domain.Scopes{}, httpx.SubjectFromContext(ctx))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	access, err := h.ExchangeService.Exchange(ctx, r.Host, grant.AuthorizationGrant, "")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, catchAllResponse{
		AuthorizationGrant: grant.AuthorizationGrant,
		AccessToken:        access.AccessToken,
		TokenType:          access.TokenType,
		ExpiresIn:          access.ExpiresIn,
		ExpiresAt:          access.ExpiresAt,
		Scope:              access.Scope,
	})
}
