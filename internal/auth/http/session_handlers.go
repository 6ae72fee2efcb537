package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sanasol-ws/dualauth/internal/auth/domain"
	"github.com/sanasol-ws/dualauth/internal/auth/service"
	"github.com/sanasol-ws/dualauth/pkg/httpx"
)

// SessionHandler serves the /game-session endpoints.
type SessionHandler struct {
	SessionService *service.SessionService
}

type newSessionRequest struct {
	UUID     string `json:"uuid"`
	Username string `json:"username"`
}

// HandleNew issues a fresh identity/session pair. Every field is optional;
// an empty body still yields a valid pair with a generated subject.
func (h *SessionHandler) HandleNew(w http.ResponseWriter, r *http.Request) {
	var req newSessionRequest
	if err := decodeBody(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	pair, err := h.SessionService.NewSession(r.Context(), r.Host, req.UUID, req.Username)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	SessionToken string `json:"sessionToken"`
}

// HandleRefresh re-issues the pair for the subject in the presented token,
// falling back to the bearer, then to the context identity.
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	presented := req.SessionToken
	if presented == "" {
		presented = httpx.BearerFromContext(r.Context())
	}

	pair, err := h.SessionService.RefreshSession(r.Context(), r.Host, presented, httpx.SubjectFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}

type childSessionRequest struct {
	Scopes domain.Scopes `json:"scopes"`
}

// HandleChild issues a scope-narrowed child session for the caller.
func (h *SessionHandler) HandleChild(w http.ResponseWriter, r *http.Request) {
	var req childSessionRequest
	if err := decodeBody(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	subject := httpx.SubjectFromContext(r.Context())
	username := ""
	if claims, ok := httpx.ClaimsFromContext(r.Context()); ok {
		if claims.Username != "" {
			username = claims.Username
		} else {
			username = claims.Name
		}
	}

	pair, err := h.SessionService.ChildSession(r.Context(), r.Host, subject, username, req.Scopes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}

// HandleDelete removes the bearer's session. Always 204: deleting a missing
// session, or presenting no bearer at all, is not an error.
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	h.SessionService.DeleteSession(r.Context(), httpx.BearerFromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// decodeBody parses an optional JSON body. An empty body is fine; malformed
// JSON is not.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
