// Package sessionsdk is a typed client for the session service: the same
// calls a game server performs while admitting players (grant requests,
// token exchange, session refresh, JWKS discovery).
package sessionsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to one session service deployment.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a session service client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewSession opens a session for the given player. Both fields are
// optional; the service generates fallbacks.
func (c *Client) NewSession(ctx context.Context, playerID, username string) (*SessionPairResponse, error) {
	var out SessionPairResponse
	err := c.postJSON(ctx, "/game-session/new", map[string]string{
		"uuid":     playerID,
		"username": username,
	}, "", &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshSession trades a session (or identity) token for a fresh pair.
func (c *Client) RefreshSession(ctx context.Context, sessionToken string) (*SessionPairResponse, error) {
	var out SessionPairResponse
	err := c.postJSON(ctx, "/game-session/refresh", map[string]string{
		"sessionToken": sessionToken,
	}, sessionToken, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestAuthorizationGrant asks for a grant naming the given audience.
func (c *Client) RequestAuthorizationGrant(ctx context.Context, identityToken, audience string) (*AuthorizationGrantResponse, error) {
	var out AuthorizationGrantResponse
	err := c.postJSON(ctx, "/game-session/authorize", map[string]string{
		"identityToken": identityToken,
		"audience":      audience,
	}, identityToken, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ExchangeAuthGrantForToken redeems a grant for an access token, optionally
// binding it to the presented transport certificate fingerprint.
func (c *Client) ExchangeAuthGrantForToken(ctx context.Context, grant, x509Fingerprint string) (*AccessTokenResponse, error) {
	var out AccessTokenResponse
	err := c.postJSON(ctx, "/server-join/auth-token", map[string]string{
		"authorizationGrant": grant,
		"x509Fingerprint":    x509Fingerprint,
	}, grant, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSession ends the session behind the bearer token. Idempotent.
func (c *Client) DeleteSession(ctx context.Context, bearer string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/game-session", nil)
	if err != nil {
		return err
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return c.asError(resp)
	}
	return nil
}

// FetchJWKS retrieves the service's discovery document.
func (c *Client) FetchJWKS(ctx context.Context) (*JWKSResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/.well-known/jwks.json", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.asError(resp)
	}
	var out JWKSResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("sessionsdk: decode jwks: %w", err)
	}
	return &out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body map[string]string, bearer string, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.asError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) asError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var envelope ErrorResponse
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error != "" {
		return &APIError{Status: resp.StatusCode, Code: envelope.Error}
	}
	return &APIError{Status: resp.StatusCode, Code: "unexpected_response"}
}

// APIError is a non-2xx reply from the service.
type APIError struct {
	Status int
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sessionsdk: %s (status %d)", e.Code, e.Status)
}
