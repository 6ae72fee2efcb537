package sessionsdk

import "time"

// ErrorResponse is the error envelope every endpoint uses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionPairResponse is returned by the new/refresh/child session endpoints.
type SessionPairResponse struct {
	IdentityToken string    `json:"identityToken"`
	SessionToken  string    `json:"sessionToken"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// AuthorizationGrantResponse is returned by the authorize endpoint.
type AuthorizationGrantResponse struct {
	AuthorizationGrant string    `json:"authorizationGrant"`
	ExpiresAt          time.Time `json:"expiresAt"`
}

// AccessTokenResponse is returned by the server-join token exchange.
type AccessTokenResponse struct {
	AccessToken  string    `json:"accessToken"`
	TokenType    string    `json:"tokenType"`
	ExpiresIn    int       `json:"expiresIn"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Scope        string    `json:"scope,omitempty"`
}

// GameProfileResponse is returned by the account surface.
type GameProfileResponse struct {
	UUID             string    `json:"uuid"`
	Username         string    `json:"username"`
	Entitlements     []string  `json:"entitlements"`
	CreatedAt        time.Time `json:"createdAt"`
	NextNameChangeAt time.Time `json:"nextNameChangeAt"`
}

// JWK mirrors the discovery document's key shape.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid,omitempty"`
	X   string `json:"x,omitempty"`
}

// JWKSResponse is the discovery endpoint's document.
type JWKSResponse struct {
	Keys []JWK `json:"keys"`
}

// HealthChecks itemizes dependency health inside a HealthResponse.
type HealthChecks struct {
	Database string `json:"database,omitempty"`
	Signer   string `json:"signer,omitempty"`
}

// HealthResponse is returned by the livez/readyz probes.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}
