package domain

import "time"

const (
	// DefaultScope is granted when a caller names no scopes.
	DefaultScope = "hytale:server hytale:client"

	// ScopeServer marks a server-session token; its subject is the server
	// identity and doubles as an audience during audience capture.
	ScopeServer = "hytale:server"
)

// SessionRecord tracks a live player session. One record per player id;
// refresh replaces it, delete removes it.
type SessionRecord struct {
	PlayerID  string
	TokenID   string // jti of the session token
	Issuer    string
	Audience  string // server audience, set once the session is bound to a server
	CreatedAt time.Time
}

// GrantRecord tracks an issued authorization grant, bound to one audience.
type GrantRecord struct {
	TokenID   string // jti of the grant token
	PlayerID  string
	Audience  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SessionPair is the response shape of the session endpoints.
type SessionPair struct {
	IdentityToken string    `json:"identityToken"`
	SessionToken  string    `json:"sessionToken"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// AuthorizationGrant is the response shape of the authorize endpoint.
type AuthorizationGrant struct {
	AuthorizationGrant string    `json:"authorizationGrant"`
	ExpiresAt          time.Time `json:"expiresAt"`
}

// AccessGrant is the response shape of the token-exchange endpoint. The
// refresh token is a convenience alias the game server never redeems here;
// it is filled with the grant so old clients keep a non-empty field.
type AccessGrant struct {
	AccessToken  string    `json:"accessToken"`
	TokenType    string    `json:"tokenType"`
	ExpiresIn    int       `json:"expiresIn"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Scope        string    `json:"scope,omitempty"`
}

// GameProfile is the account surface's view of a player.
type GameProfile struct {
	UUID             string    `json:"uuid"`
	Username         string    `json:"username"`
	Entitlements     []string  `json:"entitlements"`
	CreatedAt        time.Time `json:"createdAt"`
	NextNameChangeAt time.Time `json:"nextNameChangeAt"`
	Skin             *Skin     `json:"skin,omitempty"`
}

// Skin is an opaque cosmetic blob; the service stores and replays it
// without interpreting the contents.
type Skin struct {
	ID  string `json:"id,omitempty"`
	URL string `json:"url,omitempty"`
}
