package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sanasol-ws/dualauth/internal/auth/domain"
	"github.com/sanasol-ws/dualauth/internal/auth/issuer"
	"github.com/sanasol-ws/dualauth/internal/auth/selfsign"
	"github.com/sanasol-ws/dualauth/internal/auth/store"
	"github.com/sanasol-ws/dualauth/internal/metrics"
	"github.com/sanasol-ws/dualauth/pkg/idx"
	"github.com/sanasol-ws/dualauth/pkg/jwtx"
	"github.com/sanasol-ws/dualauth/pkg/slogx"
)

// ExchangeService drives identified -> granted -> authorized: audience
// capture, grant minting, and the grant -> access-token exchange with
// certificate binding.
type ExchangeService struct {
	Keys             *jwtx.KeyStore
	Resolver         *issuer.Resolver
	Store            store.Store
	Bypass           *selfsign.Minter
	AcceptSelfSigned bool
	GrantTTL         time.Duration
	AccessTTL        time.Duration
	Recorder         *metrics.Recorder
}

func (e *ExchangeService) grantTTL() time.Duration {
	if e.GrantTTL > 0 {
		return e.GrantTTL
	}
	return jwtx.DefaultTokenTTL
}

func (e *ExchangeService) accessTTL() time.Duration {
	if e.AccessTTL > 0 {
		return e.AccessTTL
	}
	return jwtx.DefaultTokenTTL
}

// Authorize reads the presented identity token's claims and mints an
// authorization grant bound to the captured audience. When the identity
// token is self-signed and the bypass policy is active, the grant is
// fabricated by the bypass minter: signed by the embedded private key when
// the header carries one, otherwise by the local key.
//
// The identity token is authoritative for the subject: when it names a
// different player than the request context believes, the token wins.
func (e *ExchangeService) Authorize(ctx context.Context, host, identityToken, bodyAudience string, scopes domain.Scopes, ctxSubject string) (*domain.AuthorizationGrant, error) {
	now := time.Now().UTC()
	iss := e.Resolver.ResolveForRequest(host)
	subject := ctxSubject

	var src jwtx.Claims
	var hdr jwtx.Header
	decoded := false
	if identityToken != "" {
		var err error
		hdr, src, _, _, err = jwtx.DecodeUnverified(identityToken)
		if err != nil {
			return nil, ErrMalformedToken
		}
		decoded = true
		if src.Subject != "" {
			subject = src.Subject
		}
	}

	audience := captureAudience(bodyAudience, src)
	if audience == "" {
		audience = uuid.NewString()
	}
	if subject == "" {
		subject = uuid.NewString()
	}
	scope := scopes.Normalize()

	var grant string
	var expires time.Time
	if decoded && e.AcceptSelfSigned && selfsign.IsSelfSigned(hdr) {
		verified, jwk, err := selfsign.VerifyWithEmbeddedKey(identityToken)
		if err != nil {
			return nil, ErrInvalidSignature
		}
		verified.Scope = scope
		grant, expires, err = e.Bypass.MintAccessToken(verified, jwk, iss, audience, "", now)
		if err != nil {
			return nil, err
		}
		subject = verified.Subject
	} else {
		claims := jwtx.NewClaims(subject, iss, scope, idx.New().String(), e.grantTTL(), now)
		claims.Audience = audience
		claims.Name = src.Name
		claims.Username = src.Username

		var err error
		grant, err = e.Keys.SignClaims(claims)
		if err != nil {
			return nil, err
		}
		expires = claims.Expiry()
	}

	// Grant registration is advisory; a failed write must not eat the grant.
	rec := domain.GrantRecord{
		TokenID:   grantTokenID(grant),
		PlayerID:  subject,
		Audience:  audience,
		IssuedAt:  now,
		ExpiresAt: expires,
	}
	if err := e.Store.Grants().Put(ctx, rec); err != nil {
		slogx.FromContext(ctx).Error("grant register failed", "err", err)
	}

	if e.Recorder != nil {
		e.Recorder.Record(func() { metrics.TokensIssued.WithLabelValues("grant").Inc() })
	}

	return &domain.AuthorizationGrant{AuthorizationGrant: grant, ExpiresAt: expires}, nil
}

// Exchange redeems an authorization grant for an access token bound to the
// grant's audience, carrying the caller-supplied transport fingerprint in
// the confirmation claim when one is given. Self-signed grants under the
// bypass policy are substituted per the embedded-key rules.
func (e *ExchangeService) Exchange(ctx context.Context, host, grantToken, fingerprint string) (*domain.AccessGrant, error) {
	if grantToken == "" {
		return nil, ErrMissingClaim
	}

	hdr, gc, _, _, err := jwtx.DecodeUnverified(grantToken)
	if err != nil {
		return nil, ErrMalformedToken
	}

	now := time.Now().UTC()
	iss := e.Resolver.ResolveForRequest(host)

	audience := captureAudience("", gc)
	if audience == "" {
		audience = uuid.NewString()
	}

	scope := gc.Scope
	if scope == "" {
		scope = domain.DefaultScope
	}

	var access string
	var expires time.Time
	if e.AcceptSelfSigned && selfsign.IsSelfSigned(hdr) {
		verified, jwk, err := selfsign.VerifyWithEmbeddedKey(grantToken)
		if err != nil {
			return nil, ErrInvalidSignature
		}
		access, expires, err = e.Bypass.MintAccessToken(verified, jwk, iss, audience, fingerprint, now)
		if err != nil {
			return nil, err
		}
	} else {
		claims := jwtx.NewClaims(gc.Subject, iss, scope, idx.New().String(), e.accessTTL(), now)
		claims.Audience = audience
		claims.Name = gc.Name
		claims.Username = gc.Username
		if fingerprint != "" {
			claims.Confirmation = &jwtx.Confirmation{X5tS256: fingerprint}
		}

		access, err = e.Keys.SignClaims(claims)
		if err != nil {
			return nil, err
		}
		expires = claims.Expiry()
	}

	// Bind the session to the server audience; advisory write.
	if gc.Subject != "" {
		rec := domain.SessionRecord{
			PlayerID:  gc.Subject,
			TokenID:   grantTokenID(access),
			Issuer:    iss,
			Audience:  audience,
			CreatedAt: now,
		}
		if err := e.Store.Sessions().Put(ctx, rec); err != nil {
			slogx.FromContext(ctx).Error("session audience bind failed", "err", err)
		}
	}

	if e.Recorder != nil {
		e.Recorder.Record(func() { metrics.TokensIssued.WithLabelValues("access").Inc() })
	}

	return &domain.AccessGrant{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int(time.Until(expires).Round(time.Second).Seconds()),
		RefreshToken: grantToken,
		ExpiresAt:    expires,
		Scope:        scope,
	}, nil
}

// captureAudience prefers the audience the caller named, then the token's
// aud, then the token's sub when the token is a server session.
func captureAudience(body string, c jwtx.Claims) string {
	if body != "" {
		return body
	}
	if c.Audience != "" {
		return c.Audience
	}
	if c.Scope == domain.ScopeServer && c.Subject != "" {
		return c.Subject
	}
	return ""
}

// grantTokenID pulls the jti back out of a freshly minted token.
func grantTokenID(token string) string {
	if _, c, _, _, err := jwtx.DecodeUnverified(token); err == nil {
		return c.ID
	}
	return idx.New().String()
}
