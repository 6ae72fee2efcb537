package service

import (
	"context"
	"time"

	"github.com/sanasol-ws/dualauth/internal/auth/domain"
	"github.com/sanasol-ws/dualauth/internal/auth/federation"
	"github.com/sanasol-ws/dualauth/pkg/idx"
	"github.com/sanasol-ws/dualauth/pkg/jwtx"
)

// nameChangeCooldown is how long after session creation the account surface
// advertises the next allowed name change.
const nameChangeCooldown = 30 * 24 * time.Hour

// ProfileService serves the account surface. Unlike the session endpoints
// it demands a cryptographically verified bearer, resolved through the
// federation component so foreign and self-signed identities work too.
type ProfileService struct {
	Federation *federation.Federation
}

// GameProfile verifies the bearer and projects its claims into the profile
// shape the launcher expects.
func (p *ProfileService) GameProfile(ctx context.Context, bearer string) (*domain.GameProfile, error) {
	h, c, signingInput, sig, err := jwtx.DecodeUnverified(bearer)
	if err != nil {
		return nil, ErrMalformedToken
	}

	key, err := p.Federation.KeyForToken(ctx, h, c.Issuer)
	if err != nil {
		return nil, ErrUnknownKey
	}
	if err := jwtx.VerifySignature(signingInput, sig, key); err != nil {
		return nil, ErrInvalidSignature
	}
	if c.Expired(time.Now().UTC()) {
		return nil, ErrTokenExpired
	}
	if c.Subject == "" {
		return nil, ErrMissingClaim
	}

	username := c.Username
	if username == "" {
		username = c.Name
	}
	if username == "" {
		username = DefaultUsername
	}

	createdAt := time.Now().UTC()
	if id, err := idx.Parse(c.ID); err == nil {
		createdAt = id.Time()
	}

	entitlements := c.Entitlements
	if entitlements == nil {
		entitlements = []string{}
	}

	return &domain.GameProfile{
		UUID:             c.Subject,
		Username:         username,
		Entitlements:     entitlements,
		CreatedAt:        createdAt,
		NextNameChangeAt: createdAt.Add(nameChangeCooldown),
	}, nil
}
