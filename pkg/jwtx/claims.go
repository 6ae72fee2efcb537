package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the lifetime applied to identity, session, grant and
// access tokens unless a caller narrows it. Ten hours matches what the game
// client assumes between launcher restarts.
const DefaultTokenTTL = 10 * time.Hour

// Confirmation is the RFC 7800 "cnf" claim. We only carry the certificate
// thumbprint member; the value is whatever fingerprint the caller supplied,
// never one we compute.
type Confirmation struct {
	X5tS256 string `json:"x5t#S256,omitempty"`
}

// Claims are the token claims used across the service. The game client and
// the game server both parse these, so `aud` and `scope` stay plain strings
// on the wire (not arrays) and additive changes only.
type Claims struct {
	Subject      string           `json:"sub"`
	Name         string           `json:"name,omitempty"`
	Username     string           `json:"username,omitempty"`
	Entitlements []string         `json:"entitlements,omitempty"`
	Scope        string           `json:"scope,omitempty"`
	Audience     string           `json:"aud,omitempty"`
	Issuer       string           `json:"iss,omitempty"`
	IssuedAt     *jwt.NumericDate `json:"iat,omitempty"`
	ExpiresAt    *jwt.NumericDate `json:"exp,omitempty"`
	ID           string           `json:"jti,omitempty"`
	Confirmation *Confirmation    `json:"cnf,omitempty"`
}

// NewClaims builds minimally-correct claims for a freshly issued token.
func NewClaims(subject, issuer, scope, jti string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		Subject:   subject,
		Issuer:    issuer,
		Scope:     scope,
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

// Expiry returns the exp time, or the zero time when absent.
func (c Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Expired reports whether the token has passed its exp at the given instant.
func (c Claims) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(c.ExpiresAt.Time)
}

/* jwt.Claims implementation so golang-jwt can sign this type directly. */

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) { return c.ExpiresAt, nil }
func (c Claims) GetIssuedAt() (*jwt.NumericDate, error)       { return c.IssuedAt, nil }
func (c Claims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (c Claims) GetIssuer() (string, error)                   { return c.Issuer, nil }
func (c Claims) GetSubject() (string, error)                  { return c.Subject, nil }

func (c Claims) GetAudience() (jwt.ClaimStrings, error) {
	if c.Audience == "" {
		return nil, nil
	}
	return jwt.ClaimStrings{c.Audience}, nil
}
