package jwtx

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
)

// JWK represents a key in JSON Web Key format (RFC 7517). Only OKP/Ed25519
// keys are used by this service. The optional D member carries a private
// seed; self-signed client tokens embed it in their header so the service
// can mint replacement tokens verifiable with the same key.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid,omitempty"`
	X   string `json:"x,omitempty"` // base64url public key
	D   string `json:"d,omitempty"` // base64url private seed, if self-contained
}

// JWKS is a JSON Web Key Set (RFC 7517).
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// NewEd25519JWK builds the public JWK for an Ed25519 key.
func NewEd25519JWK(kid string, pub ed25519.PublicKey) JWK {
	return JWK{
		Kty: "OKP",
		Crv: "Ed25519",
		Use: "sig",
		Alg: AlgEdDSA,
		Kid: kid,
		X:   base64.RawURLEncoding.EncodeToString(pub),
	}
}

// IsEd25519 reports whether the JWK describes a usable Ed25519 signature key.
func (j JWK) IsEd25519() bool {
	return j.Kty == "OKP" && j.Crv == "Ed25519" && j.X != ""
}

// PublicKey decodes the X member into an Ed25519 public key.
func (j JWK) PublicKey() (ed25519.PublicKey, error) {
	if !j.IsEd25519() {
		return nil, errors.New("jwtx: not an Ed25519 JWK")
	}
	xb, err := decodeSegment(j.X)
	if err != nil {
		return nil, err
	}
	if len(xb) != ed25519.PublicKeySize {
		return nil, errors.New("jwtx: invalid Ed25519 public key size")
	}
	return ed25519.PublicKey(xb), nil
}

// PrivateKey derives the full Ed25519 private key from the D seed.
// Returns ErrNoKey when the JWK carries no private material.
func (j JWK) PrivateKey() (ed25519.PrivateKey, error) {
	if j.D == "" {
		return nil, ErrNoKey
	}
	db, err := decodeSegment(j.D)
	if err != nil {
		return nil, err
	}
	if len(db) != ed25519.SeedSize {
		return nil, errors.New("jwtx: invalid Ed25519 seed size")
	}
	return ed25519.NewKeyFromSeed(db), nil
}

// Public strips any private material so the JWK is safe to publish.
func (j JWK) Public() JWK {
	j.D = ""
	return j
}
