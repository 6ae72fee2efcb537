package jwtx

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AlgEdDSA is the only signing algorithm this service emits or accepts.
const AlgEdDSA = "EdDSA"

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrNoKey       = errors.New("jwtx: key not found")
)

// Header is the JOSE header shape used on the wire. Locally issued tokens
// carry a kid; self-signed client tokens carry an embedded jwk instead.
type Header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ,omitempty"`
	Kid string `json:"kid,omitempty"`
	JWK *JWK   `json:"jwk,omitempty"`
}

// Encode serializes header+claims into a compact EdDSA-signed JWT.
// The header's Alg/Typ are forced to EdDSA/JWT regardless of input.
func Encode(h Header, c Claims, key ed25519.PrivateKey) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, c)
	if h.Kid != "" {
		t.Header["kid"] = h.Kid
	}
	if h.JWK != nil {
		t.Header["jwk"] = h.JWK
	}
	return t.SignedString(key)
}

// DecodeUnverified splits a compact token into its header, claims, signing
// input and raw signature without any cryptographic check. Verification is
// the caller's job once it has chosen a key from the header.
func DecodeUnverified(token string) (Header, Claims, string, []byte, error) {
	var h Header
	var c Claims

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return h, c, "", nil, ErrMalformed
	}

	hb, err := decodeSegment(parts[0])
	if err != nil {
		return h, c, "", nil, ErrMalformed
	}
	if err := json.Unmarshal(hb, &h); err != nil {
		return h, c, "", nil, ErrMalformed
	}
	if h.Alg != AlgEdDSA {
		return h, c, "", nil, ErrAlgMismatch
	}

	cb, err := decodeSegment(parts[1])
	if err != nil {
		return h, c, "", nil, ErrMalformed
	}
	if err := json.Unmarshal(cb, &c); err != nil {
		return h, c, "", nil, ErrMalformed
	}

	sig, err := decodeSegment(parts[2])
	if err != nil {
		return h, c, "", nil, ErrMalformed
	}

	return h, c, parts[0] + "." + parts[1], sig, nil
}

// VerifySignature checks an Ed25519 signature over the signing input.
func VerifySignature(signingInput string, sig []byte, pub ed25519.PublicKey) error {
	if err := jwt.SigningMethodEdDSA.Verify(signingInput, sig, pub); err != nil {
		return ErrInvalidSig
	}
	return nil
}

// decodeSegment tolerates both padded and unpadded URL-safe base64; foreign
// issuers are not all strict about RFC 7515 padding.
func decodeSegment(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}
