package service

import "errors"

var (
	// ErrMalformedToken is a token that does not parse into three base64
	// segments, carries invalid JSON, or advertises a non-EdDSA algorithm.
	ErrMalformedToken = errors.New("malformed_token")

	// ErrUnknownKey means no verification key could be located; upstream
	// fetch failures collapse into this for caller simplicity.
	ErrUnknownKey = errors.New("unknown_key")

	// ErrInvalidSignature means a key was located but did not verify.
	ErrInvalidSignature = errors.New("invalid_signature")

	// ErrTokenExpired means the token verified but is past its exp.
	ErrTokenExpired = errors.New("token_expired")

	// ErrMissingClaim means a claim required for the operation is absent.
	ErrMissingClaim = errors.New("missing_claim")

	// ErrPersistenceFatal means storage failed a critical write; the
	// request must fail so the caller does not act on invisible state.
	ErrPersistenceFatal = errors.New("persistence_failure")
)
