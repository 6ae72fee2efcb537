package selfsign_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sanasol-ws/dualauth/internal/auth/selfsign"
	"github.com/sanasol-ws/dualauth/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

// selfSignedToken builds a token whose header embeds its own keypair,
// the way an offline client does.
func selfSignedToken(t *testing.T, subject string, includeSeed bool) (string, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	jwk := jwtx.NewEd25519JWK("", pub)
	if includeSeed {
		jwk.D = base64.RawURLEncoding.EncodeToString(priv.Seed())
	}

	claims := jwtx.NewClaims(subject, "https://client.local", "hytale:client", "jti-self", time.Hour, time.Now().UTC())
	token, err := jwtx.Encode(jwtx.Header{JWK: &jwk}, claims, priv)
	require.NoError(t, err)
	return token, pub
}

func TestIsSelfSigned(t *testing.T) {
	token, _ := selfSignedToken(t, "u2", false)
	h, _, _, _, err := jwtx.DecodeUnverified(token)
	require.NoError(t, err)
	require.True(t, selfsign.IsSelfSigned(h))

	require.False(t, selfsign.IsSelfSigned(jwtx.Header{Alg: jwtx.AlgEdDSA, Kid: "k"}))
	require.False(t, selfsign.IsSelfSigned(jwtx.Header{Alg: jwtx.AlgEdDSA, JWK: &jwtx.JWK{Kty: "RSA"}}))
}

func TestVerifyWithEmbeddedKey(t *testing.T) {
	token, _ := selfSignedToken(t, "u2", false)

	claims, jwk, err := selfsign.VerifyWithEmbeddedKey(token)
	require.NoError(t, err)
	require.Equal(t, "u2", claims.Subject)
	require.NotNil(t, jwk)
}

func TestVerifyWithEmbeddedKeyRejectsForgery(t *testing.T) {
	token, _ := selfSignedToken(t, "u2", false)

	// Swap the payload: the embedded key no longer matches the signature.
	parts := strings.Split(token, ".")
	other, _ := selfSignedToken(t, "intruder", false)
	forged := parts[0] + "." + strings.Split(other, ".")[1] + "." + parts[2]

	_, _, err := selfsign.VerifyWithEmbeddedKey(forged)
	require.ErrorIs(t, err, selfsign.ErrBadSignature)
}

func TestVerifyRejectsPlainToken(t *testing.T) {
	ks, err := jwtx.LoadOrCreateKeyStore(filepath.Join(t.TempDir(), "k.json"), nil)
	require.NoError(t, err)
	token, err := ks.SignClaims(jwtx.NewClaims("u1", "https://x", "s", "j", time.Hour, time.Now().UTC()))
	require.NoError(t, err)

	_, _, err = selfsign.VerifyWithEmbeddedKey(token)
	require.ErrorIs(t, err, selfsign.ErrNotSelfSigned)
}

func TestMintAccessTokenWithEmbeddedSeed(t *testing.T) {
	token, pub := selfSignedToken(t, "u2", true)
	claims, jwk, err := selfsign.VerifyWithEmbeddedKey(token)
	require.NoError(t, err)

	ks, err := jwtx.LoadOrCreateKeyStore(filepath.Join(t.TempDir(), "k.json"), nil)
	require.NoError(t, err)
	m := &selfsign.Minter{Keys: ks, TTL: time.Hour}

	now := time.Now().UTC()
	minted, exp, err := m.MintAccessToken(claims, jwk, "https://sessions.example.net", "s-42", "FP2", now)
	require.NoError(t, err)
	require.WithinDuration(t, now.Add(time.Hour), exp, time.Second)

	h, c, signingInput, sig, err := jwtx.DecodeUnverified(minted)
	require.NoError(t, err)

	// Verifiable with the same embedded key, and the header republishes
	// only the public half.
	require.NoError(t, jwtx.VerifySignature(signingInput, sig, pub))
	require.NotNil(t, h.JWK)
	require.Empty(t, h.JWK.D)

	require.Equal(t, "u2", c.Subject)
	require.Equal(t, "s-42", c.Audience)
	require.Equal(t, "https://sessions.example.net", c.Issuer)
	require.Equal(t, "FP2", c.Confirmation.X5tS256)
	require.Equal(t, "hytale:client", c.Scope)
}

func TestMintAccessTokenFallsBackToLocalKey(t *testing.T) {
	token, _ := selfSignedToken(t, "u3", false) // no seed in header
	claims, jwk, err := selfsign.VerifyWithEmbeddedKey(token)
	require.NoError(t, err)

	ks, err := jwtx.LoadOrCreateKeyStore(filepath.Join(t.TempDir(), "k.json"), nil)
	require.NoError(t, err)
	m := &selfsign.Minter{Keys: ks}

	minted, _, err := m.MintAccessToken(claims, jwk, "https://sessions.example.net", "s-1", "", time.Now().UTC())
	require.NoError(t, err)

	h, c, signingInput, sig, err := jwtx.DecodeUnverified(minted)
	require.NoError(t, err)
	require.Equal(t, ks.KID(), h.Kid)
	require.NoError(t, jwtx.VerifySignature(signingInput, sig, ks.Public()))
	require.Nil(t, c.Confirmation)
}
