package http_test

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sanasol-ws/dualauth/internal/auth/federation"
	httpapi "github.com/sanasol-ws/dualauth/internal/auth/http"
	"github.com/sanasol-ws/dualauth/internal/auth/issuer"
	"github.com/sanasol-ws/dualauth/internal/auth/selfsign"
	"github.com/sanasol-ws/dualauth/internal/auth/service"
	"github.com/sanasol-ws/dualauth/internal/auth/store/drivers/memory"
	"github.com/sanasol-ws/dualauth/pkg/jwtx"
	"github.com/sanasol-ws/dualauth/pkg/sessionsdk"
	"github.com/stretchr/testify/require"
)

const testDomain = "sessions.example.net"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	router *httpapi.Router
	keys   *jwtx.KeyStore
	store  *memory.Store
}

func newTestEnv(t *testing.T, acceptSelfSigned, legacyCatchAll bool) *testEnv {
	t.Helper()

	keys, err := jwtx.LoadOrCreateKeyStore(filepath.Join(t.TempDir(), "signing.json"), nil)
	require.NoError(t, err)

	st := memory.NewStore()
	resolver := issuer.NewResolver(testDomain, nil, nil)
	fed := federation.New(resolver, keys, federation.Config{}, nil, nil)

	router := httpapi.NewRouter(keys, resolver, fed, "test", st, discardLogger())
	router.SessionService = &service.SessionService{
		Keys:       keys,
		Resolver:   resolver,
		Store:      st,
		SessionTTL: 10 * time.Hour,
	}
	router.ExchangeService = &service.ExchangeService{
		Keys:             keys,
		Resolver:         resolver,
		Store:            st,
		Bypass:           &selfsign.Minter{Keys: keys, TTL: 10 * time.Hour},
		AcceptSelfSigned: acceptSelfSigned,
		GrantTTL:         10 * time.Hour,
		AccessTTL:        10 * time.Hour,
	}
	router.ProfileService = &service.ProfileService{Federation: fed}
	router.LegacyCatchAll = legacyCatchAll
	router.ApplyRoutes()

	return &testEnv{router: router, keys: keys, store: st}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Host = testDomain
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func TestFreshSessionScenario(t *testing.T) {
	env := newTestEnv(t, false, false)

	rr := env.do(t, http.MethodPost, "/game-session/new", map[string]string{
		"uuid":     "u1",
		"username": "Alice",
	}, "")
	require.Equal(t, http.StatusOK, rr.Code)

	pair := decodeJSON[sessionsdk.SessionPairResponse](t, rr)
	require.NotEmpty(t, pair.IdentityToken)
	require.NotEmpty(t, pair.SessionToken)

	h, c, signingInput, sig, err := jwtx.DecodeUnverified(pair.IdentityToken)
	require.NoError(t, err)
	require.Equal(t, "u1", c.Subject)
	require.Equal(t, "Alice", c.Username)
	require.Equal(t, "hytale:server hytale:client", c.Scope)
	require.Equal(t, "https://"+testDomain, c.Issuer)
	require.EqualValues(t, 36000, c.ExpiresAt.Unix()-c.IssuedAt.Unix())

	// The discovery document's key verifies what was just issued.
	jwksRR := env.do(t, http.MethodGet, "/.well-known/jwks.json", nil, "")
	require.Equal(t, http.StatusOK, jwksRR.Code)
	jwks := decodeJSON[jwtx.JWKS](t, jwksRR)
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, h.Kid, jwks.Keys[0].Kid)

	pub, err := jwks.Keys[0].PublicKey()
	require.NoError(t, err)
	require.NoError(t, jwtx.VerifySignature(signingInput, sig, pub))
}

func TestEmptyBodyYieldsGeneratedSubject(t *testing.T) {
	env := newTestEnv(t, false, false)

	rr := env.do(t, http.MethodPost, "/game-session/new", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	pair := decodeJSON[sessionsdk.SessionPairResponse](t, rr)
	_, c, _, _, err := jwtx.DecodeUnverified(pair.IdentityToken)
	require.NoError(t, err)
	require.NotEmpty(t, c.Subject)
}

func TestAuthorizeAndExchangeScenario(t *testing.T) {
	env := newTestEnv(t, false, false)

	newRR := env.do(t, http.MethodPost, "/game-session/new", map[string]string{"uuid": "u1", "username": "Alice"}, "")
	pair := decodeJSON[sessionsdk.SessionPairResponse](t, newRR)

	authRR := env.do(t, http.MethodPost, "/game-session/authorize", map[string]string{
		"identityToken": pair.IdentityToken,
		"audience":      "s-42",
	}, "")
	require.Equal(t, http.StatusOK, authRR.Code)
	grant := decodeJSON[sessionsdk.AuthorizationGrantResponse](t, authRR)

	_, gc, _, _, err := jwtx.DecodeUnverified(grant.AuthorizationGrant)
	require.NoError(t, err)
	require.Equal(t, "u1", gc.Subject)
	require.Equal(t, "s-42", gc.Audience)

	exRR := env.do(t, http.MethodPost, "/server-join/auth-token", map[string]string{
		"authorizationGrant": grant.AuthorizationGrant,
		"x509Fingerprint":    "FP",
	}, "")
	require.Equal(t, http.StatusOK, exRR.Code)
	access := decodeJSON[sessionsdk.AccessTokenResponse](t, exRR)
	require.Equal(t, "Bearer", access.TokenType)

	_, ac, signingInput, sig, err := jwtx.DecodeUnverified(access.AccessToken)
	require.NoError(t, err)
	require.NoError(t, jwtx.VerifySignature(signingInput, sig, env.keys.Public()))
	require.Equal(t, "s-42", ac.Audience)
	require.Equal(t, "FP", ac.Confirmation.X5tS256)
}

func TestRefreshWithUnparseableToken(t *testing.T) {
	env := newTestEnv(t, false, false)

	rr := env.do(t, http.MethodPost, "/game-session/refresh", map[string]string{
		"sessionToken": "garbage",
	}, "")
	require.Equal(t, http.StatusOK, rr.Code)

	pair := decodeJSON[sessionsdk.SessionPairResponse](t, rr)
	_, c, _, _, err := jwtx.DecodeUnverified(pair.IdentityToken)
	require.NoError(t, err)
	require.NotEmpty(t, c.Subject)
}

func TestRefreshKeepsBearerSubject(t *testing.T) {
	env := newTestEnv(t, false, false)

	newRR := env.do(t, http.MethodPost, "/game-session/new", map[string]string{"uuid": "u5", "username": "Eve"}, "")
	pair := decodeJSON[sessionsdk.SessionPairResponse](t, newRR)

	rr := env.do(t, http.MethodPost, "/game-session/refresh", nil, pair.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)

	fresh := decodeJSON[sessionsdk.SessionPairResponse](t, rr)
	_, c, _, _, err := jwtx.DecodeUnverified(fresh.IdentityToken)
	require.NoError(t, err)
	require.Equal(t, "u5", c.Subject)
}

func TestChildSessionScopes(t *testing.T) {
	env := newTestEnv(t, false, false)

	newRR := env.do(t, http.MethodPost, "/game-session/new", map[string]string{"uuid": "u1"}, "")
	pair := decodeJSON[sessionsdk.SessionPairResponse](t, newRR)

	rr := env.do(t, http.MethodPost, "/game-session/child", map[string]any{
		"scopes": []string{"hytale:client"},
	}, pair.IdentityToken)
	require.Equal(t, http.StatusOK, rr.Code)

	child := decodeJSON[sessionsdk.SessionPairResponse](t, rr)
	_, c, _, _, err := jwtx.DecodeUnverified(child.IdentityToken)
	require.NoError(t, err)
	require.Equal(t, "u1", c.Subject)
	require.Equal(t, "hytale:client", c.Scope)
}

func TestSelfSignedBypassScenario(t *testing.T) {
	env := newTestEnv(t, true, false)

	// Offline client: keypair embedded in its own token header.
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	jwk := jwtx.NewEd25519JWK("", pub)
	jwk.D = base64.RawURLEncoding.EncodeToString(priv.Seed())

	claims := jwtx.NewClaims("u2", "https://client.local", "hytale:client", "self-1", time.Hour, time.Now().UTC())
	claims.Audience = "s-7"
	selfSigned, err := jwtx.Encode(jwtx.Header{JWK: &jwk}, claims, priv)
	require.NoError(t, err)

	rr := env.do(t, http.MethodPost, "/server-join/auth-token", map[string]string{
		"authorizationGrant": selfSigned,
		"x509Fingerprint":    "FP2",
	}, "")
	require.Equal(t, http.StatusOK, rr.Code)

	access := decodeJSON[sessionsdk.AccessTokenResponse](t, rr)
	_, ac, signingInput, sig, err := jwtx.DecodeUnverified(access.AccessToken)
	require.NoError(t, err)
	require.NoError(t, jwtx.VerifySignature(signingInput, sig, pub))
	require.Equal(t, "u2", ac.Subject)
	require.Equal(t, "s-7", ac.Audience)
	require.Equal(t, "FP2", ac.Confirmation.X5tS256)
}

func TestDeleteSessionIdempotent(t *testing.T) {
	env := newTestEnv(t, false, false)

	newRR := env.do(t, http.MethodPost, "/game-session/new", map[string]string{"uuid": "u1"}, "")
	pair := decodeJSON[sessionsdk.SessionPairResponse](t, newRR)

	require.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/game-session", nil, pair.SessionToken).Code)
	require.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/game-session", nil, pair.SessionToken).Code)
	require.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/game-session", nil, "").Code)
}

func TestGameProfile(t *testing.T) {
	env := newTestEnv(t, false, false)

	newRR := env.do(t, http.MethodPost, "/game-session/new", map[string]string{"uuid": "u1", "username": "Alice"}, "")
	pair := decodeJSON[sessionsdk.SessionPairResponse](t, newRR)

	rr := env.do(t, http.MethodGet, "/my-account/game-profile", nil, pair.IdentityToken)
	require.Equal(t, http.StatusOK, rr.Code)

	profile := decodeJSON[sessionsdk.GameProfileResponse](t, rr)
	require.Equal(t, "u1", profile.UUID)
	require.Equal(t, "Alice", profile.Username)
	require.NotNil(t, profile.Entitlements)

	require.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/my-account/game-profile", nil, "").Code)
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/my-account/game-profile", nil, "garbage").Code)
}

func TestUnknownPathReturns404ByDefault(t *testing.T) {
	env := newTestEnv(t, false, false)

	rr := env.do(t, http.MethodPost, "/totally/unknown", nil, "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "not_found", decodeJSON[sessionsdk.ErrorResponse](t, rr).Error)
}

func TestLegacyCatchAllMintsPair(t *testing.T) {
	env := newTestEnv(t, false, true)

	rr := env.do(t, http.MethodPost, "/totally/unknown", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		AuthorizationGrant string `json:"authorizationGrant"`
		AccessToken        string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AuthorizationGrant)
	require.NotEmpty(t, resp.AccessToken)

	// Both tokens are bound to the same synthetic audience.
	_, gc, _, _, err := jwtx.DecodeUnverified(resp.AuthorizationGrant)
	require.NoError(t, err)
	_, ac, _, _, err := jwtx.DecodeUnverified(resp.AccessToken)
	require.NoError(t, err)
	require.NotEmpty(t, gc.Audience)
	require.Equal(t, gc.Audience, ac.Audience)
}

func TestIssuerRedirect(t *testing.T) {
	env := newTestEnv(t, false, false)

	// Bearer issued for a sibling host inside the base domain.
	claims := jwtx.NewClaims("u1", "https://eu."+testDomain, "hytale:client", "j", time.Hour, time.Now().UTC())
	bearer, err := env.keys.SignClaims(claims)
	require.NoError(t, err)

	rr := env.do(t, http.MethodPost, "/game-session/refresh", nil, bearer)
	require.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	require.Equal(t, "https://eu."+testDomain+"/game-session/refresh", rr.Header().Get("Location"))

	// A foreign issuer must not trigger a redirect.
	claims.Issuer = "https://attacker.example"
	bearer, err = env.keys.SignClaims(claims)
	require.NoError(t, err)
	rr = env.do(t, http.MethodPost, "/game-session/refresh", nil, bearer)
	require.Equal(t, http.StatusOK, rr.Code)
}
