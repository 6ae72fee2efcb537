package http

import (
	"net/http"

	"github.com/sanasol-ws/dualauth/internal/auth/federation"
	"github.com/sanasol-ws/dualauth/pkg/httpx"
	"github.com/sanasol-ws/dualauth/pkg/jwtx"
)

// JWKSHandler exposes the JSON Web Key Set for public key discovery.
// By default only the local signing key is published; with includeForeign
// the cached federation keys are merged in, which is what a patched game
// server expects when it fetches one unified set.
func JWKSHandler(keys *jwtx.KeyStore, fed *federation.Federation, includeForeign bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if includeForeign {
			httpx.WriteJSON(w, http.StatusOK, fed.MergedJWKS())
			return
		}
		httpx.WriteJSON(w, http.StatusOK, jwtx.JWKS{Keys: []jwtx.JWK{keys.PublicJWK()}})
	}
}
