package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/sanasol-ws/dualauth/pkg/jwtx"
)

// BearerToken extracts the raw bearer token from the Authorization header.
func BearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))
}

// IdentityContext decodes the bearer token (without verifying its signature)
// and attaches the raw token, claims and subject to the request context.
// Handlers that need cryptographic assurance verify on their own; the
// context identity exists so availability primitives like refresh still know
// who the caller claims to be when the token itself is unusable.
func IdentityContext() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), CtxKeyBearer, raw)
			if _, claims, _, _, err := jwtx.DecodeUnverified(raw); err == nil {
				ctx = context.WithValue(ctx, CtxKeyClaims, claims)
				if claims.Subject != "" {
					ctx = context.WithValue(ctx, CtxKeySubject, claims.Subject)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
