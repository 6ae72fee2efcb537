package http

import (
	"net/http"
	"strings"

	"github.com/sanasol-ws/dualauth/internal/auth/issuer"
	"github.com/sanasol-ws/dualauth/pkg/httpx"
)

// IssuerRedirect replies 307 to the same path on the issuer's host when the
// bearer token was issued by a sibling host of this deployment. Only hosts
// that resolve back into the base domain are redirect targets; a bearer
// naming an arbitrary foreign host must not turn this into an open redirect.
func IssuerRedirect(resolver *issuer.Resolver) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := httpx.ClaimsFromContext(r.Context())
			if !ok || claims.Issuer == "" {
				next.ServeHTTP(w, r)
				return
			}

			// A locally-classified issuer IS this deployment, whatever
			// host the request arrived through.
			if resolver.Classify(claims.Issuer) == issuer.ClassLocal {
				next.ServeHTTP(w, r)
				return
			}

			issHost := issuer.Host(claims.Issuer)
			reqHost := strings.ToLower(issuer.StripPort(r.Host))
			if issHost == "" || issHost == reqHost {
				next.ServeHTTP(w, r)
				return
			}

			// Same-family check: the issuer host must itself resolve as an
			// in-domain issuer.
			if resolver.ResolveForRequest(issHost) != "https://"+issHost {
				next.ServeHTTP(w, r)
				return
			}

			target := "https://" + issHost + r.URL.RequestURI()
			http.Redirect(w, r, target, http.StatusTemporaryRedirect)
		})
	}
}
