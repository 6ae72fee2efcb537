package httpx

import (
	"context"

	"github.com/sanasol-ws/dualauth/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeySubject ctxKey = "subject"
	CtxKeyClaims  ctxKey = "claims"
	CtxKeyBearer  ctxKey = "bearer"
)

// SubjectFromContext returns the player id the identity middleware attached,
// or empty when the request carried no usable bearer.
func SubjectFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeySubject).(string); ok {
		return v
	}
	return ""
}

// ClaimsFromContext returns the unverified bearer claims, if any.
func ClaimsFromContext(ctx context.Context) (jwtx.Claims, bool) {
	c, ok := ctx.Value(CtxKeyClaims).(jwtx.Claims)
	return c, ok
}

// BearerFromContext returns the raw bearer token, if any.
func BearerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyBearer).(string); ok {
		return v
	}
	return ""
}
