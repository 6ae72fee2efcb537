package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sanasol-ws/dualauth/internal/auth/federation"
	"github.com/sanasol-ws/dualauth/internal/auth/issuer"
	"github.com/sanasol-ws/dualauth/internal/auth/service"
	"github.com/sanasol-ws/dualauth/internal/auth/store"
	"github.com/sanasol-ws/dualauth/internal/metrics"
	"github.com/sanasol-ws/dualauth/pkg/httpx"
	"github.com/sanasol-ws/dualauth/pkg/jwtx"
	"github.com/sanasol-ws/dualauth/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeyStore
	resolver     *issuer.Resolver
	federation   *federation.Federation
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	SessionService  *service.SessionService
	ExchangeService *service.ExchangeService
	ProfileService  *service.ProfileService

	// IncludeForeignJWKS surfaces cached foreign keys through the discovery
	// endpoint for game servers that verify offline against a merged set.
	IncludeForeignJWKS bool

	// LegacyCatchAll preserves the development behavior where unknown paths
	// mint a grant/access pair for probing clients. Off means 404.
	LegacyCatchAll bool
}

func NewRouter(
	keys *jwtx.KeyStore,
	resolver *issuer.Resolver,
	fed *federation.Federation,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		resolver:     resolver,
		federation:   fed,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.IdentityContext(),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerDiscovery()
	r.registerSessions()
	r.registerServerJoin()
	r.registerAccount()
	r.registerSystem()
	r.registerCatchAll()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerDiscovery() {
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys, r.federation, r.IncludeForeignJWKS),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerSessions() {
	h := &SessionHandler{SessionService: r.SessionService}
	redirect := IssuerRedirect(r.resolver)

	// POST /game-session/new - strict limit, this mints tokens for anyone
	r.Mux.Handle("POST /game-session/new",
		httpx.Chain(http.HandlerFunc(h.HandleNew),
			redirect,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /game-session/refresh - keyed by subject once identified
	r.Mux.Handle("POST /game-session/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			redirect,
			httpx.RateLimitBySubject(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /game-session/child",
		httpx.Chain(http.HandlerFunc(h.HandleChild),
			redirect,
			httpx.RateLimitBySubject(httpx.ModerateLimit),
		),
	)

	authorizeHandler := &AuthorizeHandler{ExchangeService: r.ExchangeService}
	r.Mux.Handle("POST /game-session/authorize",
		httpx.Chain(authorizeHandler,
			redirect,
			httpx.RateLimitBySubject(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("DELETE /game-session",
		httpx.Chain(http.HandlerFunc(h.HandleDelete),
			redirect,
			httpx.RateLimitBySubject(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerServerJoin() {
	h := &ServerJoinHandler{ExchangeService: r.ExchangeService}
	r.Mux.Handle("POST /server-join/auth-token",
		httpx.Chain(h,
			IssuerRedirect(r.resolver),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerAccount() {
	h := &ProfileHandler{ProfileService: r.ProfileService}
	r.Mux.Handle("GET /my-account/game-profile",
		httpx.Chain(h,
			httpx.RateLimitBySubject(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /metrics", metrics.Handler())
}

func (r *Router) registerCatchAll() {
	if r.LegacyCatchAll {
		h := &CatchAllHandler{ExchangeService: r.ExchangeService}
		r.Mux.Handle("/", h)
		return
	}
	r.Mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(w, http.StatusNotFound, "not_found")
	})
}
