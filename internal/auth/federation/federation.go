// Package federation resolves verification keys for tokens from foreign
// issuers by fetching and caching their JWKS discovery documents.
package federation

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/sanasol-ws/dualauth/internal/auth/issuer"
	"github.com/sanasol-ws/dualauth/internal/metrics"
	"github.com/sanasol-ws/dualauth/pkg/jwtx"
)

const wellKnownPath = "/.well-known/jwks.json"

// maxJWKSBody bounds how much of a discovery document we are willing to read.
const maxJWKSBody = 1 << 20

var errParse = errors.New("federation: unparseable jwks document")

// Config tunes the foreign key cache.
type Config struct {
	CacheTTL     time.Duration // positive-entry lifetime (default 1h)
	NegativeTTL  time.Duration // retry hold-off after a failed fetch (default 30s)
	FetchTimeout time.Duration // hard deadline per outbound fetch (default 5s)
	CacheSize    int           // LRU capacity (default 256 keys)
}

func (c *Config) defaults() {
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.NegativeTTL <= 0 {
		c.NegativeTTL = 30 * time.Second
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 5 * time.Second
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 256
	}
}

type foreignKey struct {
	jwk       jwtx.JWK
	pub       ed25519.PublicKey
	issuer    string
	fetchedAt time.Time
}

// Federation owns the foreign-key cache. Many verifiers read it; only the
// fetch path mutates it, with concurrent misses per issuer coalesced into a
// single outbound request.
type Federation struct {
	resolver *issuer.Resolver
	local    *jwtx.KeyStore
	client   *http.Client
	cfg      Config
	logger   *slog.Logger

	keys     *expirable.LRU[string, foreignKey]
	negative *gocache.Cache
	group    singleflight.Group
}

// New builds a Federation around the local key store and issuer resolver.
// A nil httpClient gets a default client; the fetch deadline is enforced
// per-request either way.
func New(r *issuer.Resolver, local *jwtx.KeyStore, cfg Config, httpClient *http.Client, logger *slog.Logger) *Federation {
	cfg.defaults()
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.FetchTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Federation{
		resolver: r,
		local:    local,
		client:   httpClient,
		cfg:      cfg,
		logger:   logger,
		keys:     expirable.NewLRU[string, foreignKey](cfg.CacheSize, nil, cfg.CacheTTL),
		negative: gocache.New(cfg.NegativeTTL, 5*time.Minute),
	}
}

// KeyForToken locates the verification key for a token header and issuer:
// embedded keys win, then the local key by kid, then the foreign cache with
// an on-demand JWKS fetch. Official issuers are handled by the vendor
// verification path and report ErrNoKey here. All fetch failures collapse
// into ErrNoKey: the caller simply fails to find a key and rejects.
func (f *Federation) KeyForToken(ctx context.Context, h jwtx.Header, iss string) (ed25519.PublicKey, error) {
	if h.JWK != nil && h.JWK.IsEd25519() {
		return h.JWK.PublicKey()
	}

	switch f.resolver.Classify(iss) {
	case issuer.ClassLocal:
		if h.Kid != "" && h.Kid == f.local.KID() {
			return f.local.Public(), nil
		}
		return nil, jwtx.ErrUnknownKID
	case issuer.ClassOfficial:
		return nil, jwtx.ErrNoKey
	}

	return f.foreignKey(ctx, iss, h.Kid)
}

func (f *Federation) foreignKey(ctx context.Context, iss, kid string) (ed25519.PublicKey, error) {
	if kid == "" {
		return nil, jwtx.ErrUnknownKID
	}

	cacheKey := iss + "|" + kid
	if k, ok := f.keys.Get(cacheKey); ok {
		return k.pub, nil
	}
	if _, held := f.negative.Get(iss); held {
		return nil, jwtx.ErrNoKey
	}

	// Coalesce concurrent misses for the same issuer: one fetch populates
	// every kid the document carries.
	_, err, _ := f.group.Do(iss, func() (any, error) {
		// A just-finished flight may have filled the cache between our
		// miss and this closure running.
		if _, ok := f.keys.Get(cacheKey); ok {
			return nil, nil
		}
		if _, held := f.negative.Get(iss); held {
			return nil, jwtx.ErrNoKey
		}
		return nil, f.fetch(ctx, iss)
	})
	if err != nil {
		if !errors.Is(err, errParse) && !errors.Is(err, jwtx.ErrNoKey) {
			f.negative.Set(iss, struct{}{}, f.cfg.NegativeTTL)
		}
		f.logger.Debug("jwks fetch failed", "issuer", iss, "err", err)
		return nil, jwtx.ErrNoKey
	}

	if k, ok := f.keys.Get(cacheKey); ok {
		return k.pub, nil
	}

	// The document came back fine but doesn't carry this kid; hold off
	// before asking the same issuer again.
	f.negative.Set(iss, struct{}{}, f.cfg.NegativeTTL)
	return nil, jwtx.ErrNoKey
}

func (f *Federation) fetch(ctx context.Context, iss string) error {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
	defer cancel()

	url := strings.TrimSuffix(iss, "/") + wellKnownPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		metrics.JWKSFetches.WithLabelValues("error").Inc()
		return fmt.Errorf("federation: build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		metrics.JWKSFetches.WithLabelValues("error").Inc()
		return fmt.Errorf("federation: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.JWKSFetches.WithLabelValues("error").Inc()
		return fmt.Errorf("federation: fetch %s: status %d", url, resp.StatusCode)
	}

	var doc jwtx.JWKS
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBody)).Decode(&doc); err != nil {
		metrics.JWKSFetches.WithLabelValues("parse_error").Inc()
		return fmt.Errorf("%w: %s", errParse, iss)
	}

	now := time.Now()
	added := 0
	for _, j := range doc.Keys {
		if !j.IsEd25519() || j.Kid == "" {
			continue
		}
		pub, err := j.PublicKey()
		if err != nil {
			continue
		}
		f.keys.Add(iss+"|"+j.Kid, foreignKey{
			jwk:       j.Public(),
			pub:       pub,
			issuer:    iss,
			fetchedAt: now,
		})
		added++
	}

	metrics.JWKSFetches.WithLabelValues("ok").Inc()
	f.logger.Info("jwks fetched", "issuer", iss, "keys", added)
	return nil
}

// Invalidate drops all cached keys for an issuer.
func (f *Federation) Invalidate(iss string) {
	prefix := iss + "|"
	for _, k := range f.keys.Keys() {
		if strings.HasPrefix(k, prefix) {
			f.keys.Remove(k)
		}
	}
	f.negative.Delete(iss)
}

// MergedJWKS returns the local public key plus every cached, unexpired
// foreign key. Consumers that cannot issue per-token lookups (a game server
// verifying offline) read this set. Official keys are referenced by the
// vendor path and never surfaced here.
func (f *Federation) MergedJWKS() jwtx.JWKS {
	out := jwtx.JWKS{Keys: []jwtx.JWK{f.local.PublicJWK()}}
	for _, k := range f.keys.Values() {
		out.Keys = append(out.Keys, k.jwk)
	}
	return out
}
