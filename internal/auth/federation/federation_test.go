package federation_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sanasol-ws/dualauth/internal/auth/federation"
	"github.com/sanasol-ws/dualauth/internal/auth/issuer"
	"github.com/sanasol-ws/dualauth/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newLocalKeys(t *testing.T) *jwtx.KeyStore {
	t.Helper()
	ks, err := jwtx.LoadOrCreateKeyStore(filepath.Join(t.TempDir(), "signing.json"), nil)
	require.NoError(t, err)
	return ks
}

func newResolver() *issuer.Resolver {
	return issuer.NewResolver("sessions.example.net", nil, []string{"sessions.hytale.com"})
}

// jwksServer serves a JWKS document and counts hits.
func jwksServer(t *testing.T, doc jwtx.JWKS, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/.well-known/jwks.json", r.URL.Path)
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestKeyForTokenEmbeddedWins(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	f := federation.New(newResolver(), newLocalKeys(t), federation.Config{}, nil, nil)

	jwk := jwtx.NewEd25519JWK("", pub)
	got, err := f.KeyForToken(context.Background(), jwtx.Header{Alg: jwtx.AlgEdDSA, JWK: &jwk}, "https://anything.example")
	require.NoError(t, err)
	require.True(t, pub.Equal(got))
}

func TestKeyForTokenLocal(t *testing.T) {
	local := newLocalKeys(t)
	f := federation.New(newResolver(), local, federation.Config{}, nil, nil)

	got, err := f.KeyForToken(context.Background(), jwtx.Header{Alg: jwtx.AlgEdDSA, Kid: local.KID()}, "https://sessions.example.net")
	require.NoError(t, err)
	require.True(t, local.Public().Equal(got))

	_, err = f.KeyForToken(context.Background(), jwtx.Header{Alg: jwtx.AlgEdDSA, Kid: "someone-else"}, "https://sessions.example.net")
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)
}

func TestKeyForTokenOfficialIsNotFetched(t *testing.T) {
	f := federation.New(newResolver(), newLocalKeys(t), federation.Config{}, nil, nil)

	_, err := f.KeyForToken(context.Background(), jwtx.Header{Alg: jwtx.AlgEdDSA, Kid: "vendor-key"}, "https://sessions.hytale.com")
	require.ErrorIs(t, err, jwtx.ErrNoKey)
}

func TestForeignFetchAndCache(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var hits atomic.Int32
	srv := jwksServer(t, jwtx.JWKS{Keys: []jwtx.JWK{jwtx.NewEd25519JWK("peer-k1", pub)}}, &hits)

	f := federation.New(newResolver(), newLocalKeys(t), federation.Config{}, srv.Client(), nil)

	got, err := f.KeyForToken(context.Background(), jwtx.Header{Alg: jwtx.AlgEdDSA, Kid: "peer-k1"}, srv.URL)
	require.NoError(t, err)
	require.True(t, pub.Equal(got))
	require.EqualValues(t, 1, hits.Load())

	// Second lookup within the TTL must not refetch.
	_, err = f.KeyForToken(context.Background(), jwtx.Header{Alg: jwtx.AlgEdDSA, Kid: "peer-k1"}, srv.URL)
	require.NoError(t, err)
	require.EqualValues(t, 1, hits.Load())

	merged := f.MergedJWKS()
	require.Len(t, merged.Keys, 2)
}

func TestForeignSingleFlight(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var hits atomic.Int32
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(50 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(jwtx.JWKS{Keys: []jwtx.JWK{jwtx.NewEd25519JWK("peer-k1", pub)}})
	}))
	defer slow.Close()

	f := federation.New(newResolver(), newLocalKeys(t), federation.Config{}, slow.Client(), nil)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := f.KeyForToken(context.Background(), jwtx.Header{Alg: jwtx.AlgEdDSA, Kid: "peer-k1"}, slow.URL)
			if err == nil && !pub.Equal(got) {
				err = jwtx.ErrInvalidSig
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	require.EqualValues(t, 1, hits.Load(), "concurrent misses must coalesce into one fetch")
}

func TestForeignNegativeCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := federation.New(newResolver(), newLocalKeys(t), federation.Config{NegativeTTL: time.Minute}, srv.Client(), nil)

	_, err := f.KeyForToken(context.Background(), jwtx.Header{Alg: jwtx.AlgEdDSA, Kid: "k"}, srv.URL)
	require.ErrorIs(t, err, jwtx.ErrNoKey)
	require.EqualValues(t, 1, hits.Load())

	// Held back by the negative cache; no second round-trip.
	_, err = f.KeyForToken(context.Background(), jwtx.Header{Alg: jwtx.AlgEdDSA, Kid: "k"}, srv.URL)
	require.ErrorIs(t, err, jwtx.ErrNoKey)
	require.EqualValues(t, 1, hits.Load())

	f.Invalidate(srv.URL)
	_, _ = f.KeyForToken(context.Background(), jwtx.Header{Alg: jwtx.AlgEdDSA, Kid: "k"}, srv.URL)
	require.EqualValues(t, 2, hits.Load())
}

func TestForeignUnknownKidAfterFetch(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var hits atomic.Int32
	srv := jwksServer(t, jwtx.JWKS{Keys: []jwtx.JWK{jwtx.NewEd25519JWK("other-kid", pub)}}, &hits)

	f := federation.New(newResolver(), newLocalKeys(t), federation.Config{}, srv.Client(), nil)

	_, err = f.KeyForToken(context.Background(), jwtx.Header{Alg: jwtx.AlgEdDSA, Kid: "missing"}, srv.URL)
	require.ErrorIs(t, err, jwtx.ErrNoKey)
	require.EqualValues(t, 1, hits.Load())

	// The fetched document is still useful for the kid it does carry.
	got, err := f.KeyForToken(context.Background(), jwtx.Header{Alg: jwtx.AlgEdDSA, Kid: "other-kid"}, srv.URL)
	require.NoError(t, err)
	require.True(t, pub.Equal(got))
	require.EqualValues(t, 1, hits.Load())
}
