package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sanasol-ws/dualauth/internal/auth/domain"
	"github.com/sanasol-ws/dualauth/internal/auth/store"
	"github.com/sanasol-ws/dualauth/internal/auth/store/drivers/sqlite"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.NewStore("file:" + filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	return st
}

func TestSessionsPutGetDelete(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec := domain.SessionRecord{
		PlayerID:  "u1",
		TokenID:   "jti-1",
		Issuer:    "https://sessions.example.net",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, st.Sessions().Put(ctx, rec))

	got, err := st.Sessions().Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, rec.TokenID, got.TokenID)
	require.Equal(t, rec.Issuer, got.Issuer)
	require.Empty(t, got.Audience)

	// Put replaces the record for the same player.
	rec.TokenID = "jti-2"
	rec.Audience = "s-1"
	require.NoError(t, st.Sessions().Put(ctx, rec))

	got, err = st.Sessions().Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "jti-2", got.TokenID)
	require.Equal(t, "s-1", got.Audience)

	require.NoError(t, st.Sessions().Delete(ctx, "u1"))
	_, err = st.Sessions().Get(ctx, "u1")
	require.ErrorIs(t, err, store.ErrNotFound)

	// Deleting again is a no-op, not an error.
	require.NoError(t, st.Sessions().Delete(ctx, "u1"))
}

func TestSessionsDeleteByTokenID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Sessions().Put(ctx, domain.SessionRecord{
		PlayerID: "u1", TokenID: "jti-1", Issuer: "https://x", CreatedAt: time.Now().UTC(),
	}))

	require.NoError(t, st.Sessions().DeleteByTokenID(ctx, "jti-1"))
	_, err := st.Sessions().Get(ctx, "u1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestGrantsLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	live := domain.GrantRecord{
		TokenID: "g1", PlayerID: "u1", Audience: "s-1",
		IssuedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	expired := domain.GrantRecord{
		TokenID: "g2", PlayerID: "u1", Audience: "s-2",
		IssuedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}
	require.NoError(t, st.Grants().Put(ctx, live))
	require.NoError(t, st.Grants().Put(ctx, expired))

	got, err := st.Grants().Get(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, "s-1", got.Audience)

	n, err := st.Grants().DeleteExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = st.Grants().Get(ctx, "g2")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Grants().Get(ctx, "g1")
	require.NoError(t, err)
}
