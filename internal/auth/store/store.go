package store

import (
	"context"
	"errors"

	"github.com/sanasol-ws/dualauth/internal/auth/domain"
)

var ErrNotFound = errors.New("store: not found")

// Store is the root data access interface for the session registry.
// Concrete drivers (sqlite for deployments, memory for tests) implement it.
// Reads may lag a concurrent write by one operation; callers treat a stale
// view of a racing refresh or delete as a no-op.
type Store interface {
	Sessions() Sessions
	Grants() Grants

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing store is still reachable.
	Ping(ctx context.Context) error
}

// Sessions holds one record per player id. Put replaces atomically.
type Sessions interface {
	Put(ctx context.Context, rec domain.SessionRecord) error
	Get(ctx context.Context, playerID string) (domain.SessionRecord, error)
	Delete(ctx context.Context, playerID string) error

	// DeleteByTokenID removes whichever session carries the given session
	// token id; used by bearer-driven deletes where only the jti is known.
	DeleteByTokenID(ctx context.Context, tokenID string) error
}

// Grants holds issued authorization grants keyed by their token id.
type Grants interface {
	Put(ctx context.Context, rec domain.GrantRecord) error
	Get(ctx context.Context, tokenID string) (domain.GrantRecord, error)
	Delete(ctx context.Context, tokenID string) error

	// DeleteExpired purges grants past their expiry; housekeeping calls
	// this periodically.
	DeleteExpired(ctx context.Context) (int64, error)
}
