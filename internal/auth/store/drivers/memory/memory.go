// Package memory is an in-memory session registry used by tests; its
// contents are lost when the process exits.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sanasol-ws/dualauth/internal/auth/domain"
	"github.com/sanasol-ws/dualauth/internal/auth/store"
)

// Store keeps sessions and grants in maps behind one mutex. Put and delete
// are atomic; reads see either the pre- or post-write state.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]domain.SessionRecord // player id -> record
	grants   map[string]domain.GrantRecord   // grant jti -> record
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]domain.SessionRecord),
		grants:   make(map[string]domain.GrantRecord),
	}
}

func (s *Store) Sessions() store.Sessions { return (*sessionsRepo)(s) }
func (s *Store) Grants() store.Grants     { return (*grantsRepo)(s) }

func (s *Store) ApplyMigrations() error       { return nil }
func (s *Store) Close() error                 { return nil }
func (s *Store) Ping(_ context.Context) error { return nil }

type sessionsRepo Store

func (r *sessionsRepo) Put(_ context.Context, rec domain.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[rec.PlayerID] = rec
	return nil
}

func (r *sessionsRepo) Get(_ context.Context, playerID string) (domain.SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.sessions[playerID]
	if !ok {
		return domain.SessionRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (r *sessionsRepo) Delete(_ context.Context, playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, playerID)
	return nil
}

func (r *sessionsRepo) DeleteByTokenID(_ context.Context, tokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for pid, rec := range r.sessions {
		if rec.TokenID == tokenID {
			delete(r.sessions, pid)
		}
	}
	return nil
}

type grantsRepo Store

func (r *grantsRepo) Put(_ context.Context, rec domain.GrantRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[rec.TokenID] = rec
	return nil
}

func (r *grantsRepo) Get(_ context.Context, tokenID string) (domain.GrantRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.grants[tokenID]
	if !ok {
		return domain.GrantRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (r *grantsRepo) Delete(_ context.Context, tokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.grants, tokenID)
	return nil
}

func (r *grantsRepo) DeleteExpired(_ context.Context) (int64, error) {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, rec := range r.grants {
		if rec.ExpiresAt.Before(now) {
			delete(r.grants, id)
			n++
		}
	}
	return n, nil
}
