package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sanasol-ws/dualauth/internal/auth/domain"
	"github.com/sanasol-ws/dualauth/internal/auth/issuer"
	"github.com/sanasol-ws/dualauth/internal/auth/store"
	"github.com/sanasol-ws/dualauth/internal/metrics"
	"github.com/sanasol-ws/dualauth/pkg/idx"
	"github.com/sanasol-ws/dualauth/pkg/jwtx"
	"github.com/sanasol-ws/dualauth/pkg/slogx"
)

// DefaultUsername is used when a caller opens a session without naming one.
const DefaultUsername = "Player"

// SessionService drives the session half of the exchange state machine:
// none -> identified, plus refresh, child sessions and delete.
type SessionService struct {
	Keys       *jwtx.KeyStore
	Resolver   *issuer.Resolver
	Store      store.Store
	SessionTTL time.Duration
	Recorder   *metrics.Recorder
}

func (s *SessionService) ttl() time.Duration {
	if s.SessionTTL > 0 {
		return s.SessionTTL
	}
	return jwtx.DefaultTokenTTL
}

// NewSession issues a fresh {identity, session} pair and registers the
// session. Both player id and username are optional; absent values fall
// back to a generated id and the default name.
func (s *SessionService) NewSession(ctx context.Context, host, playerID, username string) (*domain.SessionPair, error) {
	if playerID == "" {
		playerID = uuid.NewString()
	}
	if username == "" {
		username = DefaultUsername
	}
	pair, err := s.issuePair(ctx, host, playerID, username, domain.DefaultScope)
	if err != nil {
		return nil, err
	}
	s.record("new")
	return pair, nil
}

// RefreshSession issues a fresh pair for the subject carried in the
// presented token. The signature is deliberately NOT re-verified: refresh
// is an availability primitive and the transport authenticates the caller.
// An unparseable token falls back to the request's contextual subject so a
// broken refresh never locks a client out.
func (s *SessionService) RefreshSession(ctx context.Context, host, presented, fallbackSubject string) (*domain.SessionPair, error) {
	subject := fallbackSubject
	username := ""
	scope := domain.DefaultScope

	if presented != "" {
		if _, c, _, _, err := jwtx.DecodeUnverified(presented); err == nil {
			if c.Subject != "" {
				subject = c.Subject
			}
			if c.Username != "" {
				username = c.Username
			} else if c.Name != "" {
				username = c.Name
			}
			if c.Scope != "" {
				scope = c.Scope
			}
		} else {
			slogx.FromContext(ctx).Warn("refresh with unparseable token, using contextual subject")
		}
	}

	if subject == "" {
		subject = uuid.NewString()
	}
	if username == "" {
		username = DefaultUsername
	}

	pair, err := s.issuePair(ctx, host, subject, username, scope)
	if err != nil {
		return nil, err
	}
	s.record("refresh")
	return pair, nil
}

// ChildSession issues a scope-narrowed pair for an already-identified
// caller. The child inherits the session TTL.
func (s *SessionService) ChildSession(ctx context.Context, host, subject, username string, scopes domain.Scopes) (*domain.SessionPair, error) {
	if subject == "" {
		subject = uuid.NewString()
	}
	if username == "" {
		username = DefaultUsername
	}
	pair, err := s.issuePair(ctx, host, subject, username, scopes.Normalize())
	if err != nil {
		return nil, err
	}
	s.record("child")
	return pair, nil
}

// DeleteSession removes the session named by the presented token. It always
// succeeds from the caller's point of view: deleting a missing or
// unparseable session is a no-op, and a failed store delete is logged but
// not surfaced.
func (s *SessionService) DeleteSession(ctx context.Context, presented string) {
	if presented == "" {
		return
	}
	_, c, _, _, err := jwtx.DecodeUnverified(presented)
	if err != nil {
		return
	}

	log := slogx.FromContext(ctx)
	if c.ID != "" {
		if err := s.Store.Sessions().DeleteByTokenID(ctx, c.ID); err != nil {
			log.Error("session delete by token id failed", "err", err)
		}
	} else if c.Subject != "" {
		if err := s.Store.Sessions().Delete(ctx, c.Subject); err != nil {
			log.Error("session delete failed", "err", err)
		}
	}
	s.record("delete")
}

func (s *SessionService) issuePair(ctx context.Context, host, playerID, username, scope string) (*domain.SessionPair, error) {
	now := time.Now().UTC()
	ttl := s.ttl()
	iss := s.Resolver.ResolveForRequest(host)

	identityClaims := jwtx.NewClaims(playerID, iss, scope, idx.New().String(), ttl, now)
	identityClaims.Name = username
	identityClaims.Username = username

	sessionClaims := jwtx.NewClaims(playerID, iss, scope, idx.New().String(), ttl, now)
	sessionClaims.Username = username

	identityToken, err := s.Keys.SignClaims(identityClaims)
	if err != nil {
		return nil, fmt.Errorf("sign identity token: %w", err)
	}
	sessionToken, err := s.Keys.SignClaims(sessionClaims)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	// The session must be visible before the tokens leave the building.
	rec := domain.SessionRecord{
		PlayerID:  playerID,
		TokenID:   sessionClaims.ID,
		Issuer:    iss,
		CreatedAt: now,
	}
	if err := s.Store.Sessions().Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: register session: %v", ErrPersistenceFatal, err)
	}

	if s.Recorder != nil {
		s.Recorder.Record(func() {
			metrics.TokensIssued.WithLabelValues("identity").Inc()
			metrics.TokensIssued.WithLabelValues("session").Inc()
		})
	}

	return &domain.SessionPair{
		IdentityToken: identityToken,
		SessionToken:  sessionToken,
		ExpiresAt:     now.Add(ttl),
	}, nil
}

func (s *SessionService) record(op string) {
	if s.Recorder != nil {
		s.Recorder.Record(func() { metrics.SessionOps.WithLabelValues(op).Inc() })
	}
}
