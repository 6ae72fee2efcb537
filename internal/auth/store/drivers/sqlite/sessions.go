package sqlite

import (
	"context"
	"database/sql"

	"github.com/sanasol-ws/dualauth/internal/auth/domain"
)

type sessionsRepo struct {
	db *sql.DB
}

func (r *sessionsRepo) Put(ctx context.Context, rec domain.SessionRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (player_id, token_id, issuer, audience, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(player_id) DO UPDATE SET
			token_id = excluded.token_id,
			issuer = excluded.issuer,
			audience = excluded.audience,
			created_at = excluded.created_at`,
		rec.PlayerID, rec.TokenID, rec.Issuer, rec.Audience, rec.CreatedAt.UTC())
	return err
}

func (r *sessionsRepo) Get(ctx context.Context, playerID string) (domain.SessionRecord, error) {
	var rec domain.SessionRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT player_id, token_id, issuer, audience, created_at
		FROM sessions WHERE player_id = ?`, playerID).
		Scan(&rec.PlayerID, &rec.TokenID, &rec.Issuer, &rec.Audience, &rec.CreatedAt)
	if err != nil {
		return domain.SessionRecord{}, mapNotFound(err)
	}
	return rec, nil
}

func (r *sessionsRepo) Delete(ctx context.Context, playerID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE player_id = ?`, playerID)
	return err
}

func (r *sessionsRepo) DeleteByTokenID(ctx context.Context, tokenID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_id = ?`, tokenID)
	return err
}
