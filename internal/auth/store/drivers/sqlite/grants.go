package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/sanasol-ws/dualauth/internal/auth/domain"
)

type grantsRepo struct {
	db *sql.DB
}

func (r *grantsRepo) Put(ctx context.Context, rec domain.GrantRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO grants (token_id, player_id, audience, issued_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(token_id) DO UPDATE SET
			player_id = excluded.player_id,
			audience = excluded.audience,
			issued_at = excluded.issued_at,
			expires_at = excluded.expires_at`,
		rec.TokenID, rec.PlayerID, rec.Audience, rec.IssuedAt.UTC(), rec.ExpiresAt.UTC())
	return err
}

func (r *grantsRepo) Get(ctx context.Context, tokenID string) (domain.GrantRecord, error) {
	var rec domain.GrantRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT token_id, player_id, audience, issued_at, expires_at
		FROM grants WHERE token_id = ?`, tokenID).
		Scan(&rec.TokenID, &rec.PlayerID, &rec.Audience, &rec.IssuedAt, &rec.ExpiresAt)
	if err != nil {
		return domain.GrantRecord{}, mapNotFound(err)
	}
	return rec, nil
}

func (r *grantsRepo) Delete(ctx context.Context, tokenID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM grants WHERE token_id = ?`, tokenID)
	return err
}

func (r *grantsRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM grants WHERE expires_at < ?`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
