package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	insertRefreshSQL = `INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?, ?, ?)`
	// a live token is unrevoked and unexpired at the caller's clock
	liveRefreshSQL = `SELECT user_id FROM refresh_tokens
		WHERE token_hash = ? AND revoked_at IS NULL AND expires_at > ? LIMIT 1`
	revokeRefreshSQL = `UPDATE refresh_tokens SET revoked_at = ? WHERE token_hash = ? AND revoked_at IS NULL`
	purgeRefreshSQL  = `DELETE FROM refresh_tokens
		WHERE expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)`
)

// TokenRepo stores refresh tokens by their sha256 hash; the raw token
// never reaches the database.
type TokenRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewTokenRepo(db *sql.DB) *TokenRepo {
	return &TokenRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	if _, err := r.db.ExecContext(ctx, insertRefreshSQL, userID, tokenHash, exp.UTC()); err != nil {
		return fmt.Errorf("store refresh token for user %d: %w", userID, err)
	}
	return nil
}

// ValidateRefresh returns the owner of a live token.  Unknown, expired and
// revoked tokens all give sql.ErrNoRows.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	var userID uint64
	err := r.db.QueryRowContext(ctx, liveRefreshSQL, tokenHash, r.now()).Scan(&userID)
	if err != nil {
		return 0, err
	}
	return userID, nil
}

// RevokeByHash revokes a token.  Revoking twice is a no-op.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	if _, err := r.db.ExecContext(ctx, revokeRefreshSQL, r.now(), tokenHash); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// DeleteExpired removes tokens that expired or were revoked before cutoff.
func (r *TokenRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, purgeRefreshSQL, cutoff, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	return res.RowsAffected()
}
