package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/linkapp/backend/internal/auth"
	"github.com/linkapp/backend/internal/db"
	"github.com/linkapp/backend/internal/models"
)

// PostgresTokenStore persists refresh and password-reset tokens. Expired rows
// are swept opportunistically during lookups rather than by a background job,
// so the table cannot grow without bound even when tokens are never revoked.
type PostgresTokenStore struct {
	pool db.Pool
	now  func() time.Time
}

// NewPostgresTokenStore constructs a token store backed by PostgreSQL.
func NewPostgresTokenStore(pool db.Pool) *PostgresTokenStore {
	return &PostgresTokenStore{pool: pool, now: time.Now}
}

// Save upserts the token record. Re-issuing the same token string replaces the
// previous row.
func (s *PostgresTokenStore) Save(ctx context.Context, record models.TokenRecord) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO tokens (token, kind, user_id, expires_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (token) DO UPDATE SET kind = $2, user_id = $3, expires_at = $4
    `, record.Token, record.Kind, record.UserID, record.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}

	return nil
}

// Find returns the live record for the token, sweeping any expired rows first
// so a token past its expiry reads as absent.
func (s *PostgresTokenStore) Find(ctx context.Context, token string) (models.TokenRecord, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return models.TokenRecord{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `DELETE FROM tokens WHERE expires_at <= $1`, s.now()); err != nil {
		return models.TokenRecord{}, fmt.Errorf("sweep expired tokens: %w", err)
	}

	rows, err := conn.Query(ctx, `
        SELECT token, kind, user_id, expires_at FROM tokens WHERE token = $1
    `, token)
	if err != nil {
		return models.TokenRecord{}, fmt.Errorf("select token: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return models.TokenRecord{}, fmt.Errorf("select token: %w", err)
		}
		return models.TokenRecord{}, auth.ErrRecordNotFound
	}

	var record models.TokenRecord
	if err := rows.Scan(&record.Token, &record.Kind, &record.UserID, &record.ExpiresAt); err != nil {
		return models.TokenRecord{}, fmt.Errorf("scan token: %w", err)
	}

	return record, nil
}

// Delete removes the token record, reporting auth.ErrRecordNotFound when no
// row exists.
func (s *PostgresTokenStore) Delete(ctx context.Context, token string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM tokens WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrRecordNotFound
	}

	return nil
}

// DeleteByUser revokes every persisted token held by the user.
func (s *PostgresTokenStore) DeleteByUser(ctx context.Context, userID string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `DELETE FROM tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete tokens by user: %w", err)
	}

	return nil
}

var _ auth.TokenStore = (*PostgresTokenStore)(nil)
