package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/linkapp/backend/internal/db"
	"github.com/linkapp/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users and
// the friend graph. Friend and request sets are join tables keyed by the pair,
// so membership is unique by construction and symmetric updates run in one
// transaction.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, email, password_hash, first_name, last_name, image, verified, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, user.ID, user.Email, user.Password, user.FirstName, user.LastName, user.Image, user.Verified, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByEmail fetches a user by their email address. The graph sets are not
// populated; login and registration only need the credential columns.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, email, password_hash, first_name, last_name, image, verified, created_at, updated_at
        FROM users
        WHERE email = $1
    `, email)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by email: %w", err)
	}

	return user, nil
}

// Get fetches a user by id with the Friends and FriendRequests sets populated.
func (r *PostgresUserRepository) Get(ctx context.Context, userID string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, email, password_hash, first_name, last_name, image, verified, created_at, updated_at
        FROM users
        WHERE id = $1
    `, userID)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by id: %w", err)
	}

	user.Friends, err = queryIDs(ctx, conn, `SELECT friend_id FROM friendships WHERE user_id = $1`, userID)
	if err != nil {
		return models.User{}, fmt.Errorf("select friends: %w", err)
	}
	user.FriendRequests, err = queryIDs(ctx, conn, `SELECT requester_id FROM friend_requests WHERE owner_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return models.User{}, fmt.Errorf("select friend requests: %w", err)
	}

	return user, nil
}

// List returns every user with both graph sets populated so callers can
// classify each one against the viewer.
func (r *PostgresUserRepository) List(ctx context.Context) ([]models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, email, password_hash, first_name, last_name, image, verified, created_at, updated_at
        FROM users
    `)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	index := make(map[string]int)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		index[user.ID] = len(users)
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	friendRows, err := conn.Query(ctx, `SELECT user_id, friend_id FROM friendships`)
	if err != nil {
		return nil, fmt.Errorf("query friendships: %w", err)
	}
	defer friendRows.Close()
	for friendRows.Next() {
		var userID, friendID string
		if err := friendRows.Scan(&userID, &friendID); err != nil {
			return nil, fmt.Errorf("scan friendship: %w", err)
		}
		if i, ok := index[userID]; ok {
			users[i].Friends = append(users[i].Friends, friendID)
		}
	}
	if err := friendRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friendships: %w", err)
	}

	requestRows, err := conn.Query(ctx, `SELECT owner_id, requester_id FROM friend_requests`)
	if err != nil {
		return nil, fmt.Errorf("query friend requests: %w", err)
	}
	defer requestRows.Close()
	for requestRows.Next() {
		var ownerID, requesterID string
		if err := requestRows.Scan(&ownerID, &requesterID); err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		if i, ok := index[ownerID]; ok {
			users[i].FriendRequests = append(users[i].FriendRequests, requesterID)
		}
	}
	if err := requestRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend requests: %w", err)
	}

	return users, nil
}

// Update rewrites the user's mutable profile columns.
func (r *PostgresUserRepository) Update(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET first_name = $2, last_name = $3, image = $4, verified = $5, updated_at = $6
        WHERE id = $1
    `, user.ID, user.FirstName, user.LastName, user.Image, user.Verified, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1
    `, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// SetVerified marks the user's email address as verified.
func (r *PostgresUserRepository) SetVerified(ctx context.Context, userID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users SET verified = TRUE, updated_at = NOW() WHERE id = $1
    `, userID)
	if err != nil {
		return fmt.Errorf("set verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// AddRequest records an incoming friend request; duplicates are no-ops.
func (r *PostgresUserRepository) AddRequest(ctx context.Context, ownerID, fromID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO friend_requests (owner_id, requester_id, created_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (owner_id, requester_id) DO NOTHING
    `, ownerID, fromID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("insert friend request: %w", err)
	}

	return nil
}

// RemoveRequest deletes the pending request from owner's incoming set.
func (r *PostgresUserRepository) RemoveRequest(ctx context.Context, ownerID, fromID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM friend_requests WHERE owner_id = $1 AND requester_id = $2
    `, ownerID, fromID)
	if err != nil {
		return fmt.Errorf("delete friend request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// AddFriendship consumes the pending request and inserts the symmetric friend
// pair atomically.
func (r *PostgresUserRepository) AddFriendship(ctx context.Context, ownerID, friendID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin friendship transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
        DELETE FROM friend_requests WHERE owner_id = $1 AND requester_id = $2
    `, ownerID, friendID); err != nil {
		return fmt.Errorf("consume friend request: %w", err)
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO friendships (user_id, friend_id)
        VALUES ($1, $2), ($2, $1)
        ON CONFLICT (user_id, friend_id) DO NOTHING
    `, ownerID, friendID); err != nil {
		return fmt.Errorf("insert friendship: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit friendship: %w", err)
	}

	return nil
}

// RemoveFriendship deletes both directions of the pair atomically.
func (r *PostgresUserRepository) RemoveFriendship(ctx context.Context, userID, friendID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM friendships
        WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)
    `, userID, friendID)
	if err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Email, &user.Password, &user.FirstName, &user.LastName,
		&user.Image, &user.Verified, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryIDs(ctx context.Context, q querier, sql string, args ...any) ([]string, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ UserRepository = (*PostgresUserRepository)(nil)
