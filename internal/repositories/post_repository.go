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

// PostgresPostRepository provides PostgreSQL-backed persistence for posts,
// comments, and likes. Read paths return fully resolved views with author
// profiles, like sets, and comment threads attached.
type PostgresPostRepository struct {
	pool db.Pool
}

// NewPostgresPostRepository constructs a post repository backed by PostgreSQL.
func NewPostgresPostRepository(pool db.Pool) *PostgresPostRepository {
	return &PostgresPostRepository{pool: pool}
}

// Create persists a new post.
func (r *PostgresPostRepository) Create(ctx context.Context, post models.Post) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO posts (id, author_id, content, markdown, math, image, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, post.ID, post.AuthorID, post.Content, post.Markdown, post.Math, post.Image, post.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert post: %w", err)
	}

	return nil
}

// Get fetches a single post view by id.
func (r *PostgresPostRepository) Get(ctx context.Context, postID string) (models.PostView, error) {
	views, err := r.queryViews(ctx, `WHERE p.id = $1`, postID)
	if err != nil {
		return models.PostView{}, err
	}
	if len(views) == 0 {
		return models.PostView{}, ErrNotFound
	}
	return views[0], nil
}

// Update rewrites the post's mutable columns.
func (r *PostgresPostRepository) Update(ctx context.Context, post models.Post) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE posts SET content = $2, markdown = $3, math = $4, image = $5 WHERE id = $1
    `, post.ID, post.Content, post.Markdown, post.Math, post.Image)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes the post; likes and comments cascade at the schema level.
func (r *PostgresPostRepository) Delete(ctx context.Context, postID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM posts WHERE id = $1`, postID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ListByAuthor returns the author's posts in ascending creation order.
func (r *PostgresPostRepository) ListByAuthor(ctx context.Context, authorID string) ([]models.PostView, error) {
	return r.queryViews(ctx, `WHERE p.author_id = $1 ORDER BY p.created_at`, authorID)
}

// Feed returns the user's own posts plus their friends' posts in ascending
// creation order.
func (r *PostgresPostRepository) Feed(ctx context.Context, userID string) ([]models.PostView, error) {
	return r.queryViews(ctx, `
        WHERE p.author_id = $1
           OR p.author_id IN (SELECT friend_id FROM friendships WHERE user_id = $1)
        ORDER BY p.created_at
    `, userID)
}

// Like records the user's like; liking twice is a no-op.
func (r *PostgresPostRepository) Like(ctx context.Context, postID, userID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO post_likes (post_id, user_id) VALUES ($1, $2)
        ON CONFLICT (post_id, user_id) DO NOTHING
    `, postID, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("insert like: %w", err)
	}

	return nil
}

// Unlike removes the user's like; removing an absent like is a no-op.
func (r *PostgresPostRepository) Unlike(ctx context.Context, postID, userID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `
        DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2
    `, postID, userID); err != nil {
		return fmt.Errorf("delete like: %w", err)
	}

	return nil
}

// AddComment persists a new comment on a post.
func (r *PostgresPostRepository) AddComment(ctx context.Context, comment models.Comment) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO comments (id, post_id, author_id, content, markdown, math, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, comment.ID, comment.PostID, comment.AuthorID, comment.Content, comment.Markdown, comment.Math, comment.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert comment: %w", err)
	}

	return nil
}

// GetComment fetches a single comment by id.
func (r *PostgresPostRepository) GetComment(ctx context.Context, commentID string) (models.Comment, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Comment{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var comment models.Comment
	err = conn.QueryRow(ctx, `
        SELECT id, post_id, author_id, content, markdown, math, created_at
        FROM comments WHERE id = $1
    `, commentID).Scan(&comment.ID, &comment.PostID, &comment.AuthorID,
		&comment.Content, &comment.Markdown, &comment.Math, &comment.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Comment{}, ErrNotFound
		}
		return models.Comment{}, fmt.Errorf("select comment: %w", err)
	}

	return comment, nil
}

// UpdateComment rewrites the comment's content columns.
func (r *PostgresPostRepository) UpdateComment(ctx context.Context, comment models.Comment) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE comments SET content = $2, markdown = $3, math = $4 WHERE id = $1
    `, comment.ID, comment.Content, comment.Markdown, comment.Math)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteComment removes the comment.
func (r *PostgresPostRepository) DeleteComment(ctx context.Context, commentID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM comments WHERE id = $1`, commentID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// queryViews selects posts matching the given filter clause and resolves each
// into a full view: author profile, like set, and comments with their authors.
func (r *PostgresPostRepository) queryViews(ctx context.Context, filter string, args ...any) ([]models.PostView, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT p.id, p.author_id, p.content, p.markdown, p.math, p.image, p.created_at,
               u.first_name, u.last_name, u.image
        FROM posts p
        JOIN users u ON u.id = p.author_id
        `+filter, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var views []models.PostView
	index := make(map[string]int)
	for rows.Next() {
		var view models.PostView
		if err := rows.Scan(&view.ID, &view.AuthorID, &view.Content, &view.Markdown,
			&view.Math, &view.Image, &view.CreatedAt,
			&view.Author.FirstName, &view.Author.LastName, &view.Author.Image); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		view.Author.ID = view.AuthorID
		index[view.ID] = len(views)
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	if len(views) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.ID)
	}

	likeRows, err := conn.Query(ctx, `
        SELECT post_id, user_id FROM post_likes WHERE post_id = ANY($1)
    `, ids)
	if err != nil {
		return nil, fmt.Errorf("query likes: %w", err)
	}
	defer likeRows.Close()
	for likeRows.Next() {
		var postID, userID string
		if err := likeRows.Scan(&postID, &userID); err != nil {
			return nil, fmt.Errorf("scan like: %w", err)
		}
		if i, ok := index[postID]; ok {
			views[i].Likes = append(views[i].Likes, userID)
		}
	}
	if err := likeRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate likes: %w", err)
	}

	commentRows, err := conn.Query(ctx, `
        SELECT c.id, c.post_id, c.author_id, c.content, c.markdown, c.math, c.created_at,
               u.first_name, u.last_name, u.image
        FROM comments c
        JOIN users u ON u.id = c.author_id
        WHERE c.post_id = ANY($1)
        ORDER BY c.created_at
    `, ids)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer commentRows.Close()
	for commentRows.Next() {
		var cv models.CommentView
		if err := commentRows.Scan(&cv.ID, &cv.PostID, &cv.AuthorID, &cv.Content,
			&cv.Markdown, &cv.Math, &cv.CreatedAt,
			&cv.Author.FirstName, &cv.Author.LastName, &cv.Author.Image); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		cv.Author.ID = cv.AuthorID
		if i, ok := index[cv.PostID]; ok {
			views[i].Comments = append(views[i].Comments, cv)
		}
	}
	if err := commentRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}

	return views, nil
}

var _ PostRepository = (*PostgresPostRepository)(nil)
