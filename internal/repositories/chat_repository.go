package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/linkapp/backend/internal/chat"
	"github.com/linkapp/backend/internal/db"
	"github.com/linkapp/backend/internal/models"
)

// PostgresChatRepository provides PostgreSQL-backed persistence for chat
// history. Conversations materialise on first message; messages carry a
// serial sequence so history reads back in exact append order.
type PostgresChatRepository struct {
	pool db.Pool
}

// NewPostgresChatRepository constructs a chat repository backed by PostgreSQL.
func NewPostgresChatRepository(pool db.Pool) *PostgresChatRepository {
	return &PostgresChatRepository{pool: pool}
}

// Append stores a message between the two users, creating the conversation
// row on first use. Both inserts run in one transaction.
func (r *PostgresChatRepository) Append(ctx context.Context, userA, userB string, message models.Message) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	room := chat.RoomKey(userA, userB)

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin chat transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
        INSERT INTO conversations (room, user_a, user_b)
        VALUES ($1, $2, $3)
        ON CONFLICT (room) DO NOTHING
    `, room, userA, userB); err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO messages (id, room, author_id, content, markdown, math, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, message.ID, room, message.AuthorID, message.Content, message.Markdown, message.Math, message.CreatedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chat transaction: %w", err)
	}

	return nil
}

// ListMessages returns the room's full history in append order with author
// profiles attached. An unknown room reads as an empty history.
func (r *PostgresChatRepository) ListMessages(ctx context.Context, room string) ([]models.ChatMessage, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT m.id, m.room, m.author_id, m.content, m.markdown, m.math, m.created_at,
               u.first_name, u.last_name, u.image
        FROM messages m
        JOIN users u ON u.id = m.author_id
        WHERE m.room = $1
        ORDER BY m.seq
    `, room)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var msg models.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.Room, &msg.AuthorID, &msg.Content,
			&msg.Markdown, &msg.Math, &msg.CreatedAt,
			&msg.Author.FirstName, &msg.Author.LastName, &msg.Author.Image); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Author.ID = msg.AuthorID
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// ListConversations returns the user's conversations, most recently active
// first. Conversations only exist once a message has been sent, so empty
// rooms never appear.
func (r *PostgresChatRepository) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT c.room, c.user_a, c.user_b, MAX(m.created_at) AS last_message_at
        FROM conversations c
        JOIN messages m ON m.room = c.room
        WHERE c.user_a = $1 OR c.user_b = $1
        GROUP BY c.room, c.user_a, c.user_b
        ORDER BY last_message_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var summaries []models.ConversationSummary
	for rows.Next() {
		var summary models.ConversationSummary
		var userA, userB string
		if err := rows.Scan(&summary.Room, &userA, &userB, &summary.LastMessageAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		summary.OtherUserID = userA
		if userA == userID {
			summary.OtherUserID = userB
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	return summaries, nil
}

var _ ChatRepository = (*PostgresChatRepository)(nil)
