package handlers

import (
	"context"
	"io"

	"github.com/linkapp/backend/internal/models"
)

// UserStore captures the user persistence operations required by handlers.
// Friend-graph mutations go through the relationship engine instead.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	Get(ctx context.Context, userID string) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, user models.User) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	SetVerified(ctx context.Context, userID string) error
}

// PostStore captures persistence for posts, comments, and likes.
type PostStore interface {
	Create(ctx context.Context, post models.Post) error
	Get(ctx context.Context, postID string) (models.PostView, error)
	Update(ctx context.Context, post models.Post) error
	Delete(ctx context.Context, postID string) error
	ListByAuthor(ctx context.Context, authorID string) ([]models.PostView, error)
	Feed(ctx context.Context, userID string) ([]models.PostView, error)
	Like(ctx context.Context, postID, userID string) error
	Unlike(ctx context.Context, postID, userID string) error
	AddComment(ctx context.Context, comment models.Comment) error
	GetComment(ctx context.Context, commentID string) (models.Comment, error)
	UpdateComment(ctx context.Context, comment models.Comment) error
	DeleteComment(ctx context.Context, commentID string) error
}

// ChatStore captures read access to durable chat history.
type ChatStore interface {
	ListMessages(ctx context.Context, room string) ([]models.ChatMessage, error)
	ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error)
}

// EmailSender delivers verification and reset mail.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ImageStore persists uploaded images keyed by their owner.
type ImageStore interface {
	Store(ctx context.Context, ownerID, filename string, r io.Reader) (string, error)
	Delete(ctx context.Context, location string) error
}
