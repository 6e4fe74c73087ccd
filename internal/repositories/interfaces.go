package repositories

import (
	"context"

	"github.com/linkapp/backend/internal/models"
)

// UserRepository defines the data access contract for users and the friend
// graph. Get and List populate the Friends and FriendRequests sets.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	Get(ctx context.Context, userID string) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, user models.User) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	SetVerified(ctx context.Context, userID string) error

	AddRequest(ctx context.Context, ownerID, fromID string) error
	RemoveRequest(ctx context.Context, ownerID, fromID string) error
	AddFriendship(ctx context.Context, ownerID, friendID string) error
	RemoveFriendship(ctx context.Context, userID, friendID string) error
}

// PostRepository defines data access for posts, comments, and likes.
type PostRepository interface {
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

// ChatRepository defines data access for durable chat history.
type ChatRepository interface {
	Append(ctx context.Context, userA, userB string, message models.Message) error
	ListMessages(ctx context.Context, room string) ([]models.ChatMessage, error)
	ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error)
}
