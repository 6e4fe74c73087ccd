package models

import "time"

// User represents an account within the Link platform.
type User struct {
	ID        string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Image     string
	Verified  bool
	CreatedAt time.Time
	UpdatedAt time.Time

	// Friends and FriendRequests hold user ids. FriendRequests are the
	// incoming pending requests awaiting this user's decision. Friendship
	// is symmetric; a user never appears in their own sets.
	Friends        []string
	FriendRequests []string
}

// HasFriend reports whether other is in the user's friends set.
func (u User) HasFriend(other string) bool {
	for _, id := range u.Friends {
		if id == other {
			return true
		}
	}
	return false
}

// HasRequestFrom reports whether other has a pending request to this user.
func (u User) HasRequestFrom(other string) bool {
	for _, id := range u.FriendRequests {
		if id == other {
			return true
		}
	}
	return false
}

// TokenKind labels the persisted token records.
type TokenKind string

const (
	TokenKindRefresh  TokenKind = "refresh"
	TokenKindEmail    TokenKind = "email"
	TokenKindPassword TokenKind = "password"
)

// TokenRecord is a persisted refresh or password-reset token. A record is
// usable exactly until it is deleted or expires; deleting it is the only
// revocation mechanism.
type TokenRecord struct {
	Token     string
	Kind      TokenKind
	UserID    string
	ExpiresAt time.Time
}

// Post is a user-authored content entry.
type Post struct {
	ID        string
	AuthorID  string
	Content   string
	Markdown  bool
	Math      bool
	Image     string
	CreatedAt time.Time

	// Likes is the set of user ids that liked the post.
	Likes []string
}

// Liked reports whether the given user id is in the post's likes set.
func (p Post) Liked(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// Comment is attached to exactly one post.
type Comment struct {
	ID        string
	PostID    string
	AuthorID  string
	Content   string
	Markdown  bool
	Math      bool
	CreatedAt time.Time
}

// Message is one durable chat entry; immutable once created and owned by
// exactly one room.
type Message struct {
	ID        string
	Room      string
	AuthorID  string
	Content   string
	Markdown  bool
	Math      bool
	CreatedAt time.Time
}

// ConversationSummary describes one chat room from a participant's point of
// view: who the other party is and when the last message arrived.
type ConversationSummary struct {
	Room          string
	OtherUserID   string
	LastMessageAt time.Time
}

// CommentView is a comment with its author resolved.
type CommentView struct {
	Comment
	Author Profile
}

// PostView is a post with author, comments, and likes resolved.
type PostView struct {
	Post
	Author   Profile
	Comments []CommentView
}

// ChatMessage is a durable message with its author resolved.
type ChatMessage struct {
	Message
	Author Profile
}

// Profile is the public slice of a user embedded in responses.
type Profile struct {
	ID        string
	FirstName string
	LastName  string
	Image     string
}

// ProfileOf extracts the public fields of a user.
func ProfileOf(u User) Profile {
	return Profile{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Image: u.Image}
}
