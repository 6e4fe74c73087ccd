package relationship

import (
	"context"
	"errors"

	"github.com/linkapp/backend/internal/models"
)

// Classification describes the social-graph state between two users.
type Classification string

const (
	Self     Classification = "self"
	Friend   Classification = "friend"
	Accept   Classification = "accept"
	Sent     Classification = "sent"
	Stranger Classification = "stranger"
)

var (
	// ErrSelfRequest rejects a friend request aimed at the sender.
	ErrSelfRequest = errors.New("cannot send a friend request to yourself")
	// ErrAlreadyFriends rejects a request between users who are already friends.
	ErrAlreadyFriends = errors.New("users are already friends")
	// ErrNotFound indicates the request or friendship being acted on does not exist.
	ErrNotFound = errors.New("relationship not found")
	// ErrForbidden indicates the caller is not one of the affected users.
	ErrForbidden = errors.New("caller is not a participant")
)

// Store is the persistence contract for the friend graph. Mutations that
// touch both users' sets must apply atomically.
type Store interface {
	Get(ctx context.Context, userID string) (models.User, error)
	// AddRequest records `from` in owner's incoming request set; inserting an
	// already-present request is a no-op.
	AddRequest(ctx context.Context, ownerID, fromID string) error
	// RemoveRequest deletes `from` from owner's incoming request set and
	// reports ErrNotFound when absent.
	RemoveRequest(ctx context.Context, ownerID, fromID string) error
	// AddFriendship removes the pending request from owner's set and inserts
	// the symmetric friend pair, all in one transaction.
	AddFriendship(ctx context.Context, ownerID, friendID string) error
	// RemoveFriendship deletes both directions of the pair in one transaction.
	RemoveFriendship(ctx context.Context, userID, friendID string) error
}

// Engine computes and mutates friend relationships.
type Engine struct {
	store Store
}

// NewEngine constructs an Engine over the given store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Classify derives the relationship of self toward other. The precedence
// order is fixed: self, friend, accept, sent, stranger. Ties cannot occur
// when the symmetry invariants hold, but the order is still checked in this
// sequence so behavior stays deterministic on inconsistent data.
func Classify(self, other models.User) Classification {
	if self.ID == other.ID {
		return Self
	}
	if self.HasFriend(other.ID) {
		return Friend
	}
	if self.HasRequestFrom(other.ID) {
		return Accept
	}
	if other.HasRequestFrom(self.ID) {
		return Sent
	}
	return Stranger
}

// SendRequest records a pending friend request from one user to another.
// Sending to yourself or to an existing friend fails; re-sending an already
// pending request, or sending when the other side already asked first, is an
// idempotent success that creates no duplicate state.
func (e *Engine) SendRequest(ctx context.Context, fromID, toID string) error {
	if fromID == toID {
		return ErrSelfRequest
	}

	from, err := e.store.Get(ctx, fromID)
	if err != nil {
		return err
	}
	to, err := e.store.Get(ctx, toID)
	if err != nil {
		return err
	}

	if to.HasFriend(fromID) {
		return ErrAlreadyFriends
	}
	// The reciprocal request already exists; adding ours would create a
	// duplicate pending state between the pair.
	if from.HasRequestFrom(toID) {
		return nil
	}
	if to.HasRequestFrom(fromID) {
		return nil
	}

	return e.store.AddRequest(ctx, toID, fromID)
}

// AcceptRequest turns a pending request from friendID into a symmetric
// friendship. Only the recipient may accept; callerID must therefore equal
// ownerID. Accepting an existing friendship is an idempotent success.
func (e *Engine) AcceptRequest(ctx context.Context, callerID, ownerID, friendID string) error {
	if callerID != ownerID {
		return ErrForbidden
	}

	owner, err := e.store.Get(ctx, ownerID)
	if err != nil {
		return err
	}
	if _, err := e.store.Get(ctx, friendID); err != nil {
		return err
	}

	if owner.HasFriend(friendID) {
		return nil
	}
	if !owner.HasRequestFrom(friendID) {
		return ErrNotFound
	}

	return e.store.AddFriendship(ctx, ownerID, friendID)
}

// DeleteRequest cancels a pending request held by ownerID. Either party may
// cancel: the sender withdraws, or the holder declines.
func (e *Engine) DeleteRequest(ctx context.Context, callerID, ownerID, friendID string) error {
	if callerID != ownerID && callerID != friendID {
		return ErrForbidden
	}

	owner, err := e.store.Get(ctx, ownerID)
	if err != nil {
		return err
	}
	if !owner.HasRequestFrom(friendID) {
		return ErrNotFound
	}

	return e.store.RemoveRequest(ctx, ownerID, friendID)
}

// DeleteFriend removes the symmetric pair from both users' friend sets.
// Either party may unfriend.
func (e *Engine) DeleteFriend(ctx context.Context, callerID, userID, friendID string) error {
	if callerID != userID && callerID != friendID {
		return ErrForbidden
	}

	user, err := e.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := e.store.Get(ctx, friendID); err != nil {
		return err
	}
	if !user.HasFriend(friendID) {
		return ErrNotFound
	}

	return e.store.RemoveFriendship(ctx, userID, friendID)
}
