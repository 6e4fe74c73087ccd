package handlers

import (
	"errors"
	"net/http"

	"github.com/linkapp/backend/internal/logging"
	"github.com/linkapp/backend/internal/middleware"
	"github.com/linkapp/backend/internal/relationship"
	"github.com/linkapp/backend/internal/repositories"
)

// FriendHandler exposes the relationship engine's mutations over HTTP.
type FriendHandler struct {
	Relationships *relationship.Engine
}

// SendRequest handles POST /user/{userid}/friend-request: the caller asks
// {userid} to become friends.
func (h FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	selfID, _ := middleware.UserID(ctx)
	err := h.Relationships.SendRequest(ctx, selfID, r.PathValue("userid"))
	switch {
	case err == nil:
		respondOK(ctx, w, "Friend request sent.")
	case errors.Is(err, relationship.ErrSelfRequest):
		respondError(ctx, w, http.StatusBadRequest, "You cannot send yourself a friend request.")
	case errors.Is(err, relationship.ErrAlreadyFriends):
		respondError(ctx, w, http.StatusBadRequest, "User is already friend.")
	case errors.Is(err, repositories.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, "User not found.")
	default:
		logging.FromContext(ctx).Error("send friend request", "error", err, "userid", selfID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
	}
}

// AcceptRequest handles POST /user/{userid}/friend-request/{friendid}: the
// recipient {userid} accepts the pending request from {friendid}.
func (h FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	selfID, _ := middleware.UserID(ctx)
	err := h.Relationships.AcceptRequest(ctx, selfID, r.PathValue("userid"), r.PathValue("friendid"))
	switch {
	case err == nil:
		respondOK(ctx, w, "Accepted.")
	case errors.Is(err, relationship.ErrForbidden):
		respondError(ctx, w, http.StatusForbidden, "Not allowed.")
	case errors.Is(err, relationship.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, "Not found.")
	case errors.Is(err, repositories.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, "Friend not found.")
	default:
		logging.FromContext(ctx).Error("accept friend request", "error", err, "userid", selfID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
	}
}

// DeleteRequest handles DELETE /user/{userid}/friend-request/{friendid}:
// either party cancels the pending request held by {userid}.
func (h FriendHandler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	selfID, _ := middleware.UserID(ctx)
	err := h.Relationships.DeleteRequest(ctx, selfID, r.PathValue("userid"), r.PathValue("friendid"))
	switch {
	case err == nil:
		respondOK(ctx, w, "Friend request is removed.")
	case errors.Is(err, relationship.ErrForbidden):
		respondError(ctx, w, http.StatusForbidden, "No permission.")
	case errors.Is(err, relationship.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, "Friend request not found.")
	case errors.Is(err, repositories.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, "User not found.")
	default:
		logging.FromContext(ctx).Error("delete friend request", "error", err, "userid", selfID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
	}
}

// DeleteFriend handles DELETE /user/{userid}/friend/{friendid}: either party
// dissolves the friendship.
func (h FriendHandler) DeleteFriend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	selfID, _ := middleware.UserID(ctx)
	err := h.Relationships.DeleteFriend(ctx, selfID, r.PathValue("userid"), r.PathValue("friendid"))
	switch {
	case err == nil:
		respondOK(ctx, w, "Friend is removed.")
	case errors.Is(err, relationship.ErrForbidden):
		respondError(ctx, w, http.StatusForbidden, "No permission.")
	case errors.Is(err, relationship.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, "Friend not found.")
	case errors.Is(err, repositories.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, "User not found.")
	default:
		logging.FromContext(ctx).Error("delete friend", "error", err, "userid", selfID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
	}
}
