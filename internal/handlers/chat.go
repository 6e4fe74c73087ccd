package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/linkapp/backend/internal/chat"
	"github.com/linkapp/backend/internal/logging"
	"github.com/linkapp/backend/internal/middleware"
	"github.com/linkapp/backend/internal/repositories"
)

// ChatHandler serves chat history, the conversation list, and the websocket
// upgrade.
type ChatHandler struct {
	Chats ChatStore
	Users UserStore
	Hub   *chat.Hub
}

type chatMessageView struct {
	ID       string      `json:"_id"`
	Author   userProfile `json:"author"`
	Content  string      `json:"content"`
	Markdown bool        `json:"markdown"`
	Math     bool        `json:"math"`
	Date     time.Time   `json:"date"`
}

// History handles GET /chat/{roomid}. The room id is the pair "a,b" in
// either order; only a participant may read, and an unknown room reads as an
// empty history.
func (h ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userA, userB, err := chat.ParseRoomKey(r.PathValue("roomid"))
	if err != nil {
		respondError(ctx, w, http.StatusNotFound, "Room not found.")
		return
	}

	selfID, _ := middleware.UserID(ctx)
	if selfID != userA && selfID != userB {
		respondError(ctx, w, http.StatusForbidden, "No permission.")
		return
	}

	for _, id := range []string{userA, userB} {
		if _, err := h.Users.Get(ctx, id); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				respondError(ctx, w, http.StatusNotFound, "User not found.")
				return
			}
			logger.Error("load participant", "error", err, "userid", id)
			respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
			return
		}
	}

	messages, err := h.Chats.ListMessages(ctx, chat.RoomKey(userA, userB))
	if err != nil {
		logger.Error("list messages", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	views := make([]chatMessageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, chatMessageView{
			ID:       msg.ID,
			Author:   profileView(msg.Author),
			Content:  msg.Content,
			Markdown: msg.Markdown,
			Math:     msg.Math,
			Date:     msg.CreatedAt,
		})
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"status": true, "messages": views})
}

type conversationView struct {
	Room          string      `json:"room"`
	User          userProfile `json:"user"`
	LastMessageAt time.Time   `json:"last_message_at"`
}

// List handles GET /chat: every conversation containing the caller with at
// least one message, most recent first.
func (h ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	selfID, _ := middleware.UserID(ctx)
	conversations, err := h.Chats.ListConversations(ctx, selfID)
	if err != nil {
		logger.Error("list conversations", "error", err, "userid", selfID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	views := make([]conversationView, 0, len(conversations))
	for _, conv := range conversations {
		other, err := h.Users.Get(ctx, conv.OtherUserID)
		if err != nil {
			logger.Warn("resolve conversation partner", "error", err, "userid", conv.OtherUserID)
			continue
		}
		views = append(views, conversationView{
			Room: conv.Room,
			User: userProfile{
				ID:        other.ID,
				FirstName: other.FirstName,
				LastName:  other.LastName,
				Image:     other.Image,
			},
			LastMessageAt: conv.LastMessageAt,
		})
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"status": true, "chats": views})
}

// Socket handles GET /chat/ws: upgrades the gated request to a websocket and
// hands the connection to the hub.
func (h ChatHandler) Socket(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respondError(r.Context(), w, http.StatusForbidden, "Please log in.")
		return
	}

	chat.ServeWS(h.Hub, w, r, userID)
}
