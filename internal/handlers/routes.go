package handlers

import (
	"net/http"

	"github.com/linkapp/backend/internal/auth"
	"github.com/linkapp/backend/internal/chat"
	"github.com/linkapp/backend/internal/middleware"
	"github.com/linkapp/backend/internal/relationship"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserStore
	Posts         PostStore
	Chats         ChatStore
	Relationships *relationship.Engine
	Tokens        *auth.Service
	Hasher        auth.Hasher
	Email         EmailSender
	Images        ImageStore
	Hub           *chat.Hub
	ClientURL     string
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux. Everything
// except the health endpoint and the public auth endpoints sits behind the
// session gate.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	authH := AuthHandler{Users: deps.Users, Tokens: deps.Tokens, Hasher: deps.Hasher, Email: deps.Email, ClientURL: deps.ClientURL}
	users := UserHandler{Users: deps.Users, Posts: deps.Posts, Tokens: deps.Tokens, Hasher: deps.Hasher, Images: deps.Images}
	friends := FriendHandler{Relationships: deps.Relationships}
	posts := PostHandler{Posts: deps.Posts, Images: deps.Images}
	chats := ChatHandler{Chats: deps.Chats, Users: deps.Users, Hub: deps.Hub}

	gate := middleware.SessionGate(deps.Tokens)
	gated := func(h http.HandlerFunc) http.Handler { return gate(h) }

	mux.HandleFunc("GET /healthz", health.Handle)

	mux.HandleFunc("POST /auth/login", authH.Login)
	mux.HandleFunc("POST /auth/refresh", authH.Refresh)
	mux.HandleFunc("POST /auth/register", authH.Register)
	mux.HandleFunc("POST /auth/verify-email", authH.VerifyEmail)
	mux.HandleFunc("POST /auth/reset-password", authH.ResetPassword)
	mux.HandleFunc("POST /auth/verify-reset-password", authH.VerifyResetPassword)
	mux.HandleFunc("POST /auth/logout", authH.Logout)
	mux.Handle("GET /auth/get-status", gated(authH.GetStatus))

	mux.Handle("GET /user", gated(users.List))
	mux.Handle("GET /user/search", gated(users.Search))
	mux.Handle("GET /user/{userid}", gated(users.Get))
	mux.Handle("PUT /user/{userid}", gated(users.Update))
	mux.Handle("PUT /user/{userid}/password", gated(users.ChangePassword))
	mux.Handle("POST /user/{userid}/friend-request", gated(friends.SendRequest))
	mux.Handle("POST /user/{userid}/friend-request/{friendid}", gated(friends.AcceptRequest))
	mux.Handle("DELETE /user/{userid}/friend-request/{friendid}", gated(friends.DeleteRequest))
	mux.Handle("DELETE /user/{userid}/friend/{friendid}", gated(friends.DeleteFriend))

	mux.Handle("GET /post", gated(posts.Feed))
	mux.Handle("POST /post", gated(posts.Create))
	mux.Handle("PUT /post/{postid}", gated(posts.Update))
	mux.Handle("DELETE /post/{postid}", gated(posts.Delete))
	mux.Handle("POST /post/{postid}/like", gated(posts.Like))
	mux.Handle("DELETE /post/{postid}/like", gated(posts.Unlike))
	mux.Handle("POST /post/{postid}/comment", gated(posts.Comment))
	mux.Handle("PUT /post/{postid}/comment/{commentid}", gated(posts.UpdateComment))
	mux.Handle("DELETE /post/{postid}/comment/{commentid}", gated(posts.DeleteComment))

	mux.Handle("GET /chat", gated(chats.List))
	mux.Handle("GET /chat/ws", gated(chats.Socket))
	mux.Handle("GET /chat/{roomid}", gated(chats.History))
}
