package handlers

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/linkapp/backend/internal/auth"
	"github.com/linkapp/backend/internal/config"
	"github.com/linkapp/backend/internal/models"
	"github.com/linkapp/backend/internal/relationship"
	"github.com/linkapp/backend/internal/repositories"
)

// memUserStore is an in-memory UserStore that also satisfies
// relationship.Store so the engine can run against it in tests.
type memUserStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]models.User)}
}

func (s *memUserStore) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *memUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			return cloneUser(user), nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *memUserStore) Get(_ context.Context, userID string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return cloneUser(user), nil
}

func (s *memUserStore) List(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, cloneUser(user))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *memUserStore) Update(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[user.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	stored.FirstName = user.FirstName
	stored.LastName = user.LastName
	stored.Image = user.Image
	stored.Verified = user.Verified
	stored.UpdatedAt = user.UpdatedAt
	s.users[user.ID] = stored
	return nil
}

func (s *memUserStore) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	user.Password = passwordHash
	s.users[userID] = user
	return nil
}

func (s *memUserStore) SetVerified(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	user.Verified = true
	s.users[userID] = user
	return nil
}

func (s *memUserStore) AddRequest(_ context.Context, ownerID, fromID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.users[ownerID]
	if !ok {
		return repositories.ErrNotFound
	}
	if !owner.HasRequestFrom(fromID) {
		owner.FriendRequests = append(owner.FriendRequests, fromID)
	}
	s.users[ownerID] = owner
	return nil
}

func (s *memUserStore) RemoveRequest(_ context.Context, ownerID, fromID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.users[ownerID]
	if !ok || !owner.HasRequestFrom(fromID) {
		return repositories.ErrNotFound
	}
	owner.FriendRequests = removeID(owner.FriendRequests, fromID)
	s.users[ownerID] = owner
	return nil
}

func (s *memUserStore) AddFriendship(_ context.Context, ownerID, friendID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.users[ownerID]
	friend, ok2 := s.users[friendID]
	if !ok || !ok2 {
		return repositories.ErrNotFound
	}
	owner.FriendRequests = removeID(owner.FriendRequests, friendID)
	if !owner.HasFriend(friendID) {
		owner.Friends = append(owner.Friends, friendID)
	}
	if !friend.HasFriend(ownerID) {
		friend.Friends = append(friend.Friends, ownerID)
	}
	s.users[ownerID] = owner
	s.users[friendID] = friend
	return nil
}

func (s *memUserStore) RemoveFriendship(_ context.Context, userID, friendID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	friend, ok2 := s.users[friendID]
	if !ok || !ok2 || !user.HasFriend(friendID) {
		return repositories.ErrNotFound
	}
	user.Friends = removeID(user.Friends, friendID)
	friend.Friends = removeID(friend.Friends, userID)
	s.users[userID] = user
	s.users[friendID] = friend
	return nil
}

func cloneUser(u models.User) models.User {
	u.Friends = append([]string(nil), u.Friends...)
	u.FriendRequests = append([]string(nil), u.FriendRequests...)
	return u
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}

var _ UserStore = (*memUserStore)(nil)
var _ relationship.Store = (*memUserStore)(nil)

// memPostStore is an in-memory PostStore resolving author profiles from a
// memUserStore.
type memPostStore struct {
	mu       sync.Mutex
	users    *memUserStore
	posts    map[string]models.Post
	comments map[string]models.Comment
	seq      int
}

func newMemPostStore(users *memUserStore) *memPostStore {
	return &memPostStore{
		users:    users,
		posts:    make(map[string]models.Post),
		comments: make(map[string]models.Comment),
	}
}

func (s *memPostStore) addPost(t *testing.T, id, authorID, content string) models.Post {
	t.Helper()
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()
	post := models.Post{
		ID:        id,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: time.Now().UTC().Add(time.Duration(seq) * time.Millisecond),
	}
	if err := s.Create(t.Context(), post); err != nil {
		t.Fatalf("create post %s: %v", id, err)
	}
	return post
}

func (s *memPostStore) Create(_ context.Context, post models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.posts[post.ID]; exists {
		return repositories.ErrConflict
	}
	s.posts[post.ID] = post
	return nil
}

func (s *memPostStore) Get(ctx context.Context, postID string) (models.PostView, error) {
	s.mu.Lock()
	post, ok := s.posts[postID]
	s.mu.Unlock()
	if !ok {
		return models.PostView{}, repositories.ErrNotFound
	}
	return s.view(ctx, post), nil
}

func (s *memPostStore) Update(_ context.Context, post models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.posts[post.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	stored.Content = post.Content
	stored.Markdown = post.Markdown
	stored.Math = post.Math
	stored.Image = post.Image
	s.posts[post.ID] = stored
	return nil
}

func (s *memPostStore) Delete(_ context.Context, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[postID]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.posts, postID)
	for id, comment := range s.comments {
		if comment.PostID == postID {
			delete(s.comments, id)
		}
	}
	return nil
}

func (s *memPostStore) ListByAuthor(ctx context.Context, authorID string) ([]models.PostView, error) {
	return s.list(ctx, func(p models.Post) bool { return p.AuthorID == authorID })
}

func (s *memPostStore) Feed(ctx context.Context, userID string) ([]models.PostView, error) {
	self, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, func(p models.Post) bool {
		return p.AuthorID == userID || self.HasFriend(p.AuthorID)
	})
}

func (s *memPostStore) list(ctx context.Context, include func(models.Post) bool) ([]models.PostView, error) {
	s.mu.Lock()
	var posts []models.Post
	for _, post := range s.posts {
		if include(post) {
			posts = append(posts, post)
		}
	}
	s.mu.Unlock()

	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.Before(posts[j].CreatedAt) })
	views := make([]models.PostView, 0, len(posts))
	for _, post := range posts {
		views = append(views, s.view(ctx, post))
	}
	return views, nil
}

func (s *memPostStore) view(ctx context.Context, post models.Post) models.PostView {
	view := models.PostView{Post: post}
	if author, err := s.users.Get(ctx, post.AuthorID); err == nil {
		view.Author = models.ProfileOf(author)
	}

	s.mu.Lock()
	var comments []models.Comment
	for _, comment := range s.comments {
		if comment.PostID == post.ID {
			comments = append(comments, comment)
		}
	}
	s.mu.Unlock()

	sort.Slice(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	for _, comment := range comments {
		cv := models.CommentView{Comment: comment}
		if author, err := s.users.Get(ctx, comment.AuthorID); err == nil {
			cv.Author = models.ProfileOf(author)
		}
		view.Comments = append(view.Comments, cv)
	}
	return view
}

func (s *memPostStore) Like(_ context.Context, postID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.posts[postID]
	if !ok {
		return repositories.ErrNotFound
	}
	if !post.Liked(userID) {
		post.Likes = append(post.Likes, userID)
	}
	s.posts[postID] = post
	return nil
}

func (s *memPostStore) Unlike(_ context.Context, postID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.posts[postID]
	if !ok {
		return repositories.ErrNotFound
	}
	post.Likes = removeID(post.Likes, userID)
	s.posts[postID] = post
	return nil
}

func (s *memPostStore) AddComment(_ context.Context, comment models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[comment.PostID]; !ok {
		return repositories.ErrNotFound
	}
	s.comments[comment.ID] = comment
	return nil
}

func (s *memPostStore) GetComment(_ context.Context, commentID string) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	comment, ok := s.comments[commentID]
	if !ok {
		return models.Comment{}, repositories.ErrNotFound
	}
	return comment, nil
}

func (s *memPostStore) UpdateComment(_ context.Context, comment models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[comment.ID]; !ok {
		return repositories.ErrNotFound
	}
	s.comments[comment.ID] = comment
	return nil
}

func (s *memPostStore) DeleteComment(_ context.Context, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[commentID]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.comments, commentID)
	return nil
}

var _ PostStore = (*memPostStore)(nil)

// memChatStore serves pre-seeded chat history.
type memChatStore struct {
	messages      map[string][]models.ChatMessage
	conversations map[string][]models.ConversationSummary
}

func newMemChatStore() *memChatStore {
	return &memChatStore{
		messages:      make(map[string][]models.ChatMessage),
		conversations: make(map[string][]models.ConversationSummary),
	}
}

func (s *memChatStore) ListMessages(_ context.Context, room string) ([]models.ChatMessage, error) {
	return s.messages[room], nil
}

func (s *memChatStore) ListConversations(_ context.Context, userID string) ([]models.ConversationSummary, error) {
	return s.conversations[userID], nil
}

var _ ChatStore = (*memChatStore)(nil)

// fakeEmail records outbound mail and can be forced to fail.
type fakeEmail struct {
	mu    sync.Mutex
	sent  []sentMail
	fail  error
	count int
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

func (f *fakeEmail) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

// fakeImages stores image names in memory.
type fakeImages struct {
	mu      sync.Mutex
	stored  []string
	deleted []string
}

func (f *fakeImages) Store(_ context.Context, ownerID, filename string, _ io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	location := fmt.Sprintf("images/%s/%s", ownerID, filename)
	f.stored = append(f.stored, location)
	return location, nil
}

func (f *fakeImages) Delete(_ context.Context, location string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, location)
	return nil
}

func newTestTokenService() (*auth.Service, *auth.InMemoryTokenStore) {
	store := auth.NewInMemoryTokenStore()
	svc := auth.NewService(config.TokenConfig{
		AccessSecret:   "access-secret",
		RefreshSecret:  "refresh-secret",
		EmailSecret:    "email-secret",
		PasswordSecret: "password-secret",
		AccessTTL:      time.Hour,
		RefreshTTL:     30 * 24 * time.Hour,
		EmailTTL:       20 * time.Minute,
		PasswordTTL:    20 * time.Minute,
	}, store)
	return svc, store
}
