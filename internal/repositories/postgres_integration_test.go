package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linkapp/backend/internal/auth"
	"github.com/linkapp/backend/internal/chat"
	"github.com/linkapp/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUserRepository_CreateFindAndUpdate(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)

	user := models.User{
		ID:        uuid.NewString(),
		Email:     "alice@example.com",
		Password:  "secret-hash",
		FirstName: "Alice",
		LastName:  "Smith",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	dup := models.User{
		ID:        uuid.NewString(),
		Email:     user.Email,
		Password:  "another-hash",
		FirstName: "Other",
		LastName:  "Alice",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when creating duplicate email, got %v", err)
	}

	fetched, err := repo.FindByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}

	if fetched.ID != user.ID || fetched.Email != user.Email || fetched.Password != user.Password {
		t.Fatalf("unexpected user fetched: %+v", fetched)
	}

	updated := user
	updated.FirstName = "Alicia"
	updated.Image = "images/alice.png"
	updated.UpdatedAt = time.Now().UTC().Add(time.Minute)

	if err := repo.Update(ctx, updated); err != nil {
		t.Fatalf("update user: %v", err)
	}

	fetched, err = repo.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("get updated user: %v", err)
	}

	if fetched.FirstName != updated.FirstName || fetched.Image != updated.Image {
		t.Fatalf("expected updated fields to persist, got %+v", fetched)
	}

	if err := repo.UpdatePassword(ctx, user.ID, "rotated-hash"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	if err := repo.SetVerified(ctx, user.ID); err != nil {
		t.Fatalf("set verified: %v", err)
	}

	fetched, err = repo.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user after password change: %v", err)
	}
	if fetched.Password != "rotated-hash" || !fetched.Verified {
		t.Fatalf("expected rotated password and verified flag, got %+v", fetched)
	}

	missing := models.User{
		ID:        uuid.NewString(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := repo.Update(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing user, got %v", err)
	}
	if _, err := repo.Get(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestPostgresUserRepository_FriendGraph(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, repo, "alice@example.com")
	bob := createTestUser(t, repo, "bob@example.com")

	if err := repo.AddRequest(ctx, bob.ID, alice.ID); err != nil {
		t.Fatalf("add request: %v", err)
	}
	// Duplicate insert is a no-op, not a conflict.
	if err := repo.AddRequest(ctx, bob.ID, alice.ID); err != nil {
		t.Fatalf("re-add request: %v", err)
	}

	fetched, err := repo.Get(ctx, bob.ID)
	if err != nil {
		t.Fatalf("get bob: %v", err)
	}
	if len(fetched.FriendRequests) != 1 || fetched.FriendRequests[0] != alice.ID {
		t.Fatalf("expected single request from alice, got %v", fetched.FriendRequests)
	}

	if err := repo.AddFriendship(ctx, bob.ID, alice.ID); err != nil {
		t.Fatalf("add friendship: %v", err)
	}

	fetched, err = repo.Get(ctx, bob.ID)
	if err != nil {
		t.Fatalf("get bob after accept: %v", err)
	}
	if len(fetched.FriendRequests) != 0 {
		t.Fatalf("expected request to be consumed, got %v", fetched.FriendRequests)
	}
	if !fetched.HasFriend(alice.ID) {
		t.Fatalf("expected bob to have alice as friend, got %v", fetched.Friends)
	}

	other, err := repo.Get(ctx, alice.ID)
	if err != nil {
		t.Fatalf("get alice: %v", err)
	}
	if !other.HasFriend(bob.ID) {
		t.Fatalf("expected friendship to be symmetric, got %v", other.Friends)
	}

	if err := repo.RemoveFriendship(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("remove friendship: %v", err)
	}
	if err := repo.RemoveFriendship(ctx, alice.ID, bob.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound removing absent friendship, got %v", err)
	}
	if err := repo.RemoveRequest(ctx, bob.ID, alice.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound removing absent request, got %v", err)
	}
}

func TestPostgresTokenStore_SaveFindAndDelete(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, userRepo, "owner@example.com")

	store := NewPostgresTokenStore(testPool)
	record := models.TokenRecord{
		Token:     uuid.NewString(),
		Kind:      models.TokenKindRefresh,
		UserID:    user.ID,
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	}

	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("save token: %v", err)
	}

	loaded, err := store.Find(ctx, record.Token)
	if err != nil {
		t.Fatalf("find token: %v", err)
	}
	if loaded.UserID != user.ID || loaded.Kind != models.TokenKindRefresh {
		t.Fatalf("unexpected token loaded: %+v", loaded)
	}

	if err := store.Delete(ctx, record.Token); err != nil {
		t.Fatalf("delete token: %v", err)
	}
	if err := store.Delete(ctx, record.Token); !errors.Is(err, auth.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound deleting twice, got %v", err)
	}

	expired := models.TokenRecord{
		Token:     uuid.NewString(),
		Kind:      models.TokenKindRefresh,
		UserID:    user.ID,
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}
	if err := store.Save(ctx, expired); err != nil {
		t.Fatalf("save expired token: %v", err)
	}
	if _, err := store.Find(ctx, expired.Token); !errors.Is(err, auth.ErrRecordNotFound) {
		t.Fatalf("expected expired token to read as absent, got %v", err)
	}

	// RevokeAll path: two tokens, both gone after DeleteByUser.
	for i := 0; i < 2; i++ {
		rec := models.TokenRecord{
			Token:     uuid.NewString(),
			Kind:      models.TokenKindRefresh,
			UserID:    user.ID,
			ExpiresAt: time.Now().UTC().Add(time.Hour),
		}
		if err := store.Save(ctx, rec); err != nil {
			t.Fatalf("save token %d: %v", i, err)
		}
		defer func(token string) {
			if _, err := store.Find(ctx, token); !errors.Is(err, auth.ErrRecordNotFound) {
				t.Errorf("expected token %s revoked, got %v", token, err)
			}
		}(rec.Token)
	}
	if err := store.DeleteByUser(ctx, user.ID); err != nil {
		t.Fatalf("delete tokens by user: %v", err)
	}
}

func TestPostgresPostRepository_FeedAndReactions(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	postRepo := NewPostgresPostRepository(testPool)

	viewer := createTestUser(t, userRepo, "viewer@example.com")
	friend := createTestUser(t, userRepo, "friend@example.com")
	stranger := createTestUser(t, userRepo, "stranger@example.com")

	if err := userRepo.AddFriendship(ctx, viewer.ID, friend.ID); err != nil {
		t.Fatalf("add friendship: %v", err)
	}

	baseTime := time.Now().UTC().Add(-30 * time.Minute)
	ownPost := createTestPost(t, postRepo, viewer.ID, "my post", baseTime.Add(5*time.Minute))
	friendPost := createTestPost(t, postRepo, friend.ID, "friend post", baseTime.Add(2*time.Minute))
	createTestPost(t, postRepo, stranger.ID, "stranger post", baseTime)

	feed, err := postRepo.Feed(ctx, viewer.ID)
	if err != nil {
		t.Fatalf("list feed: %v", err)
	}
	if len(feed) != 2 {
		t.Fatalf("expected 2 feed entries (viewer + friend), got %d", len(feed))
	}
	if feed[0].ID != friendPost.ID || feed[1].ID != ownPost.ID {
		t.Fatalf("expected ascending creation order, got %+v", feed)
	}
	if feed[0].Author.FirstName == "" {
		t.Fatalf("expected author profile resolved, got %+v", feed[0].Author)
	}

	if err := postRepo.Like(ctx, friendPost.ID, viewer.ID); err != nil {
		t.Fatalf("like post: %v", err)
	}
	if err := postRepo.Like(ctx, friendPost.ID, viewer.ID); err != nil {
		t.Fatalf("re-like post: %v", err)
	}

	comment := models.Comment{
		ID:        uuid.NewString(),
		PostID:    friendPost.ID,
		AuthorID:  viewer.ID,
		Content:   "nice one",
		CreatedAt: time.Now().UTC(),
	}
	if err := postRepo.AddComment(ctx, comment); err != nil {
		t.Fatalf("add comment: %v", err)
	}

	view, err := postRepo.Get(ctx, friendPost.ID)
	if err != nil {
		t.Fatalf("get post view: %v", err)
	}
	if len(view.Likes) != 1 || view.Likes[0] != viewer.ID {
		t.Fatalf("expected single like from viewer, got %v", view.Likes)
	}
	if len(view.Comments) != 1 || view.Comments[0].Content != "nice one" {
		t.Fatalf("expected one comment, got %+v", view.Comments)
	}
	if view.Comments[0].Author.ID != viewer.ID {
		t.Fatalf("expected comment author resolved, got %+v", view.Comments[0].Author)
	}

	if err := postRepo.Unlike(ctx, friendPost.ID, viewer.ID); err != nil {
		t.Fatalf("unlike post: %v", err)
	}
	if err := postRepo.Unlike(ctx, friendPost.ID, viewer.ID); err != nil {
		t.Fatalf("re-unlike post: %v", err)
	}

	if err := postRepo.Delete(ctx, friendPost.ID); err != nil {
		t.Fatalf("delete post: %v", err)
	}
	if _, err := postRepo.GetComment(ctx, comment.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected comment to cascade with post, got %v", err)
	}
	if _, err := postRepo.Get(ctx, friendPost.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for deleted post, got %v", err)
	}
}

func TestPostgresChatRepository_AppendAndList(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	chatRepo := NewPostgresChatRepository(testPool)

	alice := createTestUser(t, userRepo, "alice@example.com")
	bob := createTestUser(t, userRepo, "bob@example.com")
	carol := createTestUser(t, userRepo, "carol@example.com")

	room := chat.RoomKey(alice.ID, bob.ID)
	first := models.Message{
		ID:        uuid.NewString(),
		Room:      room,
		AuthorID:  alice.ID,
		Content:   "hello",
		CreatedAt: time.Now().UTC().Add(-2 * time.Minute),
	}
	second := models.Message{
		ID:        uuid.NewString(),
		Room:      room,
		AuthorID:  bob.ID,
		Content:   "hey",
		CreatedAt: time.Now().UTC().Add(-time.Minute),
	}

	// Append with the pair in both orders; the room must canonicalise.
	if err := chatRepo.Append(ctx, alice.ID, bob.ID, first); err != nil {
		t.Fatalf("append first message: %v", err)
	}
	if err := chatRepo.Append(ctx, bob.ID, alice.ID, second); err != nil {
		t.Fatalf("append second message: %v", err)
	}

	later := models.Message{
		ID:        uuid.NewString(),
		Room:      chat.RoomKey(alice.ID, carol.ID),
		AuthorID:  carol.ID,
		Content:   "hi alice",
		CreatedAt: time.Now().UTC(),
	}
	if err := chatRepo.Append(ctx, carol.ID, alice.ID, later); err != nil {
		t.Fatalf("append carol message: %v", err)
	}

	messages, err := chatRepo.ListMessages(ctx, room)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].ID != first.ID || messages[1].ID != second.ID {
		t.Fatalf("expected append order preserved, got %+v", messages)
	}
	if messages[0].Author.ID != alice.ID {
		t.Fatalf("expected author profile resolved, got %+v", messages[0].Author)
	}

	conversations, err := chatRepo.ListConversations(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(conversations) != 2 {
		t.Fatalf("expected 2 conversations for alice, got %d", len(conversations))
	}
	if conversations[0].OtherUserID != carol.ID {
		t.Fatalf("expected most recent conversation first, got %+v", conversations)
	}
	if conversations[1].OtherUserID != bob.ID {
		t.Fatalf("expected bob conversation second, got %+v", conversations)
	}

	empty, err := chatRepo.ListMessages(ctx, chat.RoomKey(bob.ID, carol.ID))
	if err != nil {
		t.Fatalf("list unknown room: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty history for unknown room, got %d", len(empty))
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE messages, conversations, post_likes, comments, posts, tokens, friend_requests, friendships, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, email string) models.User {
	t.Helper()
	user := models.User{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  "password-hash",
		FirstName: "Test",
		LastName:  "User",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func createTestPost(t *testing.T, repo *PostgresPostRepository, authorID, content string, createdAt time.Time) models.Post {
	t.Helper()
	post := models.Post{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: createdAt,
	}
	if err := repo.Create(context.Background(), post); err != nil {
		t.Fatalf("create test post: %v", err)
	}
	return post
}
