package handlers

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/linkapp/backend/internal/auth"
	"github.com/linkapp/backend/internal/middleware"
	"github.com/linkapp/backend/internal/models"
	"github.com/linkapp/backend/internal/relationship"
)

// testEnv wires the full route table over in-memory stores so tests exercise
// the same mux, gate, and handlers the server runs.
type testEnv struct {
	users      *memUserStore
	posts      *memPostStore
	chats      *memChatStore
	tokens     *auth.Service
	tokenStore *auth.InMemoryTokenStore
	email      *fakeEmail
	images     *fakeImages
	hasher     auth.Hasher
	mux        *http.ServeMux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		users:  newMemUserStore(),
		chats:  newMemChatStore(),
		email:  &fakeEmail{},
		images: &fakeImages{},
		hasher: auth.NewHasher(4),
		mux:    http.NewServeMux(),
	}
	env.posts = newMemPostStore(env.users)
	env.tokens, env.tokenStore = newTestTokenService()

	RegisterRoutes(env.mux, Dependencies{
		Users:         env.users,
		Posts:         env.posts,
		Chats:         env.chats,
		Relationships: relationship.NewEngine(env.users),
		Tokens:        env.tokens,
		Hasher:        env.hasher,
		Email:         env.email,
		Images:        env.images,
		ClientURL:     "http://localhost:3000",
	})

	return env
}

func (e *testEnv) addUser(t *testing.T, id, email, firstName, lastName, password string) models.User {
	t.Helper()

	hashed, err := e.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := models.User{
		ID:        id,
		Email:     email,
		Password:  hashed,
		FirstName: firstName,
		LastName:  lastName,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := e.users.Create(t.Context(), user); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	return user
}

// do performs a request through the mux. A non-empty userID attaches a fresh
// access-token cookie for that caller.
func (e *testEnv) do(t *testing.T, method, target, userID string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if userID != "" {
		token, expiresAt, err := e.tokens.Issue(t.Context(), auth.KindAccess, userID)
		if err != nil {
			t.Fatalf("issue access token: %v", err)
		}
		req.AddCookie(&http.Cookie{Name: middleware.AccessCookie, Value: token, Expires: expiresAt})
	}

	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

// doWithRefreshCookie posts to target carrying only a refresh-token cookie,
// the shape browsers present on /auth/refresh and /auth/logout.
func (e *testEnv) doWithRefreshCookie(t *testing.T, target, refreshToken string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: middleware.RefreshCookie, Value: refreshToken})

	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

// multipartBody builds a multipart form from the given fields, optionally
// attaching an image part.
func multipartBody(t *testing.T, fields map[string]string, imageName string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("write field %s: %v", name, err)
		}
	}
	if imageName != "" {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="image"; filename="`+imageName+`"`)
		header.Set("Content-Type", "image/png")
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("create image part: %v", err)
		}
		if _, err := part.Write([]byte("not-a-real-png")); err != nil {
			t.Fatalf("write image part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}
