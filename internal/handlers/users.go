package handlers

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/linkapp/backend/internal/auth"
	"github.com/linkapp/backend/internal/logging"
	"github.com/linkapp/backend/internal/middleware"
	"github.com/linkapp/backend/internal/models"
	"github.com/linkapp/backend/internal/relationship"
	"github.com/linkapp/backend/internal/repositories"
)

// UserHandler implements profile listing, fuzzy search, profile detail, and
// account updates.
type UserHandler struct {
	Users   UserStore
	Posts   PostStore
	Tokens  *auth.Service
	Hasher  auth.Hasher
	Images  ImageStore
	NowFunc func() time.Time
}

// userSummary is the public profile slice plus the caller's relationship to
// it. The incoming-request set is never exposed on summaries.
type userSummary struct {
	ID        string `json:"_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Image     string `json:"image"`
	Type      string `json:"type"`
}

func summarize(self, user models.User) userSummary {
	return userSummary{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Image:     user.Image,
		Type:      string(relationship.Classify(self, user)),
	}
}

// List handles GET /user: every user with their classification against the
// caller, sorted by display name.
func (h UserHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	selfID, _ := middleware.UserID(ctx)
	self, err := h.Users.Get(ctx, selfID)
	if err != nil {
		logger.Error("load caller", "error", err, "userid", selfID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	users, err := h.Users.List(ctx)
	if err != nil {
		logger.Error("list users", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	summaries := make([]userSummary, 0, len(users))
	for _, user := range users {
		summaries = append(summaries, summarize(self, user))
	}
	sort.Slice(summaries, func(i, j int) bool {
		a := strings.ToLower(summaries[i].FirstName + " " + summaries[i].LastName)
		b := strings.ToLower(summaries[j].FirstName + " " + summaries[j].LastName)
		return a < b
	})

	respondJSON(ctx, w, http.StatusOK, map[string]any{"users": summaries})
}

// Search handles GET /user/search?keyword=: fuzzy name match by relative edit
// distance, closest first.
func (h UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	keyword := normalizeName(r.URL.Query().Get("keyword"))
	if keyword == "" {
		respondError(ctx, w, http.StatusBadRequest, "No keyword found.")
		return
	}

	selfID, _ := middleware.UserID(ctx)
	self, err := h.Users.Get(ctx, selfID)
	if err != nil {
		logger.Error("load caller", "error", err, "userid", selfID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	users, err := h.Users.List(ctx)
	if err != nil {
		logger.Error("list users", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	type scored struct {
		score   float64
		summary userSummary
	}
	var matches []scored
	for _, user := range users {
		name := normalizeName(user.FirstName + user.LastName)
		score := relativeEditDistance(keyword, name)
		if score <= searchDistanceCutoff {
			matches = append(matches, scored{score: score, summary: summarize(self, user)})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score < matches[j].score })

	results := make([]userSummary, 0, len(matches))
	for _, m := range matches {
		results = append(results, m.summary)
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"status": true, "users": results})
}

// searchDistanceCutoff is the largest relative edit distance (in percent)
// still considered a match.
const searchDistanceCutoff = 65.0

func normalizeName(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "")
}

// relativeEditDistance returns the Levenshtein distance between a and b as a
// percentage of the longer string's length.
func relativeEditDistance(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	if len(a) == 0 || len(b) == 0 {
		return 100
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}

	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	return float64(prev[len(b)]) / float64(longest) * 100
}

// userDetail is the profile response. FriendRequests is only present on the
// self variant.
type userDetail struct {
	ID             string        `json:"_id"`
	FirstName      string        `json:"first_name"`
	LastName       string        `json:"last_name"`
	Image          string        `json:"image"`
	Type           string        `json:"type"`
	Posts          []postView    `json:"posts"`
	Friends        []userSummary `json:"friends"`
	FriendRequests []userSummary `json:"friend_requests,omitempty"`
}

// Get handles GET /user/{userid}: profile with posts, friends, and (for the
// caller's own profile) pending friend requests.
func (h UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	selfID, _ := middleware.UserID(ctx)
	self, err := h.Users.Get(ctx, selfID)
	if err != nil {
		logger.Error("load caller", "error", err, "userid", selfID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	user, err := h.Users.Get(ctx, r.PathValue("userid"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "User not found.")
			return
		}
		logger.Error("load user", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	posts, err := h.Posts.ListByAuthor(ctx, user.ID)
	if err != nil {
		logger.Error("list user posts", "error", err, "userid", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	detail := userDetail{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Image:     user.Image,
		Type:      string(relationship.Classify(self, user)),
		Posts:     postViews(posts),
		Friends:   make([]userSummary, 0, len(user.Friends)),
	}

	for _, friendID := range user.Friends {
		friend, err := h.Users.Get(ctx, friendID)
		if err != nil {
			logger.Warn("resolve friend", "error", err, "friendid", friendID)
			continue
		}
		detail.Friends = append(detail.Friends, summarize(self, friend))
	}

	if detail.Type == string(relationship.Self) {
		detail.FriendRequests = make([]userSummary, 0, len(user.FriendRequests))
		for _, requesterID := range user.FriendRequests {
			requester, err := h.Users.Get(ctx, requesterID)
			if err != nil {
				logger.Warn("resolve requester", "error", err, "requesterid", requesterID)
				continue
			}
			detail.FriendRequests = append(detail.FriendRequests, summarize(self, requester))
		}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"user": detail})
}

// Update handles PUT /user/{userid}: profile names plus the image
// replace/clear rules. Self-only.
func (h UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	selfID, _ := middleware.UserID(ctx)
	if selfID != r.PathValue("userid") {
		respondError(ctx, w, http.StatusForbidden, "No permission.")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	firstName := sanitizeContent(r.FormValue("first_name"))
	lastName := sanitizeContent(r.FormValue("last_name"))
	deleteImage := r.FormValue("delete_image") == "true"

	fields := map[string]string{}
	if n := len(firstName); n < 1 || n > 50 {
		fields["first_name"] = "First name must be within 1 to 50 characters"
	}
	if n := len(lastName); n < 1 || n > 50 {
		fields["last_name"] = "Last name must be within 1 to 50 characters"
	}
	if len(fields) > 0 {
		respondFieldErrors(ctx, w, http.StatusBadRequest, fields)
		return
	}

	user, err := h.Users.Get(ctx, selfID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "User not found.")
			return
		}
		logger.Error("load user", "error", err, "userid", selfID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	image, err := applyImageRules(r, h.Images, user.ID, user.Image, deleteImage)
	if err != nil {
		var badImage *imageError
		if errors.As(err, &badImage) {
			respondFieldErrors(ctx, w, http.StatusBadRequest, map[string]string{badImage.Field: badImage.Message})
			return
		}
		logger.Error("store profile image", "error", err, "userid", user.ID)
		respondError(ctx, w, http.StatusBadRequest, "Something went wrong.")
		return
	}

	user.FirstName = firstName
	user.LastName = lastName
	user.Image = image
	user.UpdatedAt = h.now()

	if err := h.Users.Update(ctx, user); err != nil {
		logger.Error("update user", "error", err, "userid", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	respondOK(ctx, w, "User information is updated.")
}

type changePasswordRequest struct {
	OldPassword   string `json:"old_password"`
	NewPassword   string `json:"new_password"`
	NewRePassword string `json:"new_repassword"`
}

// ChangePassword handles PUT /user/{userid}/password. A successful change
// revokes every persisted token the user holds.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	selfID, _ := middleware.UserID(ctx)
	if selfID != r.PathValue("userid") {
		respondError(ctx, w, http.StatusForbidden, "No permission.")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	fields := map[string]string{}
	if req.OldPassword == "" {
		fields["old_password"] = "Old password cannot be empty."
	}
	if n := len(req.NewPassword); n < 8 || n > 128 {
		fields["new_password"] = "New password must be within 8 and 128 characters."
	}
	if req.NewRePassword != req.NewPassword {
		fields["new_repassword"] = "Confirmation password does not match."
	}
	if len(fields) > 0 {
		respondFieldErrors(ctx, w, http.StatusBadRequest, fields)
		return
	}

	user, err := h.Users.Get(ctx, selfID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "User not found.")
			return
		}
		logger.Error("load user", "error", err, "userid", selfID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	if !h.Hasher.Compare(user.Password, req.OldPassword) {
		respondError(ctx, w, http.StatusForbidden, "Old password does not match.")
		return
	}

	hashed, err := h.Hasher.Hash(req.NewPassword)
	if err != nil {
		logger.Error("hash password", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	if err := h.Users.UpdatePassword(ctx, user.ID, hashed); err != nil {
		logger.Error("update password", "error", err, "userid", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	if err := h.Tokens.RevokeAll(ctx, user.ID); err != nil {
		logger.Error("revoke tokens after password change", "error", err, "userid", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	respondOK(ctx, w, "Password changed.")
}

func (h UserHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
