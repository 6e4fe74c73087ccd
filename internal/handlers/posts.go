package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/linkapp/backend/internal/logging"
	"github.com/linkapp/backend/internal/middleware"
	"github.com/linkapp/backend/internal/models"
	"github.com/linkapp/backend/internal/repositories"
)

// PostHandler implements post, comment, and like endpoints.
type PostHandler struct {
	Posts   PostStore
	Images  ImageStore
	NowFunc func() time.Time
}

type commentView struct {
	ID       string      `json:"_id"`
	Author   userProfile `json:"author"`
	Content  string      `json:"content"`
	Markdown bool        `json:"markdown"`
	Math     bool        `json:"math"`
	Date     time.Time   `json:"date"`
}

type postView struct {
	ID       string        `json:"_id"`
	Author   userProfile   `json:"author"`
	Content  string        `json:"content"`
	Markdown bool          `json:"markdown"`
	Math     bool          `json:"math"`
	Date     time.Time     `json:"date"`
	Image    string        `json:"image"`
	Comments []commentView `json:"comments"`
	Likes    []string      `json:"likes"`
}

type userProfile struct {
	ID        string `json:"_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Image     string `json:"image"`
}

func profileView(p models.Profile) userProfile {
	return userProfile{ID: p.ID, FirstName: p.FirstName, LastName: p.LastName, Image: p.Image}
}

func postViews(views []models.PostView) []postView {
	out := make([]postView, 0, len(views))
	for _, v := range views {
		comments := make([]commentView, 0, len(v.Comments))
		for _, c := range v.Comments {
			comments = append(comments, commentView{
				ID:       c.ID,
				Author:   profileView(c.Author),
				Content:  c.Content,
				Markdown: c.Markdown,
				Math:     c.Math,
				Date:     c.CreatedAt,
			})
		}
		likes := v.Likes
		if likes == nil {
			likes = []string{}
		}
		out = append(out, postView{
			ID:       v.ID,
			Author:   profileView(v.Author),
			Content:  v.Content,
			Markdown: v.Markdown,
			Math:     v.Math,
			Date:     v.CreatedAt,
			Image:    v.Image,
			Comments: comments,
			Likes:    likes,
		})
	}
	return out
}

// Feed handles GET /post: the caller's own posts plus their friends' posts,
// oldest first.
func (h PostHandler) Feed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _ := middleware.UserID(ctx)
	feed, err := h.Posts.Feed(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("list feed", "error", err, "userid", userID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"status": true, "posts": postViews(feed)})
}

// postForm carries the validated multipart fields shared by create and
// update.
type postForm struct {
	Content     string
	Markdown    bool
	Math        bool
	DeleteImage bool
}

func parsePostForm(r *http.Request) (postForm, map[string]string) {
	form := postForm{
		Content:     sanitizeContent(r.FormValue("content")),
		Markdown:    r.FormValue("markdown") == "true",
		Math:        r.FormValue("math") == "true",
		DeleteImage: r.FormValue("delete_image") == "true",
	}

	fields := map[string]string{}
	if n := len(form.Content); n < 1 || n > 30000 {
		fields["content"] = "Content length should be within 1 to 30000 characters"
	}
	if v := r.FormValue("markdown"); v != "" && v != "true" && v != "false" {
		fields["markdown"] = "markdown should be a boolean value."
	}
	if v := r.FormValue("math"); v != "" && v != "true" && v != "false" {
		fields["math"] = "math should be a boolean value."
	}
	if v := r.FormValue("delete_image"); v != "" && v != "true" && v != "false" {
		fields["delete_image"] = "delete_image should be a boolean value."
	}

	return form, fields
}

// Create handles POST /post.
func (h PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	form, fields := parsePostForm(r)
	if len(fields) > 0 {
		respondFieldErrors(ctx, w, http.StatusBadRequest, fields)
		return
	}

	userID, _ := middleware.UserID(ctx)
	post := models.Post{
		ID:        uuid.NewString(),
		AuthorID:  userID,
		Content:   form.Content,
		Markdown:  form.Markdown,
		Math:      form.Math,
		CreatedAt: h.now(),
	}

	image, err := applyImageRules(r, h.Images, post.ID, "", form.DeleteImage)
	if err != nil {
		var badImage *imageError
		if errors.As(err, &badImage) {
			respondFieldErrors(ctx, w, http.StatusBadRequest, map[string]string{badImage.Field: badImage.Message})
			return
		}
		logger.Error("store post image", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "Something went wrong.")
		return
	}
	post.Image = image

	if err := h.Posts.Create(ctx, post); err != nil {
		logger.Error("create post", "error", err, "userid", userID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	respondOK(ctx, w, "Post is created.")
}

// Update handles PUT /post/{postid}. Author-only; rewrites content, flags,
// and image under the same rules as create.
func (h PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	view, err := h.Posts.Get(ctx, r.PathValue("postid"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "Post not found.")
			return
		}
		logger.Error("load post", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	userID, _ := middleware.UserID(ctx)
	if view.AuthorID != userID {
		respondError(ctx, w, http.StatusForbidden, "No permission.")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	form, fields := parsePostForm(r)
	if len(fields) > 0 {
		respondFieldErrors(ctx, w, http.StatusBadRequest, fields)
		return
	}

	image, err := applyImageRules(r, h.Images, view.ID, view.Image, form.DeleteImage)
	if err != nil {
		var badImage *imageError
		if errors.As(err, &badImage) {
			respondFieldErrors(ctx, w, http.StatusBadRequest, map[string]string{badImage.Field: badImage.Message})
			return
		}
		logger.Error("store post image", "error", err, "postid", view.ID)
		respondError(ctx, w, http.StatusBadRequest, "Something went wrong.")
		return
	}

	post := view.Post
	post.Content = form.Content
	post.Markdown = form.Markdown
	post.Math = form.Math
	post.Image = image

	if err := h.Posts.Update(ctx, post); err != nil {
		logger.Error("update post", "error", err, "postid", post.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	respondOK(ctx, w, "Post is updated.")
}

// Delete handles DELETE /post/{postid}. Author-only.
func (h PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	view, err := h.Posts.Get(ctx, r.PathValue("postid"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "Post not found.")
			return
		}
		logger.Error("load post", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	userID, _ := middleware.UserID(ctx)
	if view.AuthorID != userID {
		respondError(ctx, w, http.StatusForbidden, "No permission.")
		return
	}

	if view.Image != "" {
		if err := h.Images.Delete(ctx, view.Image); err != nil {
			logger.Warn("delete post image", "error", err, "postid", view.ID)
		}
	}

	if err := h.Posts.Delete(ctx, view.ID); err != nil {
		logger.Error("delete post", "error", err, "postid", view.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	respondOK(ctx, w, "Post is deleted.")
}

// Like handles POST /post/{postid}/like; liking twice is a no-op success.
func (h PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.react(w, r, h.Posts.Like, "Post is liked.")
}

// Unlike handles DELETE /post/{postid}/like; removing an absent like is a
// no-op success.
func (h PostHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	h.react(w, r, h.Posts.Unlike, "Post is unliked.")
}

func (h PostHandler) react(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, postID, userID string) error, message string) {
	ctx := r.Context()

	postID := r.PathValue("postid")
	if _, err := h.Posts.Get(ctx, postID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "Post not found.")
			return
		}
		logging.FromContext(ctx).Error("load post", "error", err, "postid", postID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	userID, _ := middleware.UserID(ctx)
	if err := apply(ctx, postID, userID); err != nil {
		logging.FromContext(ctx).Error("update likes", "error", err, "postid", postID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	respondOK(ctx, w, message)
}

type commentRequest struct {
	Content  string `json:"content"`
	Markdown bool   `json:"markdown"`
	Math     bool   `json:"math"`
}

// Comment handles POST /post/{postid}/comment.
func (h PostHandler) Comment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	postID := r.PathValue("postid")
	if _, err := h.Posts.Get(ctx, postID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "Post not found.")
			return
		}
		logger.Error("load post", "error", err, "postid", postID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	content := sanitizeContent(req.Content)
	if n := len(content); n < 1 || n > 30000 {
		respondFieldErrors(ctx, w, http.StatusBadRequest, map[string]string{"content": "Content length should be within 1 to 30000 characters"})
		return
	}

	userID, _ := middleware.UserID(ctx)
	comment := models.Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		AuthorID:  userID,
		Content:   content,
		Markdown:  req.Markdown,
		Math:      req.Math,
		CreatedAt: h.now(),
	}

	if err := h.Posts.AddComment(ctx, comment); err != nil {
		logger.Error("add comment", "error", err, "postid", postID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	respondOK(ctx, w, "Comment is created.")
}

// UpdateComment handles PUT /post/{postid}/comment/{commentid}. Author-only.
func (h PostHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	comment, ok := h.loadOwnComment(w, r)
	if !ok {
		return
	}

	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	content := sanitizeContent(req.Content)
	if n := len(content); n < 1 || n > 30000 {
		respondFieldErrors(ctx, w, http.StatusBadRequest, map[string]string{"content": "Content length should be within 1 to 30000 characters"})
		return
	}

	comment.Content = content
	comment.Markdown = req.Markdown
	comment.Math = req.Math

	if err := h.Posts.UpdateComment(ctx, comment); err != nil {
		logger.Error("update comment", "error", err, "commentid", comment.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	respondOK(ctx, w, "Comment is updated.")
}

// DeleteComment handles DELETE /post/{postid}/comment/{commentid}.
// Author-only.
func (h PostHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	comment, ok := h.loadOwnComment(w, r)
	if !ok {
		return
	}

	if err := h.Posts.DeleteComment(ctx, comment.ID); err != nil {
		logging.FromContext(ctx).Error("delete comment", "error", err, "commentid", comment.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	respondOK(ctx, w, "Comment is deleted.")
}

// loadOwnComment resolves the addressed comment and enforces that it belongs
// to the addressed post and to the caller. Writes the failure response itself
// when returning ok=false.
func (h PostHandler) loadOwnComment(w http.ResponseWriter, r *http.Request) (models.Comment, bool) {
	ctx := r.Context()

	comment, err := h.Posts.GetComment(ctx, r.PathValue("commentid"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "Comment not found.")
			return models.Comment{}, false
		}
		logging.FromContext(ctx).Error("load comment", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return models.Comment{}, false
	}

	if comment.PostID != r.PathValue("postid") {
		respondError(ctx, w, http.StatusNotFound, "Comment not found.")
		return models.Comment{}, false
	}

	userID, _ := middleware.UserID(ctx)
	if comment.AuthorID != userID {
		respondError(ctx, w, http.StatusForbidden, "No permission.")
		return models.Comment{}, false
	}

	return comment, true
}

func (h PostHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
