package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/linkapp/backend/internal/auth"
	"github.com/linkapp/backend/internal/logging"
	"github.com/linkapp/backend/internal/middleware"
	"github.com/linkapp/backend/internal/models"
	"github.com/linkapp/backend/internal/repositories"
)

// AuthHandler implements the account lifecycle: login, registration, email
// verification, password reset, and session teardown.
type AuthHandler struct {
	Users     UserStore
	Tokens    *auth.Service
	Hasher    auth.Hasher
	Email     EmailSender
	ClientURL string
	NowFunc   func() time.Time
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	UserID       string `json:"userid"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Login handles POST /auth/login.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	fields := map[string]string{}
	if req.Email == "" {
		fields["email"] = "Email cannot be empty."
	}
	if req.Password == "" {
		fields["password"] = "Password cannot be empty."
	}
	if len(fields) > 0 {
		respondFieldErrors(ctx, w, http.StatusUnauthorized, fields)
		return
	}

	user, err := h.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusUnauthorized, "Email not found.")
			return
		}
		logger.Error("login user lookup failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	if !h.Hasher.Compare(user.Password, req.Password) {
		logger.Warn("login password mismatch", "userid", user.ID)
		respondError(ctx, w, http.StatusUnauthorized, "Password does not match.")
		return
	}

	refreshToken, refreshExpiry, err := h.Tokens.Issue(ctx, auth.KindRefresh, user.ID)
	if err != nil {
		logger.Error("issue refresh token", "error", err, "userid", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}
	accessToken, accessExpiry, err := h.Tokens.Issue(ctx, auth.KindAccess, user.ID)
	if err != nil {
		logger.Error("issue access token", "error", err, "userid", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	middleware.SetCredential(w, middleware.AccessCookie, accessToken, accessExpiry)
	middleware.SetCredential(w, middleware.RefreshCookie, refreshToken, refreshExpiry)

	respondJSON(ctx, w, http.StatusOK, loginResponse{
		UserID:       user.ID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

type refreshResponse struct {
	UserID      string `json:"userid"`
	AccessToken string `json:"accessToken"`
}

// Refresh handles POST /auth/refresh: exchanges a persisted refresh
// credential for a fresh access token. The refresh token is not rotated.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cookie, err := r.Cookie(middleware.RefreshCookie)
	if err != nil {
		respondError(ctx, w, http.StatusForbidden, "Refresh token is invalid")
		return
	}

	userID, err := h.Tokens.Validate(ctx, cookie.Value, auth.KindRefresh)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) || errors.Is(err, auth.ErrTokenInvalid) {
			respondError(ctx, w, http.StatusForbidden, "Refresh token is invalid")
			return
		}
		logging.FromContext(ctx).Error("validate refresh token", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	accessToken, expiresAt, err := h.Tokens.Issue(ctx, auth.KindAccess, userID)
	if err != nil {
		logging.FromContext(ctx).Error("issue access token", "error", err, "userid", userID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	middleware.SetCredential(w, middleware.AccessCookie, accessToken, expiresAt)
	respondJSON(ctx, w, http.StatusOK, refreshResponse{UserID: userID, AccessToken: accessToken})
}

type registerRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RePassword string `json:"repassword"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
}

// Register handles POST /auth/register. A new account starts unverified; a
// verification link is mailed with a short-lived email token.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid register payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.FirstName = sanitizeContent(req.FirstName)
	req.LastName = sanitizeContent(req.LastName)

	fields := map[string]string{}
	if n := len(req.FirstName); n < 1 || n > 50 {
		fields["first_name"] = "First name must be within 1 to 50 characters"
	}
	if n := len(req.LastName); n < 1 || n > 50 {
		fields["last_name"] = "Last name must be within 1 to 50 characters"
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		fields["email"] = "Invalid email body."
	}
	if n := len(req.Password); n < 8 || n > 128 {
		fields["password"] = "Password must be within 8 to 128 characters"
	}
	if req.RePassword != req.Password {
		fields["repassword"] = "Password confirmation does not match."
	}
	if len(fields) > 0 {
		respondFieldErrors(ctx, w, http.StatusBadRequest, fields)
		return
	}

	if _, err := h.Users.FindByEmail(ctx, req.Email); err == nil {
		respondFieldErrors(ctx, w, http.StatusBadRequest, map[string]string{"email": "Email already exist."})
		return
	} else if !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("register email lookup failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	hashed, err := h.Hasher.Hash(req.Password)
	if err != nil {
		logger.Error("hash password", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	now := h.now()
	user := models.User{
		ID:        uuid.NewString(),
		Email:     req.Email,
		Password:  hashed,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondFieldErrors(ctx, w, http.StatusBadRequest, map[string]string{"email": "Email already exist."})
			return
		}
		logger.Error("create user", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	emailToken, _, err := h.Tokens.Issue(ctx, auth.KindEmail, user.ID)
	if err != nil {
		logger.Error("issue email token", "error", err, "userid", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	body := fmt.Sprintf("Welcome to Link!\n\nVerify your email address by visiting:\n%s/verify-email?token=%s\n\nThe link expires in 20 minutes.", h.ClientURL, emailToken)
	if err := h.Email.Send(ctx, user.Email, "Verify your Link account", body); err != nil {
		logger.Error("send verification email", "error", err, "userid", user.ID)
		respondError(ctx, w, http.StatusBadRequest, "Something went wrong, please try again later.")
		return
	}

	respondJSON(ctx, w, http.StatusOK, statusOK{Status: true})
}

type verifyEmailRequest struct {
	EmailToken string `json:"emailToken"`
}

// VerifyEmail handles POST /auth/verify-email.
func (h AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	userID, err := h.Tokens.Validate(ctx, req.EmailToken, auth.KindEmail)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			respondError(ctx, w, http.StatusBadRequest, "Token is expired.")
		case errors.Is(err, auth.ErrTokenInvalid):
			respondError(ctx, w, http.StatusBadRequest, "Token is invalid.")
		default:
			logging.FromContext(ctx).Error("validate email token", "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		}
		return
	}

	if err := h.Users.SetVerified(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "User not found.")
			return
		}
		logging.FromContext(ctx).Error("mark user verified", "error", err, "userid", userID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	respondJSON(ctx, w, http.StatusOK, statusOK{Status: true})
}

type resetPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPassword handles POST /auth/reset-password: issues a persisted reset
// token and mails the reset link.
func (h AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondFieldErrors(ctx, w, http.StatusBadRequest, map[string]string{"email": "Invalid email body."})
		return
	}

	user, err := h.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusBadRequest, "Email not found.")
			return
		}
		logger.Error("reset password lookup failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	resetToken, _, err := h.Tokens.Issue(ctx, auth.KindPassword, user.ID)
	if err != nil {
		logger.Error("issue reset token", "error", err, "userid", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	body := fmt.Sprintf("A password reset was requested for your Link account.\n\nReset your password by visiting:\n%s/verify-reset-password?token=%s\n\nThe link expires in 20 minutes. If you did not request this, ignore this email.", h.ClientURL, resetToken)
	if err := h.Email.Send(ctx, user.Email, "Reset your Link password", body); err != nil {
		logger.Error("send reset email", "error", err, "userid", user.ID)
		respondError(ctx, w, http.StatusBadRequest, "Something went wrong, please try again later.")
		return
	}

	respondJSON(ctx, w, http.StatusOK, statusOK{Status: true})
}

type verifyResetPasswordRequest struct {
	ResetToken string `json:"resetToken"`
	Password   string `json:"password"`
	RePassword string `json:"repassword"`
}

// VerifyResetPassword handles POST /auth/verify-reset-password. A successful
// reset revokes every persisted token the user holds, forcing re-login on
// all devices.
func (h AuthHandler) VerifyResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req verifyResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	fields := map[string]string{}
	if n := len(req.Password); n < 8 || n > 128 {
		fields["password"] = "Password must be within 8 to 128 characters"
	}
	if req.RePassword != req.Password {
		fields["repassword"] = "Password confirmation does not match."
	}
	if len(fields) > 0 {
		respondFieldErrors(ctx, w, http.StatusBadRequest, fields)
		return
	}

	userID, err := h.Tokens.Validate(ctx, req.ResetToken, auth.KindPassword)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			respondError(ctx, w, http.StatusBadRequest, "Token is expired.")
		case errors.Is(err, auth.ErrTokenInvalid):
			respondError(ctx, w, http.StatusBadRequest, "Token is invalid.")
		default:
			logger.Error("validate reset token", "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		}
		return
	}

	hashed, err := h.Hasher.Hash(req.Password)
	if err != nil {
		logger.Error("hash password", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	if err := h.Users.UpdatePassword(ctx, userID, hashed); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "User not found.")
			return
		}
		logger.Error("update password", "error", err, "userid", userID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	if err := h.Tokens.RevokeAll(ctx, userID); err != nil {
		logger.Error("revoke tokens after reset", "error", err, "userid", userID)
		respondError(ctx, w, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	respondOK(ctx, w, "Password changed.")
}

type statusResponse struct {
	Status bool   `json:"status"`
	UserID string `json:"userid"`
}

// GetStatus handles GET /auth/get-status behind the session gate. Clients use
// it both to learn the caller's id and to pick up refreshed access cookies.
func (h AuthHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := middleware.UserID(ctx)
	if !ok {
		respondError(ctx, w, http.StatusForbidden, "Please log in.")
		return
	}

	respondJSON(ctx, w, http.StatusOK, statusResponse{Status: true, UserID: userID})
}

// Logout handles POST /auth/logout: deletes the persisted refresh record and
// clears both credentials. Deleting the record is the only way to invalidate
// a still-unexpired refresh token.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if cookie, err := r.Cookie(middleware.RefreshCookie); err == nil {
		if err := h.Tokens.Revoke(ctx, cookie.Value); err != nil {
			logging.FromContext(ctx).Warn("revoke refresh token on logout", "error", err)
		}
	}

	middleware.ClearCredentials(w)
	respondJSON(ctx, w, http.StatusOK, statusOK{Status: true})
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
