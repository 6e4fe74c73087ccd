package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/linkapp/backend/internal/auth"
	"github.com/linkapp/backend/internal/logging"
)

// Cookie names for the two client-held credentials.
const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

type sessionCtxKey struct{}

// UserID returns the authenticated caller attached by the session gate.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionCtxKey{}).(string)
	return id, ok && id != ""
}

// WithUserID attaches a caller identity to the context. Exposed for tests.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, userID)
}

// SetCredential writes one of the token cookies.
func SetCredential(w http.ResponseWriter, name, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCredentials expires both token cookies.
func ClearCredentials(w http.ResponseWriter) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// SessionGate validates the access-token credential and attaches the caller's
// identity to the request context. An expired access token is not a hard
// failure: the gate runs the refresh step against the persisted refresh
// record and, on success, hands a fresh access token back as a cookie update
// and lets the request proceed. The refresh token itself is not rotated here.
func SessionGate(tokens *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			accessCookie, err := r.Cookie(AccessCookie)
			if err != nil {
				writeGateError(w, http.StatusForbidden, "", "Please log in.")
				return
			}

			userID, err := tokens.Validate(ctx, accessCookie.Value, auth.KindAccess)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(WithUserID(ctx, userID)))
				return
			case errors.Is(err, auth.ErrTokenExpired):
				// fall through to the refresh step
			case errors.Is(err, auth.ErrTokenInvalid):
				writeGateError(w, http.StatusForbidden, "invalid", "Token is invalid.")
				return
			default:
				logging.FromContext(ctx).Error("validate access token", "error", err)
				writeGateError(w, http.StatusInternalServerError, "", "Something went wrong, please try again later.")
				return
			}

			refreshCookie, err := r.Cookie(RefreshCookie)
			if err != nil {
				writeGateError(w, http.StatusForbidden, "expired", "Refresh token is invalid")
				return
			}

			userID, err = tokens.Validate(ctx, refreshCookie.Value, auth.KindRefresh)
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) || errors.Is(err, auth.ErrTokenInvalid) {
					writeGateError(w, http.StatusForbidden, "expired", "Refresh token is invalid")
					return
				}
				logging.FromContext(ctx).Error("validate refresh token", "error", err)
				writeGateError(w, http.StatusInternalServerError, "", "Something went wrong, please try again later.")
				return
			}

			accessToken, expiresAt, err := tokens.Issue(ctx, auth.KindAccess, userID)
			if err != nil {
				logging.FromContext(ctx).Error("reissue access token", "error", err)
				writeGateError(w, http.StatusInternalServerError, "", "Something went wrong, please try again later.")
				return
			}
			SetCredential(w, AccessCookie, accessToken, expiresAt)

			next.ServeHTTP(w, r.WithContext(WithUserID(ctx, userID)))
		})
	}
}

func writeGateError(w http.ResponseWriter, status int, token, result string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	body := map[string]any{
		"status": false,
		"error":  map[string]string{"result": result},
	}
	if token != "" {
		body["token"] = token
	}
	_ = json.NewEncoder(w).Encode(body)
}
