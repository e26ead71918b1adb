package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"vidtube/internal/apperr"
	"vidtube/internal/models"
	"vidtube/internal/storage"
)

type contextKey string

const (
	userContextKey    contextKey = "authenticatedUser"
	expiryContextKey  contextKey = "sessionExpiry"
	sessionContextKey contextKey = "sessionToken"
)

// ContextWithUser stores the authenticated user in the provided context.
func ContextWithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the authenticated user from context if present.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userContextKey).(models.User)
	return user, ok
}

// ContextWithSession records the token and expiry that authenticated the request.
func ContextWithSession(ctx context.Context, token string, expiresAt time.Time) context.Context {
	ctx = context.WithValue(ctx, sessionContextKey, token)
	return context.WithValue(ctx, expiryContextKey, expiresAt)
}

func sessionFromContext(ctx context.Context) (string, time.Time) {
	token, _ := ctx.Value(sessionContextKey).(string)
	expiresAt, _ := ctx.Value(expiryContextKey).(time.Time)
	return token, expiresAt
}

// actingUserID is the id of the signed-in caller, or "" for anonymous requests.
func actingUserID(r *http.Request) string {
	if user, ok := UserFromContext(r.Context()); ok {
		return user.ID
	}
	return ""
}

// ExtractToken reads the session token from a Bearer Authorization header or
// the session cookie.
func ExtractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// AuthenticateRequest validates the session token on the request and returns
// the user it belongs to together with the session expiry.
func (h *Handler) AuthenticateRequest(r *http.Request) (models.User, time.Time, error) {
	token := ExtractToken(r)
	if token == "" {
		return models.User{}, time.Time{}, apperr.Unauthorized("missing session token")
	}
	userID, expiresAt, ok, err := h.Sessions.Validate(r.Context(), token)
	if err != nil {
		return models.User{}, time.Time{}, apperr.Internal(err, "validate session")
	}
	if !ok {
		return models.User{}, time.Time{}, apperr.Unauthorized("invalid or expired session")
	}
	user, err := h.Store.GetUser(r.Context(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.User{}, time.Time{}, apperr.Unauthorized("account not found")
	}
	if err != nil {
		return models.User{}, time.Time{}, apperr.Internal(err, "load session user")
	}
	return user, expiresAt, nil
}

type sessionResponse struct {
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// Session returns the signed-in user and refreshes the session cookie.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		h.fail(w, r, apperr.Unauthorized("authentication required"))
		return
	}
	token, expiresAt := sessionFromContext(r.Context())
	if _, err := r.Cookie(SessionCookieName); err == nil {
		setSessionCookie(w, r, token, expiresAt, h.sessionCookiePolicy())
	}
	writeJSON(w, http.StatusOK, "current session", sessionResponse{User: user, ExpiresAt: expiresAt})
}

// Logout revokes the presented session and clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := ExtractToken(r); token != "" {
		if err := h.Sessions.Revoke(r.Context(), token); err != nil {
			h.fail(w, r, apperr.Internal(err, "revoke session"))
			return
		}
	}
	clearSessionCookie(w, r, h.sessionCookiePolicy())
	writeJSON(w, http.StatusOK, "signed out", nil)
}
