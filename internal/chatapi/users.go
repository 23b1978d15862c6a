// ABOUTME: Session and user handlers: login (token mint), current user, user directory.
// ABOUTME: Login is the only unauthenticated route and sits behind the per-IP throttle.

package chatapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/freetonight/chatd/internal/auth"
	"github.com/freetonight/chatd/internal/store"
)

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	// Throttle before reading the body; a drained bucket costs nothing.
	if !a.throttle.allow(clientIP(r)) {
		a.logger.Warn("login throttled", "remote", clientIP(r))
		writeError(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Email) == "" || payload.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	user, err := a.store.AuthenticateUser(ctx, payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		a.logger.Error("authenticate user failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Unable to sign in")
		return
	}

	token, _, err := a.signer.Issue(user.ID, user.Email)
	if err != nil {
		a.logger.Error("issue session token failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Unable to sign in")
		return
	}

	a.logger.Info("user signed in", "user_id", user.ID)
	a.writeJSON(w, http.StatusOK, loginResponse{Token: token, User: toUser(*user)})
}

func (a *API) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	claims := auth.MustFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	user, err := a.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			// A valid token for a deleted account is still no session.
			writeError(w, http.StatusUnauthorized, "account no longer exists")
			return
		}
		a.logger.Error("load current user failed", "user_id", claims.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	a.writeJSON(w, http.StatusOK, userResponse{User: toUser(*user)})
}

// handleListUsers returns everyone except the caller, for starting direct
// conversations.
func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	claims := auth.MustFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	users, err := a.store.ListUsers(ctx, claims.UserID)
	if err != nil {
		a.logger.Error("list users failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load users")
		return
	}

	payload := make([]userPayload, 0, len(users))
	for _, user := range users {
		payload = append(payload, toUser(user))
	}
	a.writeJSON(w, http.StatusOK, userListResponse{Users: payload})
}
