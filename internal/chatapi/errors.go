// ABOUTME: Translation of store sentinel errors onto HTTP statuses.
// ABOUTME: One switch so every moderation handler maps conflicts and refusals identically.

package chatapi

import (
	"errors"
	"net/http"

	"github.com/freetonight/chatd/internal/store"
)

// writeStoreError maps a store error onto a response. Domain sentinels get
// precise statuses; anything unrecognized is logged with logMsg and the
// given attrs and surfaces as a bare 500.
func (a *API) writeStoreError(w http.ResponseWriter, err error, logMsg string, attrs ...any) {
	switch {
	case errors.Is(err, store.ErrNotEventHost):
		writeError(w, http.StatusForbidden, "only the event host may do that")
	case errors.Is(err, store.ErrEventNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case errors.Is(err, store.ErrJoinRequestNotFound):
		writeError(w, http.StatusNotFound, "join request not found")
	case errors.Is(err, store.ErrNotConversationMember):
		writeError(w, http.StatusNotFound, "not a member of this conversation")
	case errors.Is(err, store.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, store.ErrAlreadyConversationMember):
		writeError(w, http.StatusConflict, "already a member of this conversation")
	case errors.Is(err, store.ErrJoinRequestExists):
		writeError(w, http.StatusConflict, "a join request is already pending")
	case errors.Is(err, store.ErrCannotRemoveHost):
		writeError(w, http.StatusBadRequest, "the event host cannot be removed")
	case errors.Is(err, store.ErrConversationNotFound):
		// An event without its group conversation is a data integrity
		// failure, not a client mistake.
		a.logger.Error(logMsg, append(attrs, "error", err)...)
		writeError(w, http.StatusInternalServerError, "conversation record missing")
	default:
		a.logger.Error(logMsg, append(attrs, "error", err)...)
		writeError(w, http.StatusInternalServerError, "storage failure")
	}
}
