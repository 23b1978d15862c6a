// ABOUTME: Conversation and message handlers: listing, creation, paged history.
// ABOUTME: Fetching history advances the caller's read cursor as a best-effort side effect.

package chatapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/freetonight/chatd/internal/auth"
)

func (a *API) handleListConversations(w http.ResponseWriter, r *http.Request) {
	claims := auth.MustFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	summaries, err := a.store.ListConversationsForUser(ctx, claims.UserID)
	if err != nil {
		a.logger.Error("list conversations failed", "user_id", claims.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load conversations")
		return
	}

	payload := make([]conversationSummaryPayload, 0, len(summaries))
	for _, summary := range summaries {
		payload = append(payload, toConversationSummary(summary))
	}
	a.writeJSON(w, http.StatusOK, conversationListResponse{Conversations: payload})
}

func (a *API) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	claims := auth.MustFromContext(r.Context())

	var payload createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	convo, err := a.store.CreateConversation(ctx, payload.Title, claims.UserID, payload.MemberIDs, nil)
	if err != nil {
		a.logger.Error("create conversation failed", "creator", claims.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	summary, err := a.store.GetConversationSummary(ctx, convo.ID, claims.UserID)
	if err != nil {
		a.logger.Error("hydrate new conversation failed", "conversation_id", convo.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load conversation details")
		return
	}

	a.logger.Info("conversation created", "conversation_id", convo.ID, "creator", claims.UserID)
	a.writeJSON(w, http.StatusCreated, conversationResponse{Conversation: toConversationSummary(*summary)})
}

func (a *API) handleListMessages(w http.ResponseWriter, r *http.Request) {
	claims := auth.MustFromContext(r.Context())

	conversationID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	// Unparsable paging values fall back to the defaults; the store clamps
	// out-of-range ones.
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		limit = 20
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil {
		offset = 0
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	isMember, err := a.authz.MemberOf(ctx, claims.UserID, conversationID)
	if err != nil {
		a.logger.Error("membership check failed", "conversation_id", conversationID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to verify membership")
		return
	}
	if !isMember {
		writeError(w, http.StatusForbidden, "conversation access denied")
		return
	}

	messages, err := a.store.ListMessages(ctx, conversationID, limit, offset)
	if err != nil {
		a.logger.Error("list messages failed", "conversation_id", conversationID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	// Reading history marks it read. Cursor failures only skew unread
	// counts until the next fetch, so they never fail the request.
	if len(messages) > 0 {
		if err := a.store.UpdateReadCursor(ctx, conversationID, claims.UserID, messages[0].ID); err != nil {
			a.logger.Warn("advance read cursor failed", "conversation_id", conversationID, "error", err)
		}
	}

	payload := make([]messagePayload, 0, len(messages))
	for _, msg := range messages {
		payload = append(payload, toMessagePayload(msg))
	}
	a.writeJSON(w, http.StatusOK, messageListResponse{Messages: payload})
}
