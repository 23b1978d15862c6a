// ABOUTME: Join-request moderation: request, review, approve, deny, and member removal.
// ABOUTME: Membership fan-out goes to the hub only after the storage write commits.

package chatapi

import (
	"context"
	"net/http"

	"github.com/freetonight/chatd/internal/auth"
	"github.com/freetonight/chatd/internal/hub"
)

func (a *API) handleRequestJoin(w http.ResponseWriter, r *http.Request) {
	claims := auth.MustFromContext(r.Context())

	eventID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	request, err := a.store.CreateJoinRequest(ctx, eventID, claims.UserID)
	if err != nil {
		a.writeStoreError(w, err, "create join request failed", "event_id", eventID, "user_id", claims.UserID)
		return
	}

	a.logger.Info("join requested", "event_id", eventID, "user_id", claims.UserID)
	a.writeJSON(w, http.StatusCreated, joinRequestResponse{Request: toJoinRequest(*request)})
}

// handleListJoinRequests is the host's moderation view: pending requests
// with requester names, oldest first.
func (a *API) handleListJoinRequests(w http.ResponseWriter, r *http.Request) {
	claims := auth.MustFromContext(r.Context())

	eventID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	isHost, err := a.authz.IsEventHost(ctx, claims.UserID, eventID)
	if err != nil {
		a.writeStoreError(w, err, "host check failed", "event_id", eventID)
		return
	}
	if !isHost {
		writeError(w, http.StatusForbidden, "only the event host may review requests")
		return
	}

	pending, err := a.store.ListPendingJoinRequests(ctx, eventID)
	if err != nil {
		a.writeStoreError(w, err, "list join requests failed", "event_id", eventID)
		return
	}

	payload := make([]pendingRequestPayload, 0, len(pending))
	for _, request := range pending {
		payload = append(payload, toPendingRequest(request))
	}
	a.writeJSON(w, http.StatusOK, pendingRequestListResponse{Requests: payload})
}

func (a *API) handleApproveJoin(w http.ResponseWriter, r *http.Request) {
	claims := auth.MustFromContext(r.Context())

	eventID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	targetID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	request, err := a.store.ApproveJoinRequest(ctx, eventID, targetID, claims.UserID)
	if err != nil {
		a.writeStoreError(w, err, "approve join request failed", "event_id", eventID, "user_id", targetID)
		return
	}

	convo, err := a.store.GetConversationByEventID(ctx, eventID)
	if err != nil {
		a.writeStoreError(w, err, "load event conversation failed", "event_id", eventID)
		return
	}

	a.hub.NotifyMembership(convo.ID, targetID, hub.MembershipAdded)

	a.logger.Info("join request approved",
		"event_id", eventID, "user_id", targetID, "approver", claims.UserID)
	a.writeJSON(w, http.StatusOK, approveJoinResponse{
		Request:        toJoinRequest(*request),
		ConversationID: convo.ID,
	})
}

func (a *API) handleDenyJoin(w http.ResponseWriter, r *http.Request) {
	claims := auth.MustFromContext(r.Context())

	eventID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	targetID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	request, err := a.store.DenyJoinRequest(ctx, eventID, targetID, claims.UserID)
	if err != nil {
		a.writeStoreError(w, err, "deny join request failed", "event_id", eventID, "user_id", targetID)
		return
	}

	a.logger.Info("join request denied",
		"event_id", eventID, "user_id", targetID, "approver", claims.UserID)
	a.writeJSON(w, http.StatusOK, joinRequestResponse{Request: toJoinRequest(*request)})
}

// handleRemoveMember covers both host eviction and self-leave. Anyone may
// remove themselves; only the host may remove someone else; nobody removes
// the host.
func (a *API) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	claims := auth.MustFromContext(r.Context())

	eventID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	targetID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if claims.UserID != targetID {
		isHost, err := a.authz.IsEventHost(ctx, claims.UserID, eventID)
		if err != nil {
			a.writeStoreError(w, err, "host check failed", "event_id", eventID)
			return
		}
		if !isHost {
			writeError(w, http.StatusForbidden, "only the event host may remove other members")
			return
		}
	}

	if err := a.store.RemoveEventMember(ctx, eventID, targetID); err != nil {
		a.writeStoreError(w, err, "remove event member failed", "event_id", eventID, "user_id", targetID)
		return
	}

	// The removal is durable at this point; a failure resolving the
	// conversation only costs the push notification.
	convo, err := a.store.GetConversationByEventID(ctx, eventID)
	if err != nil {
		a.logger.Error("load event conversation failed", "event_id", eventID, "error", err)
	} else {
		a.hub.NotifyMembership(convo.ID, targetID, hub.MembershipRemoved)
	}

	a.logger.Info("event member removed",
		"event_id", eventID, "user_id", targetID, "caller", claims.UserID)
	w.WriteHeader(http.StatusNoContent)
}
