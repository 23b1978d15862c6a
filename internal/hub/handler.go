// ABOUTME: WebSocket session endpoint: token check, subscription snapshot, upgrade, pump startup.
// ABOUTME: Rejections surface as plain JSON responses before the protocol handshake.

package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades GET /api/ws?token=... into a live session. The
// token is verified and the caller's conversations snapshotted before the
// handshake so failures come back as ordinary HTTP statuses.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if strings.TrimSpace(token) == "" {
		writeJSONError(w, http.StatusUnauthorized, "token is required")
		return
	}

	claims, err := h.verifier.Verify(token)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()
	conversations, err := h.store.ListConversationsForUser(ctx, claims.UserID)
	if err != nil {
		h.logger.Error("subscription snapshot failed", "user_id", claims.UserID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to load conversations")
		return
	}
	conversationIDs := make([]int64, 0, len(conversations))
	for _, convo := range conversations {
		conversationIDs = append(conversationIDs, convo.ID)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade writes its own handshake error to the client.
		h.logger.Debug("websocket upgrade failed", "user_id", claims.UserID, "error", err)
		return
	}

	session := newClientSession(h, conn, claims.UserID, conversationIDs)
	h.Register(session)

	go session.writePump()
	session.readPump()
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
