// ABOUTME: Wire envelopes for the WebSocket protocol, inbound commands and outbound events.
// ABOUTME: Inbound frames are a tagged union over "type"; outbound helpers encode JSON text frames.

package hub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/freetonight/chatd/internal/store"
)

// Frame types accepted from clients.
const (
	typeMessageSend = "message:send"
	typePing        = "ping"
)

// Frame types emitted to clients.
const (
	typeMessageNew  = "message:new"
	typeMembership  = "conversation:membership"
	typePong        = "pong"
	typeSystemError = "system:error"
)

// MembershipAction says whether a user entered or left a conversation.
type MembershipAction string

const (
	MembershipAdded   MembershipAction = "added"
	MembershipRemoved MembershipAction = "removed"
)

// inboundEnvelope is the decoded form of a client frame. Fields beyond Type
// are meaningful only for some types; the reader pump validates per type.
type inboundEnvelope struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversationId"`
	Body           string `json:"body"`
	TempID         string `json:"tempId"`
}

// decodeInbound parses a client frame. Unknown types decode fine and are
// ignored by the caller; only structural failures are errors.
func decodeInbound(payload []byte) (inboundEnvelope, error) {
	var envelope inboundEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return inboundEnvelope{}, fmt.Errorf("decode inbound frame: %w", err)
	}
	if envelope.Type == "" {
		return inboundEnvelope{}, fmt.Errorf("inbound frame missing type")
	}
	return envelope, nil
}

// messagePayload mirrors a persisted message on the wire.
type messagePayload struct {
	ID             int64  `json:"id"`
	ConversationID int64  `json:"conversationId"`
	SenderID       int64  `json:"senderId"`
	Body           string `json:"body"`
	CreatedAt      string `json:"createdAt"`
}

// outboundMessage carries a freshly persisted message to subscribers. TempID
// echoes the sender's optimistic correlator to every recipient, so clients
// must reconcile by (senderId, tempId), not tempId alone.
type outboundMessage struct {
	Type    string         `json:"type"`
	TempID  string         `json:"tempId,omitempty"`
	Message messagePayload `json:"message"`
}

// membershipEvent announces a conversation membership change.
type membershipEvent struct {
	Type           string           `json:"type"`
	ConversationID int64            `json:"conversationId"`
	UserID         int64            `json:"userId"`
	Action         MembershipAction `json:"action"`
}

var (
	pongFrame        = []byte(`{"type":"pong"}`)
	rateLimitedFrame = []byte(`{"type":"system:error","code":"rate_limited"}`)
)

func encodeMessageNew(tempID string, msg *store.Message) ([]byte, error) {
	return json.Marshal(outboundMessage{
		Type:   typeMessageNew,
		TempID: tempID,
		Message: messagePayload{
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			SenderID:       msg.SenderID,
			Body:           msg.Body,
			CreatedAt:      msg.CreatedAt.Format(time.RFC3339Nano),
		},
	})
}

func encodeMembership(conversationID, userID int64, action MembershipAction) ([]byte, error) {
	return json.Marshal(membershipEvent{
		Type:           typeMembership,
		ConversationID: conversationID,
		UserID:         userID,
		Action:         action,
	})
}
