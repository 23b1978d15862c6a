// ABOUTME: Wire payloads for the REST surface and their mapping from store models.
// ABOUTME: Summaries and requests serialize snake_case; messages stay camelCase to match socket frames.

package chatapi

import (
	"time"

	"github.com/freetonight/chatd/internal/store"
)

type conversationPayload struct {
	ID        int64     `json:"id"`
	Title     *string   `json:"title,omitempty"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	EventID   *int64    `json:"event_id,omitempty"`
}

type participantPayload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type eventMetaPayload struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Location  string `json:"location"`
	Time      string `json:"time"`
	DateLabel string `json:"date_label"`
}

type messageSummaryPayload struct {
	ID        int64     `json:"id"`
	SenderID  int64     `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type conversationSummaryPayload struct {
	conversationPayload
	MemberIDs    []int64                `json:"member_ids"`
	Participants []participantPayload   `json:"participants"`
	Event        *eventMetaPayload      `json:"event,omitempty"`
	LastMessage  *messageSummaryPayload `json:"last_message,omitempty"`
	UnreadCount  int                    `json:"unread_count"`
}

// messagePayload matches the socket's message:new body, so clients reuse one
// decoder across both transports.
type messagePayload struct {
	ID             int64  `json:"id"`
	ConversationID int64  `json:"conversationId"`
	SenderID       int64  `json:"senderId"`
	Body           string `json:"body"`
	CreatedAt      string `json:"createdAt"`
}

type joinRequestPayload struct {
	ID        int64      `json:"id"`
	EventID   int64      `json:"event_id"`
	UserID    int64      `json:"user_id"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	DecidedBy *int64     `json:"decided_by,omitempty"`
}

type pendingRequestPayload struct {
	ID        int64     `json:"id"`
	EventID   int64     `json:"event_id"`
	UserID    int64     `json:"user_id"`
	UserName  string    `json:"user_name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type userPayload struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Request bodies.

type createConversationRequest struct {
	Title     *string `json:"title"`
	MemberIDs []int64 `json:"memberIds"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Response envelopes.

type conversationResponse struct {
	Conversation conversationSummaryPayload `json:"conversation"`
}

type conversationListResponse struct {
	Conversations []conversationSummaryPayload `json:"conversations"`
}

type messageListResponse struct {
	Messages []messagePayload `json:"messages"`
}

type joinRequestResponse struct {
	Request joinRequestPayload `json:"request"`
}

type approveJoinResponse struct {
	Request        joinRequestPayload `json:"request"`
	ConversationID int64              `json:"conversationId"`
}

type pendingRequestListResponse struct {
	Requests []pendingRequestPayload `json:"requests"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  userPayload `json:"user"`
}

type userResponse struct {
	User userPayload `json:"user"`
}

type userListResponse struct {
	Users []userPayload `json:"users"`
}

// Mapping helpers. Slices come back non-nil so empty collections serialize
// as [] rather than null.

func toConversationSummary(s store.ConversationSummary) conversationSummaryPayload {
	payload := conversationSummaryPayload{
		conversationPayload: conversationPayload{
			ID:        s.ID,
			Title:     s.Title,
			CreatedBy: s.CreatedBy,
			CreatedAt: s.CreatedAt,
			EventID:   s.EventID,
		},
		MemberIDs:    make([]int64, 0, len(s.MemberIDs)),
		Participants: make([]participantPayload, 0, len(s.Participants)),
		UnreadCount:  s.UnreadCount,
	}
	payload.MemberIDs = append(payload.MemberIDs, s.MemberIDs...)
	for _, p := range s.Participants {
		payload.Participants = append(payload.Participants, participantPayload{ID: p.ID, Name: p.Name})
	}
	if s.Event != nil {
		payload.Event = &eventMetaPayload{
			ID:        s.Event.ID,
			Title:     s.Event.Title,
			Location:  s.Event.Location,
			Time:      s.Event.Time,
			DateLabel: s.Event.DateLabel,
		}
	}
	if s.LastMessage != nil {
		payload.LastMessage = &messageSummaryPayload{
			ID:        s.LastMessage.ID,
			SenderID:  s.LastMessage.SenderID,
			Body:      s.LastMessage.Body,
			CreatedAt: s.LastMessage.CreatedAt,
		}
	}
	return payload
}

func toMessagePayload(m store.Message) messagePayload {
	return messagePayload{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Body:           m.Body,
		CreatedAt:      m.CreatedAt.Format(time.RFC3339Nano),
	}
}

func toJoinRequest(r store.JoinRequest) joinRequestPayload {
	return joinRequestPayload{
		ID:        r.ID,
		EventID:   r.EventID,
		UserID:    r.UserID,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
		DecidedAt: r.DecidedAt,
		DecidedBy: r.DecidedBy,
	}
}

func toPendingRequest(p store.PendingJoinRequest) pendingRequestPayload {
	return pendingRequestPayload{
		ID:        p.ID,
		EventID:   p.EventID,
		UserID:    p.UserID,
		UserName:  p.UserName,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
	}
}

func toUser(u store.User) userPayload {
	return userPayload{ID: u.ID, Name: u.Name, Email: u.Email}
}
