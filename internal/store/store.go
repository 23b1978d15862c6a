// ABOUTME: Store interface and data types for chatd persistence
// ABOUTME: Defines users, events, conversations, messages, read cursors, and join requests

package store

import (
	"context"
	"errors"
	"time"
)

// Domain errors. Callers branch on these; anything else is a storage failure.
var (
	ErrInvalidCredentials        = errors.New("invalid credentials")
	ErrEmailExists               = errors.New("email already registered")
	ErrUserNotFound              = errors.New("user not found")
	ErrEventNotFound             = errors.New("event not found")
	ErrConversationNotFound      = errors.New("conversation not found")
	ErrAlreadyConversationMember = errors.New("user is already a conversation member")
	ErrJoinRequestExists         = errors.New("join request already pending")
	ErrJoinRequestNotFound       = errors.New("join request not found")
	ErrNotEventHost              = errors.New("user is not the event host")
	ErrCannotRemoveHost          = errors.New("event host cannot be removed")
	ErrNotConversationMember     = errors.New("user is not a conversation member")
)

// JoinRequest status values
const (
	JoinRequestPending  = "pending"
	JoinRequestApproved = "approved"
	JoinRequestDenied   = "denied"
)

// Conversation member roles
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// DeliveryStatusSent is the only delivery status the backend records today.
const DeliveryStatusSent = "sent"

// User is an account created out-of-band (seeds or the operator CLI).
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Event is a published meetup. Its host owns the event-group conversation.
type Event struct {
	ID          int64
	HostUserID  int64
	HostName    string
	Title       string
	Location    string
	Time        string
	DateLabel   string
	Description string
	Gender      string
	MinAge      int
	MaxAge      int
	CreatedAt   time.Time
}

// Conversation is a durable message container: direct chat (no title, no
// event), named group (title only), or event group (event id set).
type Conversation struct {
	ID        int64
	Title     *string
	CreatedBy int64
	EventID   *int64
	CreatedAt time.Time
}

// Message is an append-only log entry within a conversation.
type Message struct {
	ID             int64
	ConversationID int64
	SenderID       int64
	Body           string
	AttachmentURL  *string
	DeliveryStatus string
	CreatedAt      time.Time
}

// ConversationParticipant pairs a member id with its display name.
type ConversationParticipant struct {
	ID   int64
	Name string
}

// MessageSummary is the newest-message preview carried on a summary.
type MessageSummary struct {
	ID        int64
	SenderID  int64
	Body      string
	CreatedAt time.Time
}

// ConversationEventMeta is the event metadata attached to event-group summaries.
type ConversationEventMeta struct {
	ID        int64
	Title     string
	Location  string
	Time      string
	DateLabel string
}

// ConversationSummary is a conversation hydrated for one viewer: member ids,
// participants in join order, newest message, unread count, event metadata.
type ConversationSummary struct {
	Conversation
	MemberIDs    []int64
	Participants []ConversationParticipant
	LastMessage  *MessageSummary
	UnreadCount  int
	Event        *ConversationEventMeta
}

// JoinRequest tracks a non-host user's intent to join an event group.
// DecidedAt and DecidedBy are set iff status is not pending.
type JoinRequest struct {
	ID        int64
	EventID   int64
	UserID    int64
	Status    string
	CreatedAt time.Time
	DecidedAt *time.Time
	DecidedBy *int64
}

// PendingJoinRequest is a pending request joined with the requester's name,
// shaped for the host's moderation view.
type PendingJoinRequest struct {
	JoinRequest
	UserName string
}

// CreateUserParams carries the fields for a new account. Password is hashed
// before it touches the database.
type CreateUserParams struct {
	Name     string
	Email    string
	Password string
}

// CreateEventParams carries the fields for a new event.
type CreateEventParams struct {
	HostUserID  int64
	Title       string
	Location    string
	Time        string
	DateLabel   string
	Description string
	Gender      string
	MinAge      int
	MaxAge      int
}

// CreateMessageParams carries the fields for a new message. Body must be
// non-empty after trimming; the send path validates before calling.
type CreateMessageParams struct {
	ConversationID int64
	SenderID       int64
	Body           string
	AttachmentURL  *string
	DeliveryStatus string
}

// Counts reports table sizes for the operator CLI.
type Counts struct {
	Users         int64
	Events        int64
	Conversations int64
	Messages      int64
	JoinRequests  int64
}

// Store is the persistence boundary for the chat backend.
type Store interface {
	// Users
	CreateUser(ctx context.Context, params CreateUserParams) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	ListUsers(ctx context.Context, excludeID int64) ([]User, error)
	AuthenticateUser(ctx context.Context, email, password string) (*User, error)

	// Events
	CreateEvent(ctx context.Context, params CreateEventParams) (*Event, error)
	GetEventByID(ctx context.Context, id int64) (*Event, error)
	DeleteEvent(ctx context.Context, id int64) error

	// Conversations
	CreateConversation(ctx context.Context, title *string, createdBy int64, memberIDs []int64, eventID *int64) (*Conversation, error)
	GetConversationByEventID(ctx context.Context, eventID int64) (*Conversation, error)
	GetConversationSummary(ctx context.Context, conversationID, viewerID int64) (*ConversationSummary, error)
	IsMember(ctx context.Context, conversationID, userID int64) (bool, error)
	ListConversationsForUser(ctx context.Context, userID int64) ([]ConversationSummary, error)

	// Messages and read cursors
	CreateMessage(ctx context.Context, params CreateMessageParams) (*Message, error)
	ListMessages(ctx context.Context, conversationID int64, limit, offset int) ([]Message, error)
	UpdateReadCursor(ctx context.Context, conversationID, userID, lastReadMessageID int64) error

	// Join requests and event-group membership
	CreateJoinRequest(ctx context.Context, eventID, userID int64) (*JoinRequest, error)
	ApproveJoinRequest(ctx context.Context, eventID, requesterID, approverID int64) (*JoinRequest, error)
	DenyJoinRequest(ctx context.Context, eventID, requesterID, approverID int64) (*JoinRequest, error)
	ListPendingJoinRequests(ctx context.Context, eventID int64) ([]PendingJoinRequest, error)
	RemoveEventMember(ctx context.Context, eventID, userID int64) error

	// Operations
	Counts(ctx context.Context) (Counts, error)
	Ping(ctx context.Context) error
	Close() error
}
