// ABOUTME: Authorization views over the store: membership, host, and send checks
// ABOUTME: Stateless; every answer is a fresh read so revocations apply immediately

package auth

import (
	"context"

	"github.com/freetonight/chatd/internal/store"
)

// MembershipSource is the slice of the store the Authorizer consults.
type MembershipSource interface {
	IsMember(ctx context.Context, conversationID, userID int64) (bool, error)
	GetEventByID(ctx context.Context, id int64) (*store.Event, error)
}

// Authorizer answers access questions by reading the store. It keeps no
// state of its own: a membership revoked in storage is refused on the very
// next call, regardless of any in-memory subscription a session still holds.
type Authorizer struct {
	src MembershipSource
}

// NewAuthorizer builds an Authorizer over the given membership source.
func NewAuthorizer(src MembershipSource) *Authorizer {
	return &Authorizer{src: src}
}

// MemberOf reports whether the user belongs to the conversation.
func (a *Authorizer) MemberOf(ctx context.Context, userID, conversationID int64) (bool, error) {
	return a.src.IsMember(ctx, conversationID, userID)
}

// IsEventHost reports whether the user hosts the event. A missing event
// surfaces store.ErrEventNotFound rather than false.
func (a *Authorizer) IsEventHost(ctx context.Context, userID, eventID int64) (bool, error) {
	event, err := a.src.GetEventByID(ctx, eventID)
	if err != nil {
		return false, err
	}
	return event.HostUserID == userID, nil
}

// CanSend reports whether the user may post to the conversation right now.
// It is a fresh MemberOf per call; the hub's subscription indices route
// fan-out only and never gate writes.
func (a *Authorizer) CanSend(ctx context.Context, userID, conversationID int64) (bool, error) {
	return a.MemberOf(ctx, userID, conversationID)
}
