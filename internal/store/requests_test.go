// ABOUTME: Tests for the join request lifecycle and event-group membership
// ABOUTME: Covers pending uniqueness, host authority, approval effects, and removal rules

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type joinRequestFixture struct {
	store     *SQLiteStore
	host      *User
	requester *User
	event     *Event
	convo     *Conversation
}

func setupJoinRequestFixture(t *testing.T) joinRequestFixture {
	t.Helper()
	store := setupTestStore(t)
	ctx := context.Background()

	host, err := store.CreateUser(ctx, CreateUserParams{Name: "Ava", Email: "ava@example.com", Password: "pw"})
	require.NoError(t, err)
	requester, err := store.CreateUser(ctx, CreateUserParams{Name: "Liam", Email: "liam@example.com", Password: "pw"})
	require.NoError(t, err)

	event, err := store.CreateEvent(ctx, CreateEventParams{
		HostUserID: host.ID,
		Title:      "Running Buddy",
		Location:   "Phoenix Park",
		Time:       "09:00",
		DateLabel:  "Today",
		MinAge:     20,
		MaxAge:     30,
	})
	require.NoError(t, err)

	convo, err := store.GetConversationByEventID(ctx, event.ID)
	require.NoError(t, err)

	return joinRequestFixture{store: store, host: host, requester: requester, event: event, convo: convo}
}

func TestJoinRequest_CreateAndApprove(t *testing.T) {
	fx := setupJoinRequestFixture(t)
	ctx := context.Background()

	req, err := fx.store.CreateJoinRequest(ctx, fx.event.ID, fx.requester.ID)
	require.NoError(t, err)
	assert.Equal(t, JoinRequestPending, req.Status)
	assert.Nil(t, req.DecidedAt)

	approved, err := fx.store.ApproveJoinRequest(ctx, fx.event.ID, fx.requester.ID, fx.host.ID)
	require.NoError(t, err)
	assert.Equal(t, JoinRequestApproved, approved.Status)
	require.NotNil(t, approved.DecidedAt)
	require.NotNil(t, approved.DecidedBy)
	assert.Equal(t, fx.host.ID, *approved.DecidedBy)

	isMember, err := fx.store.IsMember(ctx, fx.convo.ID, fx.requester.ID)
	require.NoError(t, err)
	assert.True(t, isMember, "approval adds the requester to the group")
}

func TestJoinRequest_SecondPendingRejected(t *testing.T) {
	fx := setupJoinRequestFixture(t)
	ctx := context.Background()

	_, err := fx.store.CreateJoinRequest(ctx, fx.event.ID, fx.requester.ID)
	require.NoError(t, err)

	_, err = fx.store.CreateJoinRequest(ctx, fx.event.ID, fx.requester.ID)
	assert.ErrorIs(t, err, ErrJoinRequestExists)
}

func TestJoinRequest_HostCannotRequest(t *testing.T) {
	fx := setupJoinRequestFixture(t)

	_, err := fx.store.CreateJoinRequest(context.Background(), fx.event.ID, fx.host.ID)
	assert.ErrorIs(t, err, ErrAlreadyConversationMember)
}

func TestJoinRequest_MemberCannotRequest(t *testing.T) {
	fx := setupJoinRequestFixture(t)
	ctx := context.Background()

	_, err := fx.store.CreateJoinRequest(ctx, fx.event.ID, fx.requester.ID)
	require.NoError(t, err)
	_, err = fx.store.ApproveJoinRequest(ctx, fx.event.ID, fx.requester.ID, fx.host.ID)
	require.NoError(t, err)

	_, err = fx.store.CreateJoinRequest(ctx, fx.event.ID, fx.requester.ID)
	assert.ErrorIs(t, err, ErrAlreadyConversationMember)
}

func TestJoinRequest_DenyAllowsRetry(t *testing.T) {
	fx := setupJoinRequestFixture(t)
	ctx := context.Background()

	_, err := fx.store.CreateJoinRequest(ctx, fx.event.ID, fx.requester.ID)
	require.NoError(t, err)

	denied, err := fx.store.DenyJoinRequest(ctx, fx.event.ID, fx.requester.ID, fx.host.ID)
	require.NoError(t, err)
	assert.Equal(t, JoinRequestDenied, denied.Status)

	isMember, err := fx.store.IsMember(ctx, fx.convo.ID, fx.requester.ID)
	require.NoError(t, err)
	assert.False(t, isMember, "denial must not add the requester")

	// The unique constraint only guards pending requests, so a fresh one is fine.
	retry, err := fx.store.CreateJoinRequest(ctx, fx.event.ID, fx.requester.ID)
	require.NoError(t, err)
	assert.Equal(t, JoinRequestPending, retry.Status)
	assert.NotEqual(t, denied.ID, retry.ID)
}

func TestJoinRequest_DecisionsRequireHost(t *testing.T) {
	fx := setupJoinRequestFixture(t)
	ctx := context.Background()

	stranger, err := fx.store.CreateUser(ctx, CreateUserParams{Name: "Noah", Email: "noah@example.com", Password: "pw"})
	require.NoError(t, err)

	_, err = fx.store.CreateJoinRequest(ctx, fx.event.ID, fx.requester.ID)
	require.NoError(t, err)

	_, err = fx.store.ApproveJoinRequest(ctx, fx.event.ID, fx.requester.ID, stranger.ID)
	assert.ErrorIs(t, err, ErrNotEventHost)

	_, err = fx.store.DenyJoinRequest(ctx, fx.event.ID, fx.requester.ID, stranger.ID)
	assert.ErrorIs(t, err, ErrNotEventHost)

	// Requesters cannot approve themselves either.
	_, err = fx.store.ApproveJoinRequest(ctx, fx.event.ID, fx.requester.ID, fx.requester.ID)
	assert.ErrorIs(t, err, ErrNotEventHost)
}

func TestJoinRequest_ApproveWithoutPending(t *testing.T) {
	fx := setupJoinRequestFixture(t)

	_, err := fx.store.ApproveJoinRequest(context.Background(), fx.event.ID, fx.requester.ID, fx.host.ID)
	assert.ErrorIs(t, err, ErrJoinRequestNotFound)
}

func TestJoinRequest_ApproveTwice(t *testing.T) {
	fx := setupJoinRequestFixture(t)
	ctx := context.Background()

	_, err := fx.store.CreateJoinRequest(ctx, fx.event.ID, fx.requester.ID)
	require.NoError(t, err)
	_, err = fx.store.ApproveJoinRequest(ctx, fx.event.ID, fx.requester.ID, fx.host.ID)
	require.NoError(t, err)

	// The first approval made the requester a member.
	_, err = fx.store.ApproveJoinRequest(ctx, fx.event.ID, fx.requester.ID, fx.host.ID)
	assert.ErrorIs(t, err, ErrAlreadyConversationMember)
}

func TestListPendingJoinRequests(t *testing.T) {
	fx := setupJoinRequestFixture(t)
	ctx := context.Background()

	second, err := fx.store.CreateUser(ctx, CreateUserParams{Name: "Sophia", Email: "sophia@example.com", Password: "pw"})
	require.NoError(t, err)

	_, err = fx.store.CreateJoinRequest(ctx, fx.event.ID, fx.requester.ID)
	require.NoError(t, err)
	_, err = fx.store.CreateJoinRequest(ctx, fx.event.ID, second.ID)
	require.NoError(t, err)

	// Decided requests drop out of the pending view.
	_, err = fx.store.DenyJoinRequest(ctx, fx.event.ID, fx.requester.ID, fx.host.ID)
	require.NoError(t, err)

	pending, err := fx.store.ListPendingJoinRequests(ctx, fx.event.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].UserID)
	assert.Equal(t, "Sophia", pending[0].UserName)
}

func TestRemoveEventMember(t *testing.T) {
	fx := setupJoinRequestFixture(t)
	ctx := context.Background()

	_, err := fx.store.CreateJoinRequest(ctx, fx.event.ID, fx.requester.ID)
	require.NoError(t, err)
	_, err = fx.store.ApproveJoinRequest(ctx, fx.event.ID, fx.requester.ID, fx.host.ID)
	require.NoError(t, err)

	require.NoError(t, fx.store.RemoveEventMember(ctx, fx.event.ID, fx.requester.ID))

	isMember, err := fx.store.IsMember(ctx, fx.convo.ID, fx.requester.ID)
	require.NoError(t, err)
	assert.False(t, isMember)

	// Removing again fails: the membership row is gone.
	err = fx.store.RemoveEventMember(ctx, fx.event.ID, fx.requester.ID)
	assert.ErrorIs(t, err, ErrNotConversationMember)
}

func TestRemoveEventMember_HostProtected(t *testing.T) {
	fx := setupJoinRequestFixture(t)

	err := fx.store.RemoveEventMember(context.Background(), fx.event.ID, fx.host.ID)
	assert.ErrorIs(t, err, ErrCannotRemoveHost)
}

func TestRemoveEventMember_ClearsReadCursor(t *testing.T) {
	fx := setupJoinRequestFixture(t)
	ctx := context.Background()

	_, err := fx.store.CreateJoinRequest(ctx, fx.event.ID, fx.requester.ID)
	require.NoError(t, err)
	_, err = fx.store.ApproveJoinRequest(ctx, fx.event.ID, fx.requester.ID, fx.host.ID)
	require.NoError(t, err)

	msg, err := fx.store.CreateMessage(ctx, CreateMessageParams{
		ConversationID: fx.convo.ID,
		SenderID:       fx.host.ID,
		Body:           "welcome",
	})
	require.NoError(t, err)
	require.NoError(t, fx.store.UpdateReadCursor(ctx, fx.convo.ID, fx.requester.ID, msg.ID))

	require.NoError(t, fx.store.RemoveEventMember(ctx, fx.event.ID, fx.requester.ID))

	// Rejoining starts with a fresh cursor, so everything counts as unread.
	_, err = fx.store.CreateJoinRequest(ctx, fx.event.ID, fx.requester.ID)
	require.NoError(t, err)
	_, err = fx.store.ApproveJoinRequest(ctx, fx.event.ID, fx.requester.ID, fx.host.ID)
	require.NoError(t, err)

	summaries, err := fx.store.ListConversationsForUser(ctx, fx.requester.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].UnreadCount)
}
