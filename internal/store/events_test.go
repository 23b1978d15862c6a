// ABOUTME: Tests for event store operations
// ABOUTME: Covers event creation with its group conversation, lookup, and cascade deletes

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestHost(t *testing.T, store *SQLiteStore) *User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), CreateUserParams{
		Name:     "Ava Johnson",
		Email:    "ava@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	return user
}

func TestEventStore_CreateEvent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	host := createTestHost(t, store)

	event, err := store.CreateEvent(ctx, CreateEventParams{
		HostUserID:  host.ID,
		Title:       "Running Buddy",
		Location:    "Phoenix Park",
		Time:        "09:00",
		DateLabel:   "Today",
		Description: "Morning run followed by coffee.",
		Gender:      "Any",
		MinAge:      20,
		MaxAge:      30,
	})
	require.NoError(t, err)
	assert.NotZero(t, event.ID)
	assert.Equal(t, host.ID, event.HostUserID)
	assert.Equal(t, "Ava Johnson", event.HostName)
	assert.Equal(t, "Today", event.DateLabel)
}

func TestEventStore_CreateEvent_CreatesGroupConversation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	host := createTestHost(t, store)

	event, err := store.CreateEvent(ctx, CreateEventParams{
		HostUserID: host.ID,
		Title:      "Trail Hike",
		Location:   "Howth Cliffs",
		Time:       "10:00",
		DateLabel:  "Tmrw",
		MinAge:     18,
		MaxAge:     40,
	})
	require.NoError(t, err)

	convo, err := store.GetConversationByEventID(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, convo.EventID)
	assert.Equal(t, event.ID, *convo.EventID)
	require.NotNil(t, convo.Title)
	assert.Equal(t, "Trail Hike", *convo.Title)
	assert.Equal(t, host.ID, convo.CreatedBy)

	isMember, err := store.IsMember(ctx, convo.ID, host.ID)
	require.NoError(t, err)
	assert.True(t, isMember, "host joins the group on event creation")
}

func TestEventStore_GetEventByID_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetEventByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestEventStore_DeleteEvent_CascadesConversation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	host := createTestHost(t, store)

	event, err := store.CreateEvent(ctx, CreateEventParams{
		HostUserID: host.ID,
		Title:      "Community Potluck",
		Location:   "Docklands Hub",
		Time:       "19:00",
		DateLabel:  "Tmrw",
		MinAge:     21,
		MaxAge:     45,
	})
	require.NoError(t, err)

	convo, err := store.GetConversationByEventID(ctx, event.ID)
	require.NoError(t, err)
	_, err = store.CreateMessage(ctx, CreateMessageParams{
		ConversationID: convo.ID,
		SenderID:       host.ID,
		Body:           "Who can bring dessert?",
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteEvent(ctx, event.ID))

	_, err = store.GetEventByID(ctx, event.ID)
	assert.ErrorIs(t, err, ErrEventNotFound)
	_, err = store.GetConversationByEventID(ctx, event.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	messages, err := store.ListMessages(ctx, convo.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, messages, "messages cascade with the conversation")
}

func TestEventStore_DeleteEvent_NotFound(t *testing.T) {
	store := setupTestStore(t)

	err := store.DeleteEvent(context.Background(), 404)
	assert.ErrorIs(t, err, ErrEventNotFound)
}
