// ABOUTME: Socket-level tests for the session endpoint: auth refusal, pumps, delivery, rate limit.
// ABOUTME: Dials real WebSocket connections against an httptest server backed by a MockStore.

package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freetonight/chatd/internal/auth"
	"github.com/freetonight/chatd/internal/store"
)

type socketFixture struct {
	mock   *store.MockStore
	hub    *Hub
	signer *auth.Signer
	server *httptest.Server
}

func newSocketFixture(t *testing.T) *socketFixture {
	t.Helper()

	mock := store.NewMockStore()
	signer := auth.NewSigner([]byte("socket-test-secret"), 0)
	h := New(mock, signer, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	go h.Run(t.Context())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/ws", h.HandleWebSocket)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &socketFixture{mock: mock, hub: h, signer: signer, server: server}
}

func (f *socketFixture) wsURL(token string) string {
	base := "ws" + strings.TrimPrefix(f.server.URL, "http")
	if token == "" {
		return base + "/api/ws"
	}
	return base + "/api/ws?token=" + url.QueryEscape(token)
}

func (f *socketFixture) tokenFor(t *testing.T, user *store.User) string {
	t.Helper()
	token, _, err := f.signer.Issue(user.ID, user.Email)
	require.NoError(t, err)
	return token
}

// dial opens a live session for the user and registers cleanup.
func (f *socketFixture) dial(t *testing.T, user *store.User) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(f.wsURL(f.tokenFor(t, user)), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame any) {
	t.Helper()
	payload, err := json.Marshal(frame)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

func readFrame(t *testing.T, conn *websocket.Conn) testFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err, "expected a frame before the read deadline")
	var frame testFrame
	require.NoError(t, json.Unmarshal(payload, &frame))
	return frame
}

func assertSocketSilent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, payload, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame: %s", payload)
}

func TestHandleWebSocket_RejectsMissingToken(t *testing.T) {
	f := newSocketFixture(t)

	conn, resp, err := websocket.DefaultDialer.Dial(f.wsURL(""), nil)
	require.Error(t, err)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleWebSocket_RejectsGarbageToken(t *testing.T) {
	f := newSocketFixture(t)

	conn, resp, err := websocket.DefaultDialer.Dial(f.wsURL("not-a-token"), nil)
	require.Error(t, err)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleWebSocket_RejectsExpiredTokenBeforeUpgrade(t *testing.T) {
	f := newSocketFixture(t)
	user := createHubUser(t, f.mock, "Ava Johnson", "ava@example.com")

	shortLived := auth.NewSigner([]byte("socket-test-secret"), time.Nanosecond)
	token, _, err := shortLived.Issue(user.ID, user.Email)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	conn, resp, err := websocket.DefaultDialer.Dial(f.wsURL(token), nil)
	require.Error(t, err)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleWebSocket_PingPong(t *testing.T) {
	f := newSocketFixture(t)
	user := createHubUser(t, f.mock, "Ava Johnson", "ava@example.com")

	conn := f.dial(t, user)
	sendFrame(t, conn, map[string]string{"type": "ping"})

	assert.Equal(t, typePong, readFrame(t, conn).Type)
}

func TestHandleWebSocket_UnknownTypeIsIgnored(t *testing.T) {
	f := newSocketFixture(t)
	user := createHubUser(t, f.mock, "Ava Johnson", "ava@example.com")

	conn := f.dial(t, user)
	sendFrame(t, conn, map[string]string{"type": "presence:typing"})

	// The connection stays healthy.
	sendFrame(t, conn, map[string]string{"type": "ping"})
	assert.Equal(t, typePong, readFrame(t, conn).Type)
}

func TestHandleWebSocket_SendReachesEverySubscriber(t *testing.T) {
	f := newSocketFixture(t)
	ctx := context.Background()

	ava := createHubUser(t, f.mock, "Ava Johnson", "ava@example.com")
	liam := createHubUser(t, f.mock, "Liam Patel", "liam@example.com")
	convo, err := f.mock.CreateConversation(ctx, nil, ava.ID, []int64{liam.ID}, nil)
	require.NoError(t, err)

	avaConn := f.dial(t, ava)
	liamConn := f.dial(t, liam)

	sendFrame(t, avaConn, map[string]any{
		"type":           "message:send",
		"conversationId": convo.ID,
		"body":           "hi",
		"tempId":         "t1",
	})

	for _, conn := range []*websocket.Conn{avaConn, liamConn} {
		frame := readFrame(t, conn)
		assert.Equal(t, typeMessageNew, frame.Type)
		assert.Equal(t, "t1", frame.TempID, "tempId is echoed to every subscriber")
		require.NotNil(t, frame.Message)
		assert.Equal(t, ava.ID, frame.Message.SenderID)
		assert.Equal(t, "hi", frame.Message.Body)
	}
}

func TestHandleWebSocket_ApprovedJoinerGetsLiveTraffic(t *testing.T) {
	f := newSocketFixture(t)
	ctx := context.Background()

	host := createHubUser(t, f.mock, "Ava Johnson", "ava@example.com")
	joiner := createHubUser(t, f.mock, "Noah Smith", "noah@example.com")
	event, err := f.mock.CreateEvent(ctx, store.CreateEventParams{
		HostUserID: host.ID,
		Title:      "Trail Hike",
		Location:   "Marin Headlands",
		Time:       "9:00 AM",
		DateLabel:  "Tmrw",
	})
	require.NoError(t, err)
	convo, err := f.mock.GetConversationByEventID(ctx, event.ID)
	require.NoError(t, err)

	hostConn := f.dial(t, host)
	joinerConn := f.dial(t, joiner)

	_, err = f.mock.CreateJoinRequest(ctx, event.ID, joiner.ID)
	require.NoError(t, err)
	_, err = f.mock.ApproveJoinRequest(ctx, event.ID, joiner.ID, host.ID)
	require.NoError(t, err)
	f.hub.NotifyMembership(convo.ID, joiner.ID, MembershipAdded)

	frame := readFrame(t, joinerConn)
	assert.Equal(t, typeMembership, frame.Type)
	assert.Equal(t, convo.ID, frame.ConversationID)
	assert.Equal(t, joiner.ID, frame.UserID)
	assert.Equal(t, string(MembershipAdded), frame.Action)

	sendFrame(t, hostConn, map[string]any{
		"type":           "message:send",
		"conversationId": convo.ID,
		"body":           "welcome aboard",
	})

	frame = readFrame(t, joinerConn)
	assert.Equal(t, typeMessageNew, frame.Type)
	require.NotNil(t, frame.Message)
	assert.Equal(t, "welcome aboard", frame.Message.Body)
}

func TestHandleWebSocket_RemovedMemberHearsItAndGoesQuiet(t *testing.T) {
	f := newSocketFixture(t)
	ctx := context.Background()

	host := createHubUser(t, f.mock, "Ava Johnson", "ava@example.com")
	member := createHubUser(t, f.mock, "Noah Smith", "noah@example.com")
	event, err := f.mock.CreateEvent(ctx, store.CreateEventParams{
		HostUserID: host.ID,
		Title:      "Trail Hike",
		Location:   "Marin Headlands",
		Time:       "9:00 AM",
		DateLabel:  "Tmrw",
	})
	require.NoError(t, err)
	convo, err := f.mock.GetConversationByEventID(ctx, event.ID)
	require.NoError(t, err)
	_, err = f.mock.CreateJoinRequest(ctx, event.ID, member.ID)
	require.NoError(t, err)
	_, err = f.mock.ApproveJoinRequest(ctx, event.ID, member.ID, host.ID)
	require.NoError(t, err)

	hostConn := f.dial(t, host)
	memberConn := f.dial(t, member)

	require.NoError(t, f.mock.RemoveEventMember(ctx, event.ID, member.ID))
	f.hub.NotifyMembership(convo.ID, member.ID, MembershipRemoved)

	frame := readFrame(t, memberConn)
	assert.Equal(t, typeMembership, frame.Type)
	assert.Equal(t, string(MembershipRemoved), frame.Action)
	assert.Equal(t, member.ID, frame.UserID)

	// The host also hears the membership change, then their send no longer
	// reaches the evicted member.
	frame = readFrame(t, hostConn)
	assert.Equal(t, typeMembership, frame.Type)

	sendFrame(t, hostConn, map[string]any{
		"type":           "message:send",
		"conversationId": convo.ID,
		"body":           "just us now",
	})
	assert.Equal(t, typeMessageNew, readFrame(t, hostConn).Type)
	assertSocketSilent(t, memberConn)
}

func TestHandleWebSocket_StaleMembershipSendIsDropped(t *testing.T) {
	f := newSocketFixture(t)
	ctx := context.Background()

	host := createHubUser(t, f.mock, "Ava Johnson", "ava@example.com")
	member := createHubUser(t, f.mock, "Noah Smith", "noah@example.com")
	event, err := f.mock.CreateEvent(ctx, store.CreateEventParams{
		HostUserID: host.ID,
		Title:      "Trail Hike",
		Location:   "Marin Headlands",
		Time:       "9:00 AM",
		DateLabel:  "Tmrw",
	})
	require.NoError(t, err)
	convo, err := f.mock.GetConversationByEventID(ctx, event.ID)
	require.NoError(t, err)
	_, err = f.mock.CreateJoinRequest(ctx, event.ID, member.ID)
	require.NoError(t, err)
	_, err = f.mock.ApproveJoinRequest(ctx, event.ID, member.ID, host.ID)
	require.NoError(t, err)

	hostConn := f.dial(t, host)
	memberConn := f.dial(t, member)

	// Evict in storage only; the hub still believes the member subscribes.
	require.NoError(t, f.mock.RemoveEventMember(ctx, event.ID, member.ID))

	sendFrame(t, memberConn, map[string]any{
		"type":           "message:send",
		"conversationId": convo.ID,
		"body":           "still here?",
	})

	assertSocketSilent(t, hostConn)
	messages, err := f.mock.ListMessages(ctx, convo.ID, 20, 0)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestHandleWebSocket_RateLimitedSendGetsTypedError(t *testing.T) {
	f := newSocketFixture(t)
	ctx := context.Background()

	user := createHubUser(t, f.mock, "Ava Johnson", "ava@example.com")
	convo, err := f.mock.CreateConversation(ctx, nil, user.ID, nil, nil)
	require.NoError(t, err)

	conn := f.dial(t, user)

	for i := 0; i < messageRateLimit; i++ {
		sendFrame(t, conn, map[string]any{
			"type":           "message:send",
			"conversationId": convo.ID,
			"body":           fmt.Sprintf("message %d", i),
		})
		assert.Equal(t, typeMessageNew, readFrame(t, conn).Type)
	}

	sendFrame(t, conn, map[string]any{
		"type":           "message:send",
		"conversationId": convo.ID,
		"body":           "one too many",
	})
	frame := readFrame(t, conn)
	assert.Equal(t, typeSystemError, frame.Type)
	assert.Equal(t, "rate_limited", frame.Code)

	messages, err := f.mock.ListMessages(ctx, convo.ID, 100, 0)
	require.NoError(t, err)
	assert.Len(t, messages, messageRateLimit)
}

func TestHandleWebSocket_OversizedFrameClosesSession(t *testing.T) {
	f := newSocketFixture(t)
	ctx := context.Background()

	user := createHubUser(t, f.mock, "Ava Johnson", "ava@example.com")
	convo, err := f.mock.CreateConversation(ctx, nil, user.ID, nil, nil)
	require.NoError(t, err)

	conn := f.dial(t, user)

	huge := map[string]any{
		"type":           "message:send",
		"conversationId": convo.ID,
		"body":           strings.Repeat("x", 2*maxFrameBytes),
	}
	sendFrame(t, conn, huge)

	// The server closes the connection without persisting anything.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)

	messages, err := f.mock.ListMessages(ctx, convo.ID, 20, 0)
	require.NoError(t, err)
	assert.Empty(t, messages)
}
