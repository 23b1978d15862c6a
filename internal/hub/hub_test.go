// ABOUTME: Behavioral tests for the hub worker: fan-out, membership ordering, slow-consumer policy.
// ABOUTME: Sessions are driven through the queues directly; no sockets involved.

package hub

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freetonight/chatd/internal/store"
)

func newTestHub(t *testing.T) (*Hub, *store.MockStore) {
	t.Helper()
	mock := store.NewMockStore()
	h := New(mock, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	go h.Run(t.Context())
	return h, mock
}

// makeSession builds a registered-ready session without a socket. Frames are
// read straight off the outbound queue.
func makeSession(h *Hub, userID int64, conversationIDs ...int64) *ClientSession {
	return newClientSession(h, nil, userID, conversationIDs)
}

// testFrame is the union of all outbound frame shapes.
type testFrame struct {
	Type           string          `json:"type"`
	Code           string          `json:"code"`
	TempID         string          `json:"tempId"`
	ConversationID int64           `json:"conversationId"`
	UserID         int64           `json:"userId"`
	Action         string          `json:"action"`
	Message        *messagePayload `json:"message"`
}

func receiveFrame(t *testing.T, session *ClientSession) testFrame {
	t.Helper()
	select {
	case payload, ok := <-session.outbound:
		require.True(t, ok, "outbound queue closed while waiting for a frame")
		var frame testFrame
		require.NoError(t, json.Unmarshal(payload, &frame))
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return testFrame{}
	}
}

func assertNoFrame(t *testing.T, session *ClientSession) {
	t.Helper()
	select {
	case payload, ok := <-session.outbound:
		if ok {
			t.Fatalf("unexpected frame: %s", payload)
		}
	case <-time.After(100 * time.Millisecond):
		// Expected: nothing delivered.
	}
}

func TestHub_FanOutDeliversToSubscribersOnly(t *testing.T) {
	h, _ := newTestHub(t)

	s1 := makeSession(h, 1, 7)
	s2 := makeSession(h, 2, 7)
	s3 := makeSession(h, 3, 9)
	h.Register(s1)
	h.Register(s2)
	h.Register(s3)

	h.Broadcast(7, []byte(`{"type":"message:new"}`))

	assert.Equal(t, typeMessageNew, receiveFrame(t, s1).Type)
	assert.Equal(t, typeMessageNew, receiveFrame(t, s2).Type)
	assertNoFrame(t, s3)
}

func TestHub_UserWithTwoDevicesReceivesBoth(t *testing.T) {
	h, _ := newTestHub(t)

	phone := makeSession(h, 1, 7)
	laptop := makeSession(h, 1, 7)
	h.Register(phone)
	h.Register(laptop)

	h.Broadcast(7, []byte(`{"type":"message:new"}`))

	assert.Equal(t, typeMessageNew, receiveFrame(t, phone).Type)
	assert.Equal(t, typeMessageNew, receiveFrame(t, laptop).Type)
}

func TestHub_UnregisterStopsDeliveryAndClosesQueue(t *testing.T) {
	h, _ := newTestHub(t)

	s1 := makeSession(h, 1, 7)
	s2 := makeSession(h, 2, 7)
	h.Register(s1)
	h.Register(s2)

	h.Unregister(s1)
	// Double teardown is tolerated.
	h.Unregister(s1)

	h.Broadcast(7, []byte(`{"type":"message:new"}`))
	assert.Equal(t, typeMessageNew, receiveFrame(t, s2).Type)

	_, ok := <-s1.outbound
	assert.False(t, ok, "outbound queue should be closed after unregister")
}

func TestHub_SlowConsumerIsDropped(t *testing.T) {
	h, _ := newTestHub(t)

	slow := makeSession(h, 1, 7)
	h.Register(slow)

	// Fill the outbound queue without draining, then overflow it.
	for i := 0; i < outboundCapacity+1; i++ {
		h.Broadcast(7, []byte(`{"type":"message:new"}`))
	}

	for i := 0; i < outboundCapacity; i++ {
		receiveFrame(t, slow)
	}
	_, ok := <-slow.outbound
	assert.False(t, ok, "overflowing session should be closed and dropped")

	// The dropped session gets nothing further.
	h.Broadcast(7, []byte(`{"type":"message:new"}`))
}

func TestHub_SlowConsumerDoesNotDisturbOthers(t *testing.T) {
	h, _ := newTestHub(t)

	slow := makeSession(h, 1, 7)
	healthy := makeSession(h, 2, 7)
	h.Register(slow)
	h.Register(healthy)

	// Drain only the healthy session. The slow one overflows and is dropped
	// without costing the healthy one a single frame.
	for i := 0; i < outboundCapacity+4; i++ {
		h.Broadcast(7, []byte(`{"type":"message:new"}`))
		assert.Equal(t, typeMessageNew, receiveFrame(t, healthy).Type)
	}

	for i := 0; i < outboundCapacity; i++ {
		receiveFrame(t, slow)
	}
	_, ok := <-slow.outbound
	assert.False(t, ok, "slow session should have been dropped")
}

func TestHub_MembershipAddedAppliesBeforeQueuedBroadcast(t *testing.T) {
	h, _ := newTestHub(t)

	joiner := makeSession(h, 4)
	h.Register(joiner)

	// The membership change is queued ahead of the broadcast, so the fresh
	// subscriber must see both frames in that order.
	h.NotifyMembership(7, 4, MembershipAdded)
	h.Broadcast(7, []byte(`{"type":"message:new"}`))

	first := receiveFrame(t, joiner)
	assert.Equal(t, typeMembership, first.Type)
	assert.Equal(t, int64(7), first.ConversationID)
	assert.Equal(t, int64(4), first.UserID)
	assert.Equal(t, string(MembershipAdded), first.Action)

	second := receiveFrame(t, joiner)
	assert.Equal(t, typeMessageNew, second.Type)
}

func TestHub_MembershipAddedCoversAllUserDevices(t *testing.T) {
	h, _ := newTestHub(t)

	phone := makeSession(h, 4)
	laptop := makeSession(h, 4)
	h.Register(phone)
	h.Register(laptop)

	h.NotifyMembership(7, 4, MembershipAdded)
	h.Broadcast(7, []byte(`{"type":"message:new"}`))

	for _, session := range []*ClientSession{phone, laptop} {
		assert.Equal(t, typeMembership, receiveFrame(t, session).Type)
		assert.Equal(t, typeMessageNew, receiveFrame(t, session).Type)
	}
}

func TestHub_MembershipRemovedNotifiesAndStopsDelivery(t *testing.T) {
	h, _ := newTestHub(t)

	stays := makeSession(h, 1, 7)
	evicted := makeSession(h, 2, 7)
	h.Register(stays)
	h.Register(evicted)

	h.NotifyMembership(7, 2, MembershipRemoved)

	// Both the remaining subscribers and the evicted user hear about it.
	frame := receiveFrame(t, evicted)
	assert.Equal(t, typeMembership, frame.Type)
	assert.Equal(t, string(MembershipRemoved), frame.Action)
	assert.Equal(t, int64(2), frame.UserID)

	frame = receiveFrame(t, stays)
	assert.Equal(t, typeMembership, frame.Type)

	h.Broadcast(7, []byte(`{"type":"message:new"}`))
	assert.Equal(t, typeMessageNew, receiveFrame(t, stays).Type)
	assertNoFrame(t, evicted)
}

func TestHub_ShutdownClosesSessionsAndUnblocksSubmitters(t *testing.T) {
	mock := store.NewMockStore()
	h := New(mock, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	session := makeSession(h, 1, 7)
	h.Register(session)

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	select {
	case _, ok := <-session.outbound:
		assert.False(t, ok, "outbound queue should be closed on shutdown")
	case <-time.After(2 * time.Second):
		t.Fatal("outbound queue not closed on shutdown")
	}

	// Submissions after shutdown return instead of blocking.
	h.Register(makeSession(h, 2, 7))
	h.Broadcast(7, []byte(`{}`))
	h.NotifyMembership(7, 2, MembershipAdded)
	h.Unregister(session)
}
