// ABOUTME: In-memory broker fanning persisted messages and membership changes out to live sessions.
// ABOUTME: A single worker goroutine owns the session indices; all mutation arrives over queues.

package hub

import (
	"context"
	"log/slog"

	"github.com/freetonight/chatd/internal/auth"
	"github.com/freetonight/chatd/internal/metrics"
	"github.com/freetonight/chatd/internal/store"
)

// membershipQueueCapacity buffers membership changes so HTTP handlers never
// block on the worker. The other queues stay unbuffered for backpressure.
const membershipQueueCapacity = 16

// broadcastEvent carries an encoded frame to the subscribers of a conversation.
type broadcastEvent struct {
	conversationID int64
	payload        []byte
}

// membershipChange mirrors a storage-level membership update into the worker.
type membershipChange struct {
	conversationID int64
	userID         int64
	action         MembershipAction
}

// Hub routes frames between live sessions. Durable state lives in the store;
// the hub's indices exist only to answer "who is connected and listening",
// never to authorize anything.
type Hub struct {
	store    store.Store
	authz    *auth.Authorizer
	verifier auth.Verifier
	logger   *slog.Logger
	metrics  *metrics.Metrics

	register   chan *ClientSession
	unregister chan *ClientSession
	broadcast  chan broadcastEvent
	membership chan membershipChange

	// clientsByUser and subscribers are owned by the Run worker.
	clientsByUser map[int64]map[*ClientSession]struct{}
	subscribers   map[int64]map[*ClientSession]struct{}

	done chan struct{}
}

// New builds a hub over the given store and token verifier. Pass nil logger
// for default; m may be nil to disable instrumentation.
func New(st store.Store, verifier auth.Verifier, logger *slog.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		store:         st,
		authz:         auth.NewAuthorizer(st),
		verifier:      verifier,
		logger:        logger.With("component", "hub"),
		metrics:       m,
		register:      make(chan *ClientSession),
		unregister:    make(chan *ClientSession),
		broadcast:     make(chan broadcastEvent),
		membership:    make(chan membershipChange, membershipQueueCapacity),
		clientsByUser: make(map[int64]map[*ClientSession]struct{}),
		subscribers:   make(map[int64]map[*ClientSession]struct{}),
		done:          make(chan struct{}),
	}
}

// Run drains the hub queues until ctx is cancelled. It must be the only
// goroutine that touches clientsByUser and subscribers.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		// Membership changes apply ahead of anything else queued, so a
		// fresh member never misses a fan-out dispatched after approval.
		select {
		case change := <-h.membership:
			h.applyMembership(change)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case session := <-h.register:
			h.addSession(session)
		case session := <-h.unregister:
			h.dropSession(session)
		case change := <-h.membership:
			h.applyMembership(change)
		case event := <-h.broadcast:
			h.drainMembership()
			h.fanOut(event.conversationID, event.payload)
		}
	}
}

// Register hands a freshly upgraded session to the worker.
func (h *Hub) Register(session *ClientSession) {
	select {
	case h.register <- session:
	case <-h.done:
	}
}

// Unregister tears a session down. Safe to call more than once.
func (h *Hub) Unregister(session *ClientSession) {
	select {
	case h.unregister <- session:
	case <-h.done:
	}
}

// Broadcast fans an encoded frame out to the current subscribers of a
// conversation. The payload must be a complete JSON text frame.
func (h *Hub) Broadcast(conversationID int64, payload []byte) {
	select {
	case h.broadcast <- broadcastEvent{conversationID: conversationID, payload: payload}:
	case <-h.done:
	}
}

// NotifyMembership mirrors a conversation membership change into the live
// indices and announces it to the conversation's subscribers.
func (h *Hub) NotifyMembership(conversationID, userID int64, action MembershipAction) {
	select {
	case h.membership <- membershipChange{conversationID: conversationID, userID: userID, action: action}:
	case <-h.done:
	}
}

func (h *Hub) addSession(session *ClientSession) {
	byUser, ok := h.clientsByUser[session.userID]
	if !ok {
		byUser = make(map[*ClientSession]struct{})
		h.clientsByUser[session.userID] = byUser
	}
	byUser[session] = struct{}{}

	for conversationID := range session.subscriptions {
		h.attach(session, conversationID)
	}

	h.metrics.SessionOpened()
	h.logger.Debug("session registered",
		"session_id", session.id,
		"user_id", session.userID,
		"subscriptions", len(session.subscriptions))
}

// dropSession removes a session from every index and closes it. It reports
// whether the session was still registered, so double teardown stays silent.
func (h *Hub) dropSession(session *ClientSession) bool {
	byUser, registered := h.clientsByUser[session.userID]
	if registered {
		_, registered = byUser[session]
	}

	session.closeOutbound()
	if session.conn != nil {
		_ = session.conn.Close()
	}

	if !registered {
		return false
	}

	delete(byUser, session)
	if len(byUser) == 0 {
		delete(h.clientsByUser, session.userID)
	}
	for conversationID := range session.subscriptions {
		h.detach(session, conversationID)
	}

	h.metrics.SessionClosed()
	h.logger.Debug("session unregistered", "session_id", session.id, "user_id", session.userID)
	return true
}

func (h *Hub) attach(session *ClientSession, conversationID int64) {
	subs, ok := h.subscribers[conversationID]
	if !ok {
		subs = make(map[*ClientSession]struct{})
		h.subscribers[conversationID] = subs
	}
	subs[session] = struct{}{}
}

func (h *Hub) detach(session *ClientSession, conversationID int64) {
	subs, ok := h.subscribers[conversationID]
	if !ok {
		return
	}
	delete(subs, session)
	if len(subs) == 0 {
		delete(h.subscribers, conversationID)
	}
}

// fanOut delivers a frame to each subscriber of the conversation. Sessions
// that cannot accept it are slow consumers: they are closed and evicted
// rather than blocking the worker; the message itself stays durable in the
// store and a reconnect picks it up over REST.
func (h *Hub) fanOut(conversationID int64, payload []byte) {
	delivered := 0
	for session := range h.subscribers[conversationID] {
		if session.enqueue(payload) {
			delivered++
			continue
		}
		h.logger.Debug("dropping slow consumer",
			"session_id", session.id,
			"user_id", session.userID,
			"conversation_id", conversationID)
		h.metrics.RecordSlowConsumerDrop()
		h.dropSession(session)
	}
	h.metrics.RecordBroadcast(delivered)
}

// drainMembership applies every queued membership change so a fan-out never
// outruns an approval or eviction submitted before it.
func (h *Hub) drainMembership() {
	for {
		select {
		case change := <-h.membership:
			h.applyMembership(change)
		default:
			return
		}
	}
}

func (h *Hub) applyMembership(change membershipChange) {
	sessions := h.clientsByUser[change.userID]

	switch change.action {
	case MembershipAdded:
		if _, ok := h.subscribers[change.conversationID]; !ok {
			h.subscribers[change.conversationID] = make(map[*ClientSession]struct{})
		}
		for session := range sessions {
			session.subscriptions[change.conversationID] = struct{}{}
			h.subscribers[change.conversationID][session] = struct{}{}
		}
	case MembershipRemoved:
		for session := range sessions {
			delete(session.subscriptions, change.conversationID)
			h.detach(session, change.conversationID)
		}
	default:
		h.logger.Warn("ignoring unknown membership action", "action", string(change.action))
		return
	}

	payload, err := encodeMembership(change.conversationID, change.userID, change.action)
	if err != nil {
		h.logger.Error("encode membership event failed", "error", err)
		return
	}

	// An evicted user's sessions are no longer subscribers but are still
	// told they were removed.
	if change.action == MembershipRemoved {
		for session := range sessions {
			if !session.enqueue(payload) {
				h.metrics.RecordSlowConsumerDrop()
				h.dropSession(session)
			}
		}
	}
	h.fanOut(change.conversationID, payload)

	h.logger.Debug("membership change applied",
		"conversation_id", change.conversationID,
		"user_id", change.userID,
		"action", string(change.action))
}

// shutdown closes every live session so the pumps exit.
func (h *Hub) shutdown() {
	closed := 0
	for _, sessions := range h.clientsByUser {
		for session := range sessions {
			session.closeOutbound()
			if session.conn != nil {
				_ = session.conn.Close()
			}
			h.metrics.SessionClosed()
			closed++
		}
	}
	h.clientsByUser = make(map[int64]map[*ClientSession]struct{})
	h.subscribers = make(map[int64]map[*ClientSession]struct{})
	h.logger.Debug("hub stopped", "sessions_closed", closed)
}
