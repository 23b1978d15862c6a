// ABOUTME: ClientSession wraps one authenticated WebSocket connection and its two pumps.
// ABOUTME: The reader pump decodes commands and runs the send path; the writer pump flushes fan-out.

package hub

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/freetonight/chatd/internal/metrics"
	"github.com/freetonight/chatd/internal/store"
)

const (
	// outboundCapacity bounds each session's fan-out queue. A session that
	// cannot drain it is a slow consumer and gets dropped instead of
	// blocking the hub worker.
	outboundCapacity = 8

	maxFrameBytes = 1024
	readTimeout   = 60 * time.Second
	writeTimeout  = 10 * time.Second
	pingInterval  = 50 * time.Second

	// storeTimeout bounds every storage call made on behalf of a session.
	storeTimeout = 5 * time.Second
)

// ClientSession is one live socket owned by a user. A user may hold several
// sessions at once; each receives every broadcast for its subscriptions.
type ClientSession struct {
	id     string
	userID int64
	hub    *Hub
	conn   *websocket.Conn

	// subscriptions is seeded before registration and mutated only by the
	// hub worker afterwards. It routes fan-out; it is never consulted for
	// send authorization.
	subscriptions map[int64]struct{}

	// limiter is touched only by the reader pump.
	limiter sendLimiter

	mu       sync.Mutex
	closed   bool
	outbound chan []byte

	logger *slog.Logger
}

// newClientSession builds a session for a verified user with its initial
// subscription snapshot.
func newClientSession(hub *Hub, conn *websocket.Conn, userID int64, conversationIDs []int64) *ClientSession {
	subscriptions := make(map[int64]struct{}, len(conversationIDs))
	for _, id := range conversationIDs {
		subscriptions[id] = struct{}{}
	}
	sessionID := uuid.NewString()
	return &ClientSession{
		id:            sessionID,
		userID:        userID,
		hub:           hub,
		conn:          conn,
		subscriptions: subscriptions,
		outbound:      make(chan []byte, outboundCapacity),
		logger:        hub.logger.With("session_id", sessionID, "user_id", userID),
	}
}

// enqueue offers a frame to the writer pump without blocking. It reports
// false when the queue is full or the session is already closed.
func (s *ClientSession) enqueue(payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.outbound <- payload:
		return true
	default:
		return false
	}
}

// closeOutbound closes the fan-out queue exactly once so the writer pump
// exits. Safe to call from the hub worker and the endpoint teardown alike.
func (s *ClientSession) closeOutbound() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.outbound)
}

// readPump consumes client frames until the socket dies, then unregisters
// the session. It runs on the goroutine that accepted the upgrade.
func (s *ClientSession) readPump() {
	defer s.hub.Unregister(s)

	s.conn.SetReadLimit(maxFrameBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Debug("read pump closed", "error", err)
			}
			return
		}

		envelope, err := decodeInbound(payload)
		if err != nil {
			s.logger.Debug("dropping malformed frame", "error", err)
			continue
		}

		switch envelope.Type {
		case typeMessageSend:
			s.handleSend(envelope)
		case typePing:
			s.enqueue(pongFrame)
		default:
			s.logger.Debug("ignoring unknown frame type", "type", envelope.Type)
		}
	}
}

// writePump flushes queued frames and emits keepalive pings until the queue
// closes or a write fails.
func (s *ClientSession) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.outbound:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleSend runs the message:send path: validate, rate-limit, authorize,
// persist, then hand the fan-out to the hub. Membership is re-read from the
// store on every send so an eviction takes effect immediately, even for
// sessions whose subscription snapshot predates it.
func (s *ClientSession) handleSend(envelope inboundEnvelope) {
	if envelope.ConversationID <= 0 || strings.TrimSpace(envelope.Body) == "" {
		s.hub.metrics.RecordMessageRejected(metrics.ReasonInvalid)
		return
	}

	if !s.limiter.allow(time.Now()) {
		s.logger.Debug("send rejected by rate limit", "conversation_id", envelope.ConversationID)
		s.hub.metrics.RecordMessageRejected(metrics.ReasonRateLimited)
		s.enqueue(rateLimitedFrame)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	allowed, err := s.hub.authz.CanSend(ctx, s.userID, envelope.ConversationID)
	if err != nil {
		s.logger.Error("membership check failed", "conversation_id", envelope.ConversationID, "error", err)
		return
	}
	if !allowed {
		s.logger.Warn("send to conversation without membership", "conversation_id", envelope.ConversationID)
		s.hub.metrics.RecordMessageRejected(metrics.ReasonNotMember)
		return
	}

	msg, err := s.hub.store.CreateMessage(ctx, store.CreateMessageParams{
		ConversationID: envelope.ConversationID,
		SenderID:       s.userID,
		Body:           envelope.Body,
		DeliveryStatus: store.DeliveryStatusSent,
	})
	if err != nil {
		s.logger.Error("persist message failed", "conversation_id", envelope.ConversationID, "error", err)
		return
	}
	s.hub.metrics.RecordMessagePersisted()

	// The sender has seen their own message; a cursor failure only skews
	// unread counts until the next fetch.
	if err := s.hub.store.UpdateReadCursor(ctx, msg.ConversationID, s.userID, msg.ID); err != nil {
		s.logger.Warn("advance read cursor failed", "conversation_id", msg.ConversationID, "error", err)
	}

	payload, err := encodeMessageNew(envelope.TempID, msg)
	if err != nil {
		s.logger.Error("encode outbound message failed", "error", err)
		return
	}
	s.hub.Broadcast(msg.ConversationID, payload)
}
