// Package hub is the in-memory broker that routes persisted chat messages
// and membership changes to currently connected client sessions.
//
// # Overview
//
// The hub sits between the WebSocket endpoint and the store. Durable state
// (conversations, messages, membership) lives in the store; the hub keeps
// only two volatile indices over the live sessions:
//
//   - clientsByUser: userID -> set of sessions (a user may hold several)
//   - subscribers: conversationID -> set of sessions listening on it
//
// # Concurrency Model
//
// A single worker goroutine (Run) owns both indices. Everything else talks
// to it over four queues:
//
//   - register / unregister / broadcast: unbuffered, providing natural
//     backpressure on the pumps that submit to them
//   - membership: buffered, so HTTP handlers approving or evicting members
//     never block on the worker
//
// The worker applies queued membership changes before dispatching a
// broadcast. A session approved into a conversation therefore observes every
// message fanned out after the approval was submitted; it never races the
// subscription update.
//
// # Sessions and Pumps
//
// Each accepted upgrade produces a ClientSession with a bounded outbound
// queue and two pumps. The reader pump decodes inbound frames and runs the
// send path; the writer pump flushes outbound frames and emits keepalive
// pings. Teardown rendezvous is the outbound channel: closing it makes the
// writer exit, and the reader's deferred Unregister cleans up the indices.
//
// # Send Path
//
// A message:send frame is validated, rate-limited (sliding window, 30 sends
// per 10s), authorized against the store (membership is re-read on every
// send, never trusted from the in-memory subscription set), persisted, and
// only then fanned out. The sender's tempId is echoed to every subscriber so
// clients reconcile optimistic sends by (senderId, tempId).
//
// # Slow Consumers
//
// Fan-out never blocks: a session whose outbound queue is full is closed and
// evicted. Clients recover missed messages over REST after reconnecting.
package hub
