// Package store provides persistent storage for the chat backend using SQLite.
//
// # Architecture
//
// A single Store interface covers the whole persistence boundary: users and
// credentials, events, conversations and membership, the message log, read
// cursors, and join requests. SQLiteStore implements it; MockStore offers an
// in-memory double for tests of packages that sit above the store.
//
// # Data Models
//
// Core models:
//
//   - User: Account with a bcrypt password hash
//   - Event: Published meetup owned by its host
//   - Conversation: Durable message container (direct, named group, or event group)
//   - Message: Append-only log entry within a conversation
//   - JoinRequest: A non-member's pending/approved/denied request to join an event group
//
// View models:
//
//   - ConversationSummary: A conversation hydrated for one viewer with
//     participants, newest message, unread count, and event metadata
//   - PendingJoinRequest: A pending request joined with the requester's name
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads. busy_timeout and
// foreign_keys are set per-connection through the DSN so every pooled
// connection carries them:
//
//	file:chat.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)
//
// Timestamps are stored as fixed-width UTC text so lexicographic order in SQL
// matches chronological order.
//
// # Error Handling
//
// Domain errors (ErrUserNotFound, ErrAlreadyConversationMember,
// ErrJoinRequestExists, ErrCannotRemoveHost, ...) are sentinel values that
// callers branch on with errors.Is. Anything else is a storage failure.
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests of packages above the store. Use
// NewSQLiteStore with a t.TempDir() path for integration tests against real
// SQLite.
//
// # Seeding
//
// Seed fixtures are TOML documents referencing users by email and events by
// title. A demo fixture is embedded; EnsureDemoData loads it into an empty
// database.
package store
