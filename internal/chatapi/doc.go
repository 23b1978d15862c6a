// Package chatapi serves the authenticated REST surface of the chat backend.
//
// # Routes
//
// Session (public):
//
//	POST   /api/login
//
// Behind the bearer-token middleware:
//
//	GET    /api/users/me
//	GET    /api/users
//	GET    /api/conversations
//	POST   /api/conversations
//	GET    /api/conversations/{id}/messages
//	POST   /api/events/{id}/chat/requests
//	GET    /api/events/{id}/chat/requests
//	POST   /api/events/{id}/chat/requests/{userId}/approve
//	POST   /api/events/{id}/chat/requests/{userId}/deny
//	DELETE /api/events/{id}/chat/members/{userId}
//
// # Division of Labor
//
// Handlers parse and authorize, the store persists, and membership changes
// are handed to the hub for fan-out after the storage write commits. Handlers
// never touch hub state directly; NotifyMembership is the only channel in.
//
// # Wire Shapes
//
// Conversation summaries and join requests serialize snake_case. Message
// payloads serialize camelCase, byte-for-byte the shape of the socket's
// message:new frames, so clients run one decoder for both transports.
//
// # Error Mapping
//
// Store sentinels map onto statuses in one place (writeStoreError): not-host
// 403, missing things 404, duplicates 409, cannot-remove-host 400. Unknown
// errors are logged and surface as bare 500s.
//
// # Login Throttle
//
// POST /api/login draws from a per-address token bucket (burst 5, one
// attempt per second refill) before credentials are even read; exhausted
// buckets answer 429. The address book is size-bounded and idle entries
// age out.
package chatapi
