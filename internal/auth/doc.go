// Package auth implements session tokens and the HTTP middleware that
// enforces them.
//
// # Token Format
//
// Tokens are two base64url segments joined by a dot:
//
//	base64url(payload) "." base64url(HMAC-SHA256(secret, base64url(payload)))
//
// The payload is JSON claims: user_id, email, issued_at, expires_at. Expiry
// is embedded in the signed payload, so tokens cannot be extended without
// reissuing. There is no refresh flow; clients log in again when a token
// expires.
//
// # Verification
//
// Verify checks the signature with hmac.Equal before decoding the payload,
// then enforces expiry. Failures map to three sentinel errors:
//
//   - ErrTokenMalformed: not two segments, bad base64, or bad JSON
//   - ErrTokenBadSignature: signature does not match
//   - ErrTokenExpired: claims are valid but stale
//
// All three are presented to HTTP clients as 401.
//
// # Usage
//
// REST handlers sit behind Middleware, which stores the claims in the
// request context for MustFromContext. The WebSocket endpoint verifies the
// token itself (it arrives as a query parameter, not a header) and passes
// the claims to the session it registers.
package auth
