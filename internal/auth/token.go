// ABOUTME: HMAC-signed session tokens shared by the REST and WebSocket layers
// ABOUTME: Two base64url segments, payload.signature, with embedded expiry

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultSessionTTL controls how long issued session tokens remain valid.
const DefaultSessionTTL = 12 * time.Hour

// Token errors
var (
	ErrTokenMalformed    = errors.New("malformed session token")
	ErrTokenBadSignature = errors.New("session token signature mismatch")
	ErrTokenExpired      = errors.New("session token expired")
)

// Claims is the token payload. Both REST and WebSocket layers identify the
// caller from it without re-querying the database.
type Claims struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Verifier checks a token and returns its claims.
type Verifier interface {
	Verify(token string) (*Claims, error)
}

// Signer issues and verifies session tokens. The token is
// base64url(payload).base64url(HMAC-SHA256(secret, base64url(payload))).
type Signer struct {
	secret []byte
	ttl    time.Duration
}

// NewSigner creates a Signer. A non-positive ttl falls back to
// DefaultSessionTTL.
func NewSigner(secret []byte, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Signer{secret: secret, ttl: ttl}
}

// Issue creates a signed token for the user. Callers get both the opaque
// token string and the structured claims.
func (s *Signer) Issue(userID int64, email string) (string, *Claims, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID:    userID,
		Email:     email,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	payloadBytes, err := json.Marshal(claims)
	if err != nil {
		return "", nil, fmt.Errorf("encoding claims: %w", err)
	}

	payload := base64.RawURLEncoding.EncodeToString(payloadBytes)
	token := payload + "." + s.sign(payload)
	return token, &claims, nil
}

// Verify checks the signature and expiry and rebuilds the claims. The
// signature is checked before the payload is decoded, so unauthenticated
// input never reaches the JSON decoder.
func (s *Signer) Verify(token string) (*Claims, error) {
	payload, signature, ok := strings.Cut(token, ".")
	if !ok || payload == "" || signature == "" {
		return nil, ErrTokenMalformed
	}

	expected := s.sign(payload)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return nil, ErrTokenBadSignature
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, ErrTokenMalformed
	}

	var claims Claims
	if err := json.Unmarshal(payloadBytes, &claims); err != nil {
		return nil, ErrTokenMalformed
	}

	if time.Now().UTC().After(claims.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	return &claims, nil
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

var _ Verifier = (*Signer)(nil)
