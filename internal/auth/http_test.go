// ABOUTME: Tests for the bearer-token HTTP middleware
// ABOUTME: Covers header parsing, verification failures, and claims propagation

package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantToken string
		wantErr   string
	}{
		{name: "valid", header: "Bearer abc123", wantToken: "abc123"},
		{name: "case insensitive scheme", header: "bearer abc123", wantToken: "abc123"},
		{name: "missing header", header: "", wantErr: "missing authorization header"},
		{name: "wrong scheme", header: "Basic abc123", wantErr: "invalid authorization header format"},
		{name: "no token", header: "Bearer ", wantErr: "empty token"},
		{name: "scheme only", header: "Bearer", wantErr: "invalid authorization header format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, errMsg := extractBearerToken(tt.header)
			if token != tt.wantToken {
				t.Errorf("token = %q, want %q", token, tt.wantToken)
			}
			if errMsg != tt.wantErr {
				t.Errorf("errMsg = %q, want %q", errMsg, tt.wantErr)
			}
		})
	}
}

func TestMiddleware_ValidToken(t *testing.T) {
	signer := NewSigner([]byte("test-secret"), time.Hour)
	token, _, err := signer.Issue(42, "ava@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	var gotClaims *Claims
	handler := Middleware(signer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = MustFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if gotClaims == nil || gotClaims.UserID != 42 {
		t.Errorf("claims = %+v, want UserID 42", gotClaims)
	}
}

func TestMiddleware_Rejections(t *testing.T) {
	signer := NewSigner([]byte("test-secret"), time.Hour)
	otherSigner := NewSigner([]byte("other-secret"), time.Hour)
	foreignToken, _, err := otherSigner.Issue(42, "ava@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "garbage token", header: "Bearer garbage"},
		{name: "wrong secret", header: "Bearer " + foreignToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Middleware(signer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler should not run for rejected requests")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			if !strings.Contains(rec.Body.String(), "error") {
				t.Errorf("body = %q, want an error field", rec.Body.String())
			}
		})
	}
}
