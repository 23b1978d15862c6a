// ABOUTME: Tests for login, the current-user endpoint, and the user directory.
// ABOUTME: Covers credential failures, token minting, throttling, and caller exclusion.

package chatapi

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin_Success(t *testing.T) {
	f := newAPIFixture(t)
	user := f.createUser(t, "Ava Johnson", "ava@example.com")

	resp := f.do(t, http.MethodPost, "/api/login", "", loginRequest{
		Email:    "ava@example.com",
		Password: "pw123456",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body loginResponse
	decodeBody(t, resp, &body)
	assert.NotEmpty(t, body.Token)
	assert.Equal(t, user.ID, body.User.ID)
	assert.Equal(t, "Ava Johnson", body.User.Name)
	assert.Equal(t, "ava@example.com", body.User.Email)

	// The minted token is a verifiable session.
	claims, err := f.signer.Verify(body.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newAPIFixture(t)
	f.createUser(t, "Ava Johnson", "ava@example.com")

	resp := f.do(t, http.MethodPost, "/api/login", "", loginRequest{
		Email:    "ava@example.com",
		Password: "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "Invalid email or password", body["error"])
}

func TestLogin_UnknownEmail(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/login", "", loginRequest{
		Email:    "nobody@example.com",
		Password: "pw123456",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogin_MalformedBody(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.doRaw(t, http.MethodPost, "/api/login", "", strings.NewReader("{not json"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogin_MissingFields(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/login", "", loginRequest{Email: "  ", Password: ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogin_ThrottledAfterBurst(t *testing.T) {
	f := newAPIFixture(t)
	f.createUser(t, "Ava Johnson", "ava@example.com")

	// The whole burst is admitted (and fails on credentials), then the
	// bucket is dry.
	for i := 0; i < loginBurst; i++ {
		resp := f.do(t, http.MethodPost, "/api/login", "", loginRequest{
			Email:    "ava@example.com",
			Password: fmt.Sprintf("wrong-%d", i),
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "attempt %d", i)
	}

	resp := f.do(t, http.MethodPost, "/api/login", "", loginRequest{
		Email:    "ava@example.com",
		Password: "pw123456",
	})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestCurrentUser(t *testing.T) {
	f := newAPIFixture(t)
	user := f.createUser(t, "Ava Johnson", "ava@example.com")

	resp := f.do(t, http.MethodGet, "/api/users/me", f.tokenFor(t, user), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body userResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, user.ID, body.User.ID)
	assert.Equal(t, "ava@example.com", body.User.Email)
}

func TestCurrentUser_RequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListUsers_ExcludesCaller(t *testing.T) {
	f := newAPIFixture(t)
	ava := f.createUser(t, "Ava Johnson", "ava@example.com")
	f.createUser(t, "Liam Patel", "liam@example.com")
	f.createUser(t, "Noah Smith", "noah@example.com")

	resp := f.do(t, http.MethodGet, "/api/users", f.tokenFor(t, ava), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body userListResponse
	decodeBody(t, resp, &body)
	require.Len(t, body.Users, 2)
	for _, u := range body.Users {
		assert.NotEqual(t, ava.ID, u.ID)
	}
}
