// ABOUTME: Shared fixture for REST tests: mock store, live hub, signed sessions, httptest server.
// ABOUTME: Helpers issue tokens and run authenticated requests against the full route table.

package chatapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/freetonight/chatd/internal/auth"
	"github.com/freetonight/chatd/internal/hub"
	"github.com/freetonight/chatd/internal/store"
)

type apiFixture struct {
	mock   *store.MockStore
	api    *API
	hub    *hub.Hub
	signer *auth.Signer
	server *httptest.Server
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	mock := store.NewMockStore()
	signer := auth.NewSigner([]byte("api-test-secret"), 0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := hub.New(mock, signer, logger, nil)
	go h.Run(t.Context())

	api := New(mock, h, signer, logger)
	t.Cleanup(api.Close)

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, signer)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &apiFixture{mock: mock, api: api, hub: h, signer: signer, server: server}
}

func (f *apiFixture) createUser(t *testing.T, name, email string) *store.User {
	t.Helper()
	user, err := f.mock.CreateUser(t.Context(), store.CreateUserParams{
		Name:     name,
		Email:    email,
		Password: "pw123456",
	})
	require.NoError(t, err)
	return user
}

func (f *apiFixture) tokenFor(t *testing.T, user *store.User) string {
	t.Helper()
	token, _, err := f.signer.Issue(user.ID, user.Email)
	require.NoError(t, err)
	return token
}

// do runs a request with an optional bearer token and JSON body.
func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	return f.doRaw(t, method, path, token, reader)
}

// doRaw is do without marshaling, for malformed-body cases.
func (f *apiFixture) doRaw(t *testing.T, method, path, token string, body io.Reader) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, f.server.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// eventWithGuest builds the standard moderation scene: a hosted event whose
// guest has already been approved into the group conversation.
func (f *apiFixture) eventWithGuest(t *testing.T, host, guest *store.User) (eventID, convoID int64) {
	t.Helper()
	ctx := t.Context()

	event, err := f.mock.CreateEvent(ctx, store.CreateEventParams{HostUserID: host.ID, Title: "Picnic"})
	require.NoError(t, err)
	_, err = f.mock.CreateJoinRequest(ctx, event.ID, guest.ID)
	require.NoError(t, err)
	_, err = f.mock.ApproveJoinRequest(ctx, event.ID, guest.ID, host.ID)
	require.NoError(t, err)

	convo, err := f.mock.GetConversationByEventID(ctx, event.ID)
	require.NoError(t, err)
	return event.ID, convo.ID
}
