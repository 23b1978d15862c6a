// ABOUTME: REST surface for the chat backend: route table, shared helpers, request plumbing.
// ABOUTME: Handlers parse and authorize, delegate to the store, and hand fan-out to the hub.

package chatapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/freetonight/chatd/internal/auth"
	"github.com/freetonight/chatd/internal/hub"
	"github.com/freetonight/chatd/internal/store"
)

// requestTimeout bounds every storage call made on behalf of one request.
const requestTimeout = 5 * time.Second

// API owns the REST handlers. Construct with New and mount with
// RegisterRoutes; Close releases the login throttle's sweeper.
type API struct {
	store    store.Store
	hub      *hub.Hub
	signer   *auth.Signer
	authz    *auth.Authorizer
	logger   *slog.Logger
	throttle *loginThrottle
}

// New builds the API over its collaborators. Pass nil logger for the default.
func New(st store.Store, h *hub.Hub, signer *auth.Signer, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		store:    st,
		hub:      h,
		signer:   signer,
		authz:    auth.NewAuthorizer(st),
		logger:   logger.With("component", "chatapi"),
		throttle: newLoginThrottle(),
	}
}

// Close stops background resources. Safe to call more than once.
func (a *API) Close() {
	a.throttle.Close()
}

// RegisterRoutes mounts every route on mux. Everything except login sits
// behind the bearer-token middleware built from verifier.
func (a *API) RegisterRoutes(mux *http.ServeMux, verifier auth.Verifier) {
	requireAuth := auth.Middleware(verifier)

	mux.HandleFunc("POST /api/login", a.handleLogin)

	mux.Handle("GET /api/users/me", requireAuth(http.HandlerFunc(a.handleCurrentUser)))
	mux.Handle("GET /api/users", requireAuth(http.HandlerFunc(a.handleListUsers)))

	mux.Handle("GET /api/conversations", requireAuth(http.HandlerFunc(a.handleListConversations)))
	mux.Handle("POST /api/conversations", requireAuth(http.HandlerFunc(a.handleCreateConversation)))
	mux.Handle("GET /api/conversations/{id}/messages", requireAuth(http.HandlerFunc(a.handleListMessages)))

	mux.Handle("POST /api/events/{id}/chat/requests", requireAuth(http.HandlerFunc(a.handleRequestJoin)))
	mux.Handle("GET /api/events/{id}/chat/requests", requireAuth(http.HandlerFunc(a.handleListJoinRequests)))
	mux.Handle("POST /api/events/{id}/chat/requests/{userId}/approve", requireAuth(http.HandlerFunc(a.handleApproveJoin)))
	mux.Handle("POST /api/events/{id}/chat/requests/{userId}/deny", requireAuth(http.HandlerFunc(a.handleDenyJoin)))
	mux.Handle("DELETE /api/events/{id}/chat/members/{userId}", requireAuth(http.HandlerFunc(a.handleRemoveMember)))
}

// writeJSON encodes v with the given status. An encoding failure at this
// point can only be logged; the status line is already gone.
func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// pathID parses a positive integer path segment.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// clientIP strips the port from the peer address; throttle keys never
// include ephemeral ports.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
