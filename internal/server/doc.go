// Package server assembles the chatd process from its components and runs
// its lifecycle.
//
// # Overview
//
// New wires a validated config into a ready-to-run Server: it opens the
// SQLite store (seeding the demo fixture when database.seed_demo is set),
// builds the session signer, the hub, the REST API, and optionally the
// Prometheus collectors, then mounts everything on one http.ServeMux:
//
//   - GET /healthz          - liveness
//   - GET /readyz           - readiness (database ping)
//   - GET /api/ws           - WebSocket session endpoint
//   - /api/...              - REST surface (see chatapi)
//   - GET /metrics          - scrape endpoint, when metrics.enabled
//
// # Listeners
//
// Run serves the same handler on every configured listener: a plain TCP
// listener when server.http_addr is set, and a tsnet listener when
// tailscale.enabled is true. The tsnet node serves :80, :443 with Tailscale
// certs (tailscale.https), or a public funnel (tailscale.funnel). Both may
// be active at once, for deployments that want a local port next to the
// tailnet address.
//
// # Lifecycle
//
//	srv, err := server.New(cfg, logger)
//	// handle err
//	err = srv.Run(ctx) // blocks until ctx is canceled or a listener fails
//
// Run starts the hub worker, opens the listeners, and blocks. Cancellation
// triggers a graceful shutdown: the HTTP server drains in-flight requests,
// the API releases its background resources, and the store closes last.
package server
