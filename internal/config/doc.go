// Package config handles configuration loading for chatd.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable
// expansion, then deployment environment overrides, then validation. Default()
// supplies a complete development config for when no file exists.
//
// # Configuration File
//
// cmd/chatd resolves the path in order:
//
//  1. --config flag
//  2. CHATD_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/chatd/config.yaml
//  4. ~/.config/chatd/config.yaml
//  5. Built-in defaults (no file)
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  session_secret: "${CHAT_SESSION_SECRET}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Environment Overrides
//
// Three variables override file values outright, so containerized deploys
// need no config file edits:
//
//	CHAT_SESSION_SECRET  auth.session_secret
//	CHATD_HTTP_ADDR      server.http_addr
//	CHATD_DB_PATH        database.path
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Database:
//
//	database:
//	  path: "/var/lib/chatd/chat.db"
//	  seed_demo: false   # load the demo fixture into an empty database
//
// Authentication:
//
//	auth:
//	  session_secret: "${CHAT_SESSION_SECRET}"
//	  session_ttl: "12h"
//
// Tailscale:
//
//	tailscale:
//	  enabled: false
//	  hostname: "chatd"
//	  auth_key: "${TS_AUTHKEY}"
//	  https: true
//	  funnel: false
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Metrics:
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// # Secret Fallback
//
// A missing session secret falls back to DevSessionSecret rather than
// failing: tokens keep working on a laptop with zero setup. UsingDevSecret
// lets the caller log a loud warning when that happened.
//
// # Validation
//
// Load() validates:
//
//   - server.http_addr present (unless tailscale is enabled)
//   - tailscale.hostname present when tailscale is enabled
//   - database.path present
//   - duration format validity
package config
