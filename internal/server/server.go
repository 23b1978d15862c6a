// ABOUTME: Server orchestrator that assembles store, hub, and REST API into one process.
// ABOUTME: Serves a single handler over plain TCP, a tsnet node, or both, with graceful shutdown.

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/freetonight/chatd/internal/auth"
	"github.com/freetonight/chatd/internal/chatapi"
	"github.com/freetonight/chatd/internal/config"
	"github.com/freetonight/chatd/internal/hub"
	"github.com/freetonight/chatd/internal/metrics"
	"github.com/freetonight/chatd/internal/store"
)

const (
	seedTimeout     = 30 * time.Second
	readyTimeout    = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Server owns the chatd process components and their lifecycle.
type Server struct {
	config      *config.Config
	store       store.Store
	hub         *hub.Hub
	api         *chatapi.API
	metrics     *metrics.Metrics
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger
}

// initStore opens the SQLite database and optionally seeds the demo fixture.
func initStore(cfg *config.Config, logger *slog.Logger) (*store.SQLiteStore, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	if cfg.Database.SeedDemo {
		ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
		defer cancel()
		if err := s.EnsureDemoData(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("seeding demo data: %w", err)
		}
		logger.Info("demo seed checked", "db_path", cfg.Database.Path)
	}

	return s, nil
}

// New assembles a Server from configuration. The caller owns the config;
// it must already be validated.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	sqlStore, err := initStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	signer := auth.NewSigner([]byte(cfg.Auth.SessionSecret), cfg.Auth.SessionTTL)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	h := hub.New(sqlStore, signer, logger, m)
	api := chatapi.New(sqlStore, h, signer, logger)

	srv := &Server{
		config:  cfg,
		store:   sqlStore,
		hub:     h,
		api:     api,
		metrics: m,
		logger:  logger.With("component", "server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.HandleFunc("GET /readyz", srv.handleReady)
	mux.HandleFunc("GET /api/ws", h.HandleWebSocket)
	api.RegisterRoutes(mux, signer)

	handler := http.Handler(mux)
	if m != nil {
		mux.Handle("GET "+cfg.Metrics.Path, m.Handler())
		handler = m.InstrumentHandler(mux)
		logger.Info("metrics enabled", "path", cfg.Metrics.Path)
	}

	srv.httpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return srv, nil
}

// Handler exposes the assembled HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run starts the hub worker and all configured listeners, then blocks until
// the context is canceled or a listener fails. Returns nil on graceful
// shutdown.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run(ctx)

	listeners, err := s.setupListeners(ctx)
	if err != nil {
		return err
	}

	errCh := s.startServers(listeners)
	serverErr := s.waitForShutdownSignal(ctx, errCh)

	shutdownErr := s.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// setupListeners opens the TCP listener and, when enabled, the tsnet
// listener. Config validation guarantees at least one is configured.
func (s *Server) setupListeners(ctx context.Context) ([]net.Listener, error) {
	var listeners []net.Listener

	if s.config.Server.HTTPAddr != "" {
		ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
		if err != nil {
			return nil, fmt.Errorf("listening on HTTP address: %w", err)
		}
		listeners = append(listeners, ln)
	}

	if s.config.Tailscale.Enabled {
		ln, err := s.setupTailscaleListener(ctx)
		if err != nil {
			for _, open := range listeners {
				_ = open.Close()
			}
			return nil, err
		}
		listeners = append(listeners, ln)
	}

	if len(listeners) == 0 {
		return nil, errors.New("no listeners configured")
	}
	return listeners, nil
}

// startServers serves the shared handler on every listener, reporting
// failures on the returned channel.
func (s *Server) startServers(listeners []net.Listener) chan error {
	errCh := make(chan error, len(listeners))
	for _, ln := range listeners {
		go func() {
			s.logger.Info("http server listening", "addr", ln.Addr().String())
			if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
	}
	return errCh
}

// waitForShutdownSignal waits for context cancellation or a server error.
func (s *Server) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		s.logger.Error("server error", "error", err)
		s.drainErrors(errCh)
		return err
	}
}

// drainErrors drains any remaining errors from the channel.
func (s *Server) drainErrors(errCh chan error) {
	select {
	case additionalErr := <-errCh:
		s.logger.Error("additional server error", "error", additionalErr)
	default:
	}
}

// gracefulShutdown performs shutdown with a fresh context. The run context
// is already canceled by the time this is called.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops the HTTP server and releases every component.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error
	errs = appendCloseError(errs, "http shutdown", s.httpServer.Shutdown(ctx))

	s.api.Close()

	if s.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", s.tsnetServer.Close())
	}
	errs = appendCloseError(errs, "store close", s.store.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// resolveTailscaleStateDir returns the state directory, using the default
// under the user's home when not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "chatd", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable (get one at https://login.tailscale.com/admin/settings/keys)")
	}
	return authKey, nil
}

// setupTailscaleListener joins the tailnet and returns the listener the
// shared handler will serve on.
func (s *Server) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := s.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	s.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	s.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := s.tsnetServer.Up(ctx)
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	s.logTailscaleStatus(tsCfg.Hostname, status)

	switch {
	case tsCfg.Funnel:
		s.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := s.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = s.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale funnel port: %w", err)
		}
		return ln, nil
	case tsCfg.HTTPS:
		return s.setupTailscaleTLSListener()
	default:
		ln, err := s.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			_ = s.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

// setupTailscaleTLSListener serves HTTPS with Tailscale's auto-provisioned certs.
func (s *Server) setupTailscaleTLSListener() (net.Listener, error) {
	s.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := s.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := s.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

// logTailscaleStatus logs info about the tailscale node status.
func (s *Server) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		s.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	s.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// handleHealth reports process liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady reports whether the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("readiness probe failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
