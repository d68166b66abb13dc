// ABOUTME: Server orchestrator wiring store, admin site, exporter, metrics, and web admin
// ABOUTME: Manages the HTTP listener (TCP or tailscale tsnet), health endpoints, and shutdown

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
	"strings"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/csvexport/internal/admin"
	"github.com/2389/csvexport/internal/auth"
	"github.com/2389/csvexport/internal/config"
	"github.com/2389/csvexport/internal/csvexport"
	"github.com/2389/csvexport/internal/metrics"
	"github.com/2389/csvexport/internal/model"
	"github.com/2389/csvexport/internal/store"
	"github.com/2389/csvexport/internal/webadmin"
)

// Server runs the admin site with the CSV export action.
type Server struct {
	config      *config.Config
	store       *store.SQLiteStore
	site        *admin.Site
	exporter    *csvexport.Exporter
	metrics     *metrics.Collector
	handler     http.Handler
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger
}

// TableDescriber reads column metadata for a table.
type TableDescriber interface {
	DescribeTable(ctx context.Context, table string) ([]model.Field, error)
}

// ExportOptions converts the exports config section to exporter options.
func ExportOptions(cfg config.ExportsConfig) csvexport.Options {
	return csvexport.Options{
		RequirePerm:   cfg.RequirePerm,
		GlobalEnabled: cfg.GlobalEnabled,
	}
}

// OpenStore opens the configured database. CSVEXPORT_DB_PATH overrides the path.
func OpenStore(cfg *config.Config) (*store.SQLiteStore, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("CSVEXPORT_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.Open(cfg.Database.Driver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// RegisterModels registers every configured model on site. Models without
// declared fields get them from the database. Models with csv_export set
// get the export action attached. Every csv_fields entry must name a
// model field.
func RegisterModels(ctx context.Context, site *admin.Site, exporter *csvexport.Exporter, tables TableDescriber, models []config.ModelConfig) error {
	for _, mc := range models {
		meta := mc.Meta()
		if len(meta.Fields) == 0 {
			fields, err := tables.DescribeTable(ctx, meta.Table)
			if err != nil {
				return fmt.Errorf("describing %s: %w", meta.Label(), err)
			}
			meta.Fields = fields
		}
		for _, f := range mc.CSVFields {
			if !meta.HasField(f) {
				return fmt.Errorf("%s: csv field %q is not a field of the model", meta.Label(), f)
			}
		}

		ma := csvexport.NewModelAdmin(meta)
		ma.Fields = mc.CSVFields
		ma.Filename = mc.CSVFilename

		var err error
		if mc.CSVExport {
			err = exporter.Register(site, ma)
		} else {
			err = site.Register(ma)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// determineBaseURL resolves the web admin base URL from config or environment.
func determineBaseURL(cfg *config.Config) string {
	if cfg.WebAdmin.BaseURL != "" {
		return cfg.WebAdmin.BaseURL
	}
	if envURL := os.Getenv("CSVEXPORT_URL"); envURL != "" {
		return envURL
	}
	if !cfg.Tailscale.Enabled {
		return "http://" + cfg.Server.HTTPAddr
	}
	if cfg.Tailscale.HTTPS {
		return "https://" + cfg.Tailscale.Hostname
	}
	return "http://" + cfg.Tailscale.Hostname
}

// New creates a Server from configuration. The database is opened and the
// configured models are registered; nothing listens until Run.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	srv, err := newServer(ctx, cfg, s, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return srv, nil
}

func newServer(ctx context.Context, cfg *config.Config, s *store.SQLiteStore, logger *slog.Logger) (*Server, error) {
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(nil)
	}

	exporter := csvexport.New(ExportOptions(cfg.Exports), collector)
	site := admin.NewSite()
	exporter.Install(site)

	if err := RegisterModels(ctx, site, exporter, s, cfg.Models); err != nil {
		return nil, err
	}

	if err := s.DeleteExpiredSessions(ctx); err != nil {
		return nil, err
	}
	users, err := s.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users == 0 {
		logger.Warn("no admin users yet, create one with: csvexport createuser --username NAME --password PASS --superuser")
	}

	// The token API is only available with a signing secret
	var verifier auth.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		v, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			return nil, fmt.Errorf("creating token verifier: %w", err)
		}
		verifier = v
	} else {
		logger.Warn("auth.jwt_secret not set, export API disabled")
	}

	srv := &Server{
		config:   cfg,
		store:    s,
		site:     site,
		exporter: exporter,
		metrics:  collector,
		logger:   logger.With("component", "server"),
	}

	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("GET /health", srv.handleHealth)
	mux.HandleFunc("GET /health/ready", srv.handleReady)

	if collector != nil {
		mux.Handle("GET "+cfg.Metrics.Path, collector.Handler())
		logger.Info("metrics enabled", "path", cfg.Metrics.Path)
	}

	baseURL := determineBaseURL(cfg)
	webadmin.New(s, site, verifier, webadmin.Config{BaseURL: baseURL}).RegisterRoutes(mux)
	logger.Info("admin web UI enabled at /admin/", "base_url", baseURL,
		"require_perm", cfg.Exports.RequirePerm, "global_enabled", cfg.Exports.GlobalEnabled)

	srv.handler = mux
	srv.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return srv, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Site returns the admin site with every configured model registered.
func (s *Server) Site() *admin.Site {
	return s.site
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.setupListener(ctx)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	// The run context is already canceled here
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := s.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// setupListener creates the HTTP listener (Tailscale or TCP).
func (s *Server) setupListener(ctx context.Context) (net.Listener, error) {
	if s.config.Tailscale.Enabled {
		if s.config.Server.HTTPAddr != "" {
			s.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", s.config.Server.HTTPAddr)
		}
		return s.setupTailscaleListener(ctx)
	}

	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "csvexport", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener brings up a tsnet node and listens on :80, or on
// :443 with tailnet certificates when HTTPS is enabled.
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

	if !tsCfg.HTTPS {
		ln, err := s.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			_ = s.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}

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
		dnsName = strings.TrimSuffix(status.Self.DNSName, ".")
	}
	s.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))

	if s.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", s.tsnetServer.Close())
	}
	errs = appendCloseError(errs, "store close", s.store.Close())

	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DB().PingContext(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d models)", len(s.site.Models()))
}
