package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/seguimientos/internal/auth"
	"github.com/mesh-intelligence/seguimientos/internal/fsstore"
	"github.com/mesh-intelligence/seguimientos/internal/logger"
	"github.com/mesh-intelligence/seguimientos/internal/metrics"
	"github.com/mesh-intelligence/seguimientos/internal/server"
	"github.com/mesh-intelligence/seguimientos/internal/service"
)

const (
	shutdownTimeout = 10 * time.Second
	purgeInterval   = 10 * time.Minute
)

type serveOptions struct {
	listenAddr  string
	metricsAddr string
}

func newServeCmd(a *app) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Serve opens the document root and serves the web interface until it
receives SIGINT or SIGTERM. When metrics_addr is set, Prometheus metrics,
health checks and pprof are served on that address as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runServe(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.listenAddr, "listen", "", "listen address (overrides listen_addr)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-listen", "", "observability address (overrides metrics_addr)")
	return cmd
}

func (a *app) runServe(ctx context.Context, opts *serveOptions) error {
	s := a.settings
	if opts.listenAddr != "" {
		s.ListenAddr = opts.listenAddr
	}
	if opts.metricsAddr != "" {
		s.MetricsAddr = opts.metricsAddr
	}

	log := logger.New(logger.Config{Level: s.LogLevel, Pretty: s.LogPretty})
	m := metrics.New()

	store, err := fsstore.Open(s.StoreConfig())
	if err != nil {
		return fmt.Errorf("open document root: %w", err)
	}

	authn, err := auth.NewStaticAuthenticator(s.Users)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	if authn.Len() == 0 {
		log.Warn().Msg("no users configured; run init --admin-password to add one")
	}

	sessions := auth.NewSessionStore(auth.WithTTL(s.SessionTTL))
	if err := sessions.Attach(s.SessionDB); err != nil {
		return fmt.Errorf("attach session database: %w", err)
	}
	defer func() {
		if err := sessions.Detach(); err != nil {
			log.Error().Err(err).Msg("detach session database")
		}
	}()

	ready := dataDirReady(s.DataDir)
	svc := service.New(store, service.AccessPolicy{ElevatedRoles: s.ElevatedRoles},
		service.WithMetrics(m), service.WithLogger(log))
	srv := server.New(server.Config{
		BasePath:       s.BasePath,
		CookieSecure:   s.CookieSecure,
		MaxUploadBytes: s.MaxUploadBytes,
	}, svc, authn, sessions,
		server.WithLogger(log), server.WithMetrics(m), server.WithReadiness(ready))

	listener, err := net.Listen("tcp", s.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.LogServerStart(listener.Addr().String(), s.DataDir, srv.BasePath())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var obs *server.ObservabilityServer
	if s.MetricsAddr != "" {
		obs = server.NewObservabilityServer(s.MetricsAddr, m, log, ready)
		go func() {
			if err := obs.Start(); err != nil {
				errCh <- err
			}
		}()
	}

	purgeCtx, stopPurge := context.WithCancel(ctx)
	defer stopPurge()
	go purgeSessions(purgeCtx, sessions, log, purgeInterval)

	var runErr error
	select {
	case <-ctx.Done():
		log.LogServerShutdown("signal received")
	case runErr = <-errCh:
		log.LogServerShutdown(runErr.Error())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	if obs != nil {
		if err := obs.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("observability server shutdown")
		}
	}
	return runErr
}

// dataDirReady reports not ready while the document root is missing.
func dataDirReady(dir string) func(context.Context) error {
	return func(context.Context) error {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("document root: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("document root %s is not a directory", dir)
		}
		return nil
	}
}

// purgeSessions deletes expired sessions every interval until ctx ends.
func purgeSessions(ctx context.Context, sessions *auth.SessionStore, log *logger.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.PurgeExpired()
			if err != nil {
				log.Warn().Err(err).Msg("purge expired sessions")
				continue
			}
			if n > 0 {
				log.Debug().Int64("purged", n).Msg("expired sessions removed")
			}
		}
	}
}
