// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

package main

import (
	"context"
	cryptotls "crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/thingful/thingful/internal/auth"
	"github.com/thingful/thingful/internal/auth/memory"
	"github.com/thingful/thingful/internal/auth/postgres"
	"github.com/thingful/thingful/internal/config"
	"github.com/thingful/thingful/internal/httpapi"
	"github.com/thingful/thingful/internal/logging"
	"github.com/thingful/thingful/internal/observability"
	"github.com/thingful/thingful/internal/tls"
	"github.com/thingful/thingful/internal/xdg"
	"github.com/thingful/thingful/pkg/errutil"
)

const serviceName = "thingful"

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return newServeCmd(nil)
}

func newServeCmd(deps *ServeDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HTTP API: account registration on POST /api/users and
Basic-auth protected user resources. Metrics and health probes are served
on a separate listener.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, cmd, deps)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServe runs the API until ctx is done or a listener fails.
func runServe(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()

	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetDefault(serviceName, version, cfg.Log.Format, level)

	logger.Info("starting thingful",
		"http_addr", cfg.HTTP.Addr,
		"storage", cfg.Storage,
		"bcrypt_cost", cfg.Auth.BcryptCost,
	)

	var (
		users     auth.UserDirectory
		readiness observability.ReadinessChecker
	)
	switch cfg.Storage {
	case config.StoragePostgres:
		db, err := deps.DatabaseFactory(ctx, cfg.Database.URL, cfg.Database.ConnectAttempts)
		if err != nil {
			return oops.With("operation", "connect to database").Wrap(err)
		}
		defer db.Close()
		users = postgres.NewUserRepository(db)
		readiness = db.Ping
		logger.Info("connected to database")
	case config.StorageMemory:
		users = memory.NewUserDirectory()
		logger.Warn("using in-memory user storage; accounts are lost on exit")
	}

	obs := observability.NewServer(cfg.Metrics.Addr, readiness, logger)
	authMetrics := auth.NewMetrics(obs.Registry())

	hasher, err := auth.NewBcryptHasher(cfg.Auth.BcryptCost, cfg.Auth.MaxConcurrentHashes,
		auth.WithHasherMetrics(authMetrics))
	if err != nil {
		return err
	}
	authn, err := auth.NewAuthenticator(users, hasher,
		auth.WithAuthenticatorLogger(logger),
		auth.WithAuthenticatorMetrics(authMetrics))
	if err != nil {
		return oops.With("operation", "create authenticator").Wrap(err)
	}
	registration, err := auth.NewRegistrationService(users, hasher,
		auth.WithRegistrationLogger(logger),
		auth.WithRegistrationMetrics(authMetrics))
	if err != nil {
		return oops.With("operation", "create registration service").Wrap(err)
	}
	api, err := httpapi.New(httpapi.Config{
		Authenticator: authn,
		Registration:  registration,
		Users:         users,
		Realm:         cfg.Auth.Realm,
		Logger:        logger,
		Metrics:       observability.NewHTTPMetrics(obs.Registry()),
	})
	if err != nil {
		return oops.With("operation", "create api").Wrap(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Metrics.Addr != "" {
		obsErrCh, err := obs.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	tlsConfig, err := deps.TLSConfigLoader(cfg.HTTP)
	if err != nil {
		stopObservability(obs, cfg)
		return err
	}

	listener, err := deps.ListenerFactory("tcp", cfg.HTTP.Addr)
	if err != nil {
		stopObservability(obs, cfg)
		return oops.Code("LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}
	if tlsConfig != nil {
		listener = cryptotls.NewListener(listener, tlsConfig)
	} else {
		logger.Warn("serving without TLS; Basic credentials travel in cleartext")
	}
	apiServer := &http.Server{
		Handler:           api,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	apiErrCh := make(chan error, 1)
	go func() {
		defer close(apiErrCh)
		if serveErr := apiServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			apiErrCh <- serveErr
		}
	}()

	cmd.Println("API server started")
	logger.Info("api server listening", "addr", listener.Addr().String(), "tls", tlsConfig != nil)

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err, ok := <-apiErrCh:
		if ok && err != nil {
			serveErr = oops.Code("SERVE_FAILED").With("server", "api").Wrap(err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		errutil.LogErrorContext(shutdownCtx, logger, "error stopping api server", err)
	}
	stopObservability(obs, cfg)

	logger.Info("shutdown complete")
	return serveErr
}

// loadTLSConfig returns the API TLS config, or nil when TLS is off.
// Self-signed certificates are kept in the XDG certs directory and reused.
func loadTLSConfig(cfg config.HTTPConfig) (*cryptotls.Config, error) {
	switch {
	case cfg.TLS.SelfSigned:
		dir, err := xdg.CertsDir()
		if err != nil {
			return nil, err
		}
		if err := xdg.EnsureDir(dir); err != nil {
			return nil, err
		}
		certFile, keyFile, err := tls.EnsureSelfSigned(dir, certHosts(cfg.Addr))
		if err != nil {
			return nil, err
		}
		slog.Info("using self-signed certificate", "cert_file", certFile)
		return tls.LoadServerTLS(certFile, keyFile)
	case cfg.TLS.CertFile != "":
		return tls.LoadServerTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	}
	return nil, nil
}

// certHosts lists the names a self-signed certificate for addr should cover.
func certHosts(addr string) []string {
	hosts := []string{"localhost", "127.0.0.1", "::1"}
	host, _, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return hosts
	}
	for _, h := range hosts {
		if h == host {
			return hosts
		}
	}
	return append(hosts, host)
}

func stopObservability(obs *observability.Server, cfg *config.Config) {
	if cfg.Metrics.Addr == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := obs.Stop(ctx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports an error.
// It returns when an error arrives, the channel closes, or ctx ends.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
