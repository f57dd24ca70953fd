package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aapmcp/openapi-mcp/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		transport string
		port      int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the spec and serve its operations as MCP tools",
		Long: `Load the OpenAPI description named by spec.url, publish one MCP tool per
operation and serve them over SSE (/sse and /message), streamable HTTP (/mcp)
or stdio. Send SIGHUP to reload the spec without restarting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := opts.viper()
			if err != nil {
				return err
			}
			if transport != "" {
				v.Set("server.transport", transport)
			}
			if port != 0 {
				v.Set("server.port", port)
			}
			cfg, logger, err := loadFrom(v)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "", "transport (sse, streamable, stdio); overrides server.transport")
	cmd.Flags().IntVar(&port, "port", 0, "listen port; overrides server.port")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tools, err := a.server.Reload(ctx)
	if err != nil {
		return fmt.Errorf("loading spec from %s: %w", a.cfg.Spec.URL, err)
	}
	a.logger.Info("spec loaded",
		zap.String("service", a.cfg.Spec.Service),
		zap.Int("tools", tools.Len()),
		zap.Strings("validators", a.chain.Validators()))
	a.warnNopValidator()

	go a.reloadOnHangup(ctx)

	if a.cfg.Server.Transport == config.TransportStdio {
		id, err := a.stdioIdentity(ctx)
		if err != nil {
			return fmt.Errorf("authenticating stdio credentials: %w", err)
		}
		return a.server.ServeStdio(id)
	}
	return a.serveHTTP(ctx)
}

func (a *app) serveHTTP(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("serving MCP",
			zap.String("addr", srv.Addr),
			zap.String("transport", a.cfg.Server.Transport))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return startupError(srv.Addr, err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, closeTransport := range a.closers {
		if err := closeTransport(shutdownCtx); err != nil {
			a.logger.Warn("closing transport", zap.Error(err))
		}
	}
	return srv.Shutdown(shutdownCtx)
}

func (a *app) reloadOnHangup(ctx context.Context) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			tools, err := a.server.Reload(ctx)
			if err != nil {
				a.logger.Error("spec reload failed, keeping previous tools", zap.Error(err))
				continue
			}
			a.logger.Info("spec reloaded", zap.Int("tools", tools.Len()))
		}
	}
}

// startupError adds a hint for the listen failures operators hit most.
func startupError(addr string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "address already in use"):
		return fmt.Errorf("listening on %s: %w (another process holds the port; pick one with --port or PORT)", addr, err)
	case strings.Contains(msg, "permission denied"):
		return fmt.Errorf("listening on %s: %w (ports below 1024 need privileges; use a higher port)", addr, err)
	}
	return fmt.Errorf("listening on %s: %w", addr, err)
}
