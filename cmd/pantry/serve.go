package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pantry/internal/adapters/httpapi"
	"pantry/internal/core"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pantry HTTP API",
		Long: `Serve the pantry JSON API under /api/v1/pantry, metrics on /metrics
(Prometheus or expvar, per metrics.exporter) and a health check on /healthz
until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				rootOpts.Config.HTTP.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", rootOpts.Config.HTTP.Addr)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			return serve(ctx, rootOpts, ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}

// serve runs the API on ln until ctx is cancelled, then shuts down gracefully.
func serve(ctx context.Context, rootOpts *RootOptions, ln net.Listener) (err error) {
	logger := rootOpts.Logger

	metrics, metricsHandler, err := newMetrics(rootOpts.Config.Metrics)
	if err != nil {
		_ = ln.Close()
		return err
	}

	svc, cleanup, err := rootOpts.openService(ctx, core.WithMetricsRecorder(metrics))
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer func() {
		if cerr := cleanup(); err == nil {
			err = cerr
		}
	}()

	if view, rerr := svc.Refresh(ctx); rerr != nil {
		logger.Warn("initial load failed", zap.Error(rerr))
	} else {
		logger.Info("pantry loaded", zap.Int("items", view.Len()))
	}

	srv := &http.Server{
		Handler:           httpapi.NewMux(httpapi.NewHandler(svc, rootOpts.Config.Defaults), metricsHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
