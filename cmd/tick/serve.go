package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/tick"
	"github.com/aretw0/tick/internal/config"
	httpAdapter "github.com/aretw0/tick/pkg/adapters/http"
	"github.com/aretw0/tick/pkg/observability"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve <story>",
	Short: "Serve a story over HTTP",
	Long: `Starts the HTTP host: conversations and their turns, session inspection,
change streams, story validation and Prometheus metrics.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := hostConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(h)

		b, err := openBackend(cmd.Context(), h, logger)
		if err != nil {
			return err
		}
		defer b.Close()

		var metrics *observability.Metrics
		lifecycle := observability.LogHooks(logger)
		if h.Metrics {
			metrics = observability.NewMetrics()
			lifecycle = observability.Combine(lifecycle, metrics.Hooks())
		}

		engine, err := loadEngine(cmd, args[0], logger,
			tick.WithStore(b.Store),
			tick.WithLocker(b.Locker, h.LockTTL),
			tick.WithLifecycleHooks(lifecycle),
		)
		if err != nil {
			return err
		}

		opts := []httpAdapter.Option{httpAdapter.WithLogger(logger)}
		if metrics != nil {
			opts = append(opts, httpAdapter.WithMetrics(metrics.Handler()))
		}
		srv := &http.Server{
			Addr:              h.Addr,
			Handler:           httpAdapter.NewHandler(engine, opts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting tick server", "addr", srv.Addr, "story", engine.Name, "store", h.Store)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				return srv.Close()
			}
			logger.Info("tick server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	defaults := config.Default()
	serveCmd.Flags().StringP("addr", "a", defaults.Addr, "Address to listen on")
	serveCmd.Flags().Bool("metrics", defaults.Metrics, "Expose Prometheus metrics on /metrics")
}
