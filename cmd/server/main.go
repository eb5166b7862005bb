package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/infinitybuddha29/caller/internal/config"
	"github.com/infinitybuddha29/caller/internal/logging"
	"github.com/infinitybuddha29/caller/internal/metrics"
	"github.com/infinitybuddha29/caller/internal/server"
	"github.com/infinitybuddha29/caller/internal/signaling"
	"github.com/infinitybuddha29/caller/internal/version"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:     "caller-server",
	Short:   "WebRTC signaling server pairing two participants per room",
	Version: version.String(),
	Args:    cobra.NoArgs,
	RunE:    run,
}

func init() {
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "Path to a YAML config file")
}

func main() {
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "caller-server:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadAndValidate(flagConfig)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger, err := logging.New(os.Stderr, level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	m := metrics.New()
	coord := signaling.NewCoordinator(signaling.NewRegistry(), signaling.Options{
		GracePeriod: cfg.Signaling.GracePeriod,
		Logger:      logger,
		Metrics:     m,
	})
	srv := server.New(coord, server.OptionsFromConfig(cfg, logger, m))

	l, err := net.Listen("tcp", cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.ListenAddr, err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(l) }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		if !errors.Is(err, server.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped", "connections", srv.Connections())
	return nil
}
