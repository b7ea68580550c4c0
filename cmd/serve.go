package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vargaseous/sec-mcptest/cli"
	"github.com/vargaseous/sec-mcptest/config"
	"github.com/vargaseous/sec-mcptest/internal/daemon/pidfile"
	"github.com/vargaseous/sec-mcptest/internal/daemon/server"
	"github.com/vargaseous/sec-mcptest/internal/telemetry"
	"github.com/vargaseous/sec-mcptest/logging"
	"github.com/vargaseous/sec-mcptest/pkg/paths"
)

func newServeCmd() *cobra.Command {
	var (
		addr    string
		pidPath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the State API server",
		Long: `Run the HTTP State API in the foreground.

Every write is stored under the configured key and followed by a change
event on the configured channel. The server stops gracefully on SIGINT or
SIGTERM. Log level changes in the config file apply without a restart.`,
		Example: `  viewsync serve
  viewsync serve --addr :9000
  VIEWSYNC_STORE_BACKEND=sqlite viewsync serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if pidPath != "" {
				cfg.Server.PidFile = pidPath
			}
			return runServer(cmd.Context(), cfg, cfgPath)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides server.addr")
	cmd.Flags().StringVar(&pidPath, "pid-file", "", fmt.Sprintf("PID file guarding against a second server (e.g. %s)", paths.PidFilePath()))
	return cmd
}

func runServer(ctx context.Context, cfg *config.Config, cfgPath string) error {
	logger := logging.NewLogger("server")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.WithError(err).Warn("Flushing traces failed")
		}
	}()

	if cfg.Server.PidFile != "" {
		if err := pidfile.Acquire(cfg.Server.PidFile); err != nil {
			return fmt.Errorf("failed to start: %w", err)
		}
		defer func() {
			if err := pidfile.Release(cfg.Server.PidFile); err != nil {
				logger.WithError(err).Error("Failed to release pidfile")
			}
		}()
	}

	backend, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	svc := newService(cfg, backend, logging.NewLogger("state"))
	if h := svc.Health(ctx); !h.Healthy {
		// Not fatal: the API answers 503 until the store comes back.
		logger.WithError(h.Err).Warn("Backing store is not reachable yet")
	}

	if cfgPath != "" {
		watcher, err := config.NewWatcher(cfgPath, 0, logging.NewLogger("config"), reloadLogging)
		if err != nil {
			logger.WithError(err).Warn("Config hot reload disabled")
		} else {
			defer watcher.Close()
			go watcher.Start(ctx)
		}
	}

	srv := server.New(svc, backend, logger)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe(cfg.Server.Addr, cfg.Server.ReadHeaderTimeout.Std())
	}()

	logger.WithFields(logrus.Fields{
		"pid":     os.Getpid(),
		"addr":    cfg.Server.Addr,
		"backend": cfg.Store.Backend,
	}).Info("Starting State API")

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Received stop signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// reloadLogging applies the logging section of a reloaded config.
func reloadLogging(cfg *config.Config) {
	var logCfg logging.Config
	if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
		logging.NewLogger("config").WithError(err).Warn("Ignoring invalid logging section")
		return
	}
	if logCfg.Level != "" {
		logging.SetLevel(logCfg.Level)
	}
}
