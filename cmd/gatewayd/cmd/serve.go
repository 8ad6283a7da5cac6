package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jonwraymond/metatools-mcp/internal/config"
	"github.com/jonwraymond/metatools-mcp/internal/daemon"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway daemon",
		Long: `serve starts the gateway daemon: it loads every configured backend,
listens on a Unix socket for proxy connections, and exits on its own after
an idle period with no active sessions or on SIGTERM/SIGINT.`,
		RunE: runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if socketPath != "" {
		cfg.Gateway.SocketPath = socketPath
	}

	gw, err := buildGateway(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}

	shutdown, err := gw.start(ctx)
	if err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}

	if configPath != "" {
		watcher := config.NewWatcher(configPath, 500*time.Millisecond, log)
		watcher.OnReload = func(reloaded config.AppConfig) {
			// Backend topology changes require a restart; only the pieces
			// safe to hot-swap (sandbox/handler limits, middleware config)
			// would go here. For now a reload just confirms the file parses
			// and logs it, the same conservative stance the health
			// supervisor takes toward in-flight work.
			log.Info("config file changed", "path", configPath)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				log.Warn("config watcher stopped", "err", err)
			}
		}()
	}

	daemonCfg := daemon.Config{
		SocketPath:  cfg.Gateway.SocketPath,
		PIDFile:     cfg.Gateway.PIDFile,
		IdleTimeout: cfg.Gateway.IdleTimeout,
	}

	runErr := daemon.Run(ctx, daemonCfg, gw.handleSession, shutdown, log)
	if runErr != nil {
		return fmt.Errorf("daemon: %w", runErr)
	}
	return nil
}
