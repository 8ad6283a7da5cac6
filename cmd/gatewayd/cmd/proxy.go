package cmd

import (
	"fmt"
	"os"

	"github.com/jonwraymond/metatools-mcp/internal/config"
	"github.com/jonwraymond/metatools-mcp/internal/proxy"
	"github.com/spf13/cobra"
)

// runProxy is the default action: connect to (spawning if necessary) the
// background daemon and bridge this process's stdin/stdout to its socket.
func runProxy(cmd *cobra.Command) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if socketPath != "" {
		cfg.Gateway.SocketPath = socketPath
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	spawnArgs := []string{"serve", "--socket", cfg.Gateway.SocketPath}
	if configPath != "" {
		spawnArgs = append(spawnArgs, "--config", configPath)
	}

	conn, err := proxy.Connect(ctx, proxy.Config{
		SocketPath: cfg.Gateway.SocketPath,
		LockFile:   cfg.Gateway.LockFile,
		SpawnCmd:   self,
		SpawnArgs:  spawnArgs,
	})
	if err != nil {
		return fmt.Errorf("connect to gateway daemon: %w", err)
	}
	defer conn.Close()

	return proxy.BridgeStdio(conn)
}
