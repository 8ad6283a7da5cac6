package cmd

import (
	"fmt"
	"syscall"
	"time"

	"github.com/jonwraymond/metatools-mcp/internal/config"
	"github.com/spf13/cobra"
)

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the gateway daemon",
		Long:  "stop sends SIGTERM to the running daemon and waits up to 5s for it to exit.",
		RunE:  runStop,
	}
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pid, err := readPIDFile(cfg.Gateway.PIDFile)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "not running (no pid file at %s)\n", cfg.Gateway.PIDFile)
		return nil
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "not running (stale pid %d)\n", pid)
		return nil
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := syscall.Kill(pid, 0); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "stopped (pid %d)\n", pid)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("gateway daemon (pid %d) did not exit within 5s", pid)
}
