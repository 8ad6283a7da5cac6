package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/jonwraymond/metatools-mcp/internal/config"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the gateway daemon is running",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pid, err := readPIDFile(cfg.Gateway.PIDFile)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "stopped (no pid file at %s)\n", cfg.Gateway.PIDFile)
		return nil
	}

	if err := syscall.Kill(pid, 0); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "stopped (stale pid %d in %s)\n", pid, cfg.Gateway.PIDFile)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "running (pid %d, socket %s)\n", pid, cfg.Gateway.SocketPath)
	return nil
}

// readPIDFile parses the single-integer PID written by daemon.Run.
func readPIDFile(path string) (int, error) {
	// #nosec G304 -- path comes from operator configuration, not request input.
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file %s: %w", path, err)
	}
	return pid, nil
}
