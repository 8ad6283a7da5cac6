package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// global flags shared by every subcommand and by the default (proxy) action.
var (
	configPath string
	socketPath string
	directMode bool

	directTransport string
	directSSEHost   string
	directSSEPort   int
)

// NewRootCmd creates the root command for gatewayd.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gatewayd",
		Short: "MCP aggregation gateway",
		Long: `gatewayd fronts a set of backend MCP servers behind a single meta-tool
surface: one discovery/search/doc/run tool set instead of every backend's
tools flattened into one namespace.

Invoked with no subcommand it runs as a thin proxy: it connects to (spawning
if necessary) a background gateway daemon and bridges stdin/stdout to the
daemon's Unix socket. Use "serve" to run the daemon itself, or --direct to
skip the daemon entirely and run a single in-process session on stdio.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if directMode {
				return runDirect(cmd)
			}
			return runProxy(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to gateway config file")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "path to daemon Unix socket (default: $XDG_RUNTIME_DIR/metatools-gateway/gateway.sock)")
	rootCmd.Flags().BoolVar(&directMode, "direct", false, "skip the daemon, run a single in-process MCP session on stdio")
	rootCmd.Flags().StringVar(&directTransport, "direct-transport", "stdio", "transport for --direct: stdio or sse")
	rootCmd.Flags().StringVar(&directSSEHost, "direct-sse-host", "", "host to bind when --direct-transport=sse")
	rootCmd.Flags().IntVar(&directSSEPort, "direct-sse-port", 8080, "port to bind when --direct-transport=sse")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newStopCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command with a context cancelled on SIGTERM/SIGINT,
// so serve and --direct both shut down cleanly on the same signals.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}
