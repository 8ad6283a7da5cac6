package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jonwraymond/metatools-mcp/internal/config"
	"github.com/jonwraymond/metatools-mcp/internal/transport"
	"github.com/spf13/cobra"
)

// runDirect skips the daemon/proxy split entirely and serves a single
// in-process MCP session, for callers that launch one gateway per client
// rather than sharing a daemon. --direct-transport chooses how that single
// session is exposed: stdio (the default, matching --direct's own stdio
// framing) or sse for a caller that wants to reach it over HTTP directly.
func runDirect(cmd *cobra.Command) error {
	ctx := cmd.Context()
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gw, err := buildGateway(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}

	shutdown, err := gw.start(ctx)
	if err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Warn("shutdown failed", "err", err)
		}
	}()

	var t transport.Transport
	switch directTransport {
	case "sse":
		t = &transport.SSETransport{Config: transport.SSEConfig{
			Host: directSSEHost,
			Port: directSSEPort,
		}}
	case "stdio", "":
		t = &transport.StdioTransport{}
	default:
		return fmt.Errorf("unsupported --direct-transport %q (want stdio or sse)", directTransport)
	}

	if err := t.Serve(ctx, gw.server); err != nil && ctx.Err() == nil {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}
