// Package gwserver wires a provider.Registry (the gateway's seven meta-tools,
// via internal/metaproviders) into an MCP SDK server instance, and implements
// the transport.Server contract the stdio/SSE transports drive.
package gwserver

import (
	"context"
	"fmt"

	"github.com/jonwraymond/metatools-mcp/internal/provider"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	implementationName    = "metatools-mcp"
	implementationVersion = "dev"
	defaultPageSize       = 50
)

// Server is the gateway's per-session MCP server: one instance is created
// per accepted daemon connection (or once, for --direct/stdio mode), each
// wrapping the same provider.Registry.
type Server struct {
	mcp   *mcp.Server
	tools []*mcp.Tool
}

// New builds a Server exposing every enabled provider in reg as an MCP tool.
func New(reg *provider.Registry, version string) (*Server, error) {
	if reg == nil {
		return nil, fmt.Errorf("gwserver: provider registry is nil")
	}
	if version == "" {
		version = implementationVersion
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    implementationName,
		Version: version,
	}, &mcp.ServerOptions{
		PageSize: defaultPageSize,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{},
		},
	})

	srv := &Server{mcp: mcpServer}
	if err := srv.registerProviders(reg); err != nil {
		return nil, err
	}
	return srv, nil
}

func (s *Server) registerProviders(reg *provider.Registry) error {
	for _, p := range reg.ListEnabled() {
		tool := p.Tool()
		if tool.Name == "" {
			return fmt.Errorf("gwserver: provider %q returned empty tool name", p.Name())
		}
		handler := func(ctx context.Context, req *mcp.CallToolRequest, input map[string]any) (*mcp.CallToolResult, any, error) {
			return p.Handle(ctx, req, input)
		}
		mcp.AddTool(s.mcp, &tool, handler)
		s.tools = append(s.tools, &tool)
	}
	return nil
}

// MCPServer returns the underlying MCP SDK server, satisfying transport.Server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Run starts handling MCP requests over transport, satisfying transport.Server.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcp.Run(ctx, transport)
}

// Tools returns the registered MCP tool definitions.
func (s *Server) Tools() []*mcp.Tool {
	out := make([]*mcp.Tool, len(s.tools))
	copy(out, s.tools)
	return out
}
