package gwbackend

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HTTPConfig describes a remote streamable-HTTP MCP backend.
type HTTPConfig struct {
	Name       string
	URL        string
	Headers    map[string]string
	MaxRetries int
}

// HTTPBackend owns a streamable-HTTP MCP session against a remote server.
type HTTPBackend struct {
	stateHolder

	cfg HTTPConfig

	mu      sync.RWMutex
	client  *mcp.Client
	session *mcp.ClientSession
}

// NewHTTPBackend constructs an HTTPBackend in StateStarting.
func NewHTTPBackend(cfg HTTPConfig) *HTTPBackend {
	b := &HTTPBackend{cfg: cfg}
	b.SetState(StateStarting)
	return b
}

// Name returns the backend's configured name.
func (b *HTTPBackend) Name() string { return b.cfg.Name }

// Start performs the MCP initialize handshake against the remote endpoint.
func (b *HTTPBackend) Start(ctx context.Context) error {
	client := mcp.NewClient(&mcp.Implementation{Name: "metatools-gateway"}, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint:   b.cfg.URL,
		HTTPClient: httpClientWithHeaders(b.cfg.Headers),
		MaxRetries: b.cfg.MaxRetries,
	}, nil)
	if err != nil {
		return fmt.Errorf("start http backend %s: %w", b.cfg.Name, err)
	}

	b.mu.Lock()
	b.client = client
	b.session = session
	b.mu.Unlock()

	b.SetState(StateHealthy)
	return nil
}

// Stop closes the MCP session. There is no child process to terminate.
func (b *HTTPBackend) Stop(ctx context.Context) error {
	b.mu.RLock()
	session := b.session
	b.mu.RUnlock()
	if session != nil {
		_ = session.Close()
	}
	b.SetState(StateStopped)
	return nil
}

// CallTool dispatches originalName over the live HTTP session.
func (b *HTTPBackend) CallTool(ctx context.Context, originalName string, args map[string]any) (any, error) {
	b.mu.RLock()
	session := b.session
	b.mu.RUnlock()
	if session == nil {
		return nil, fmt.Errorf("http backend %s: no active session", b.cfg.Name)
	}
	return session.CallTool(ctx, &mcp.CallToolParams{Name: originalName, Arguments: args})
}

// DiscoverTools lists the tools the remote server currently advertises.
func (b *HTTPBackend) DiscoverTools(ctx context.Context) ([]ToolDescriptor, error) {
	b.mu.RLock()
	session := b.session
	b.mu.RUnlock()
	if session == nil {
		return nil, fmt.Errorf("http backend %s: no active session", b.cfg.Name)
	}
	res, err := session.ListTools(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := make([]ToolDescriptor, 0, len(res.Tools))
	for _, t := range res.Tools {
		if t == nil {
			continue
		}
		out = append(out, ToolDescriptor{Name: t.Name, Description: t.Description})
	}
	return out, nil
}

// WaitForExit is a no-op for the HTTP variant: there is no child process.
func (b *HTTPBackend) WaitForExit(ctx context.Context) (*os.ProcessState, bool) {
	return nil, false
}

// httpClientWithHeaders returns an *http.Client that injects headers into
// every outbound request without overwriting headers the transport already
// set (e.g. Content-Type), or nil when there are no headers to inject.
func httpClientWithHeaders(headers map[string]string) *http.Client {
	clone := make(map[string]string, len(headers))
	for k, v := range headers {
		if strings.TrimSpace(k) == "" {
			continue
		}
		clone[k] = v
	}
	if len(clone) == 0 {
		return nil
	}
	return &http.Client{
		Transport: &headerRoundTripper{base: http.DefaultTransport, headers: clone},
	}
}

type headerRoundTripper struct {
	base    http.RoundTripper
	headers map[string]string
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range h.headers {
		if clone.Header.Get(k) == "" {
			clone.Header.Set(k, v)
		}
	}
	return h.base.RoundTrip(clone)
}
