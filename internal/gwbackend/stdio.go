package gwbackend

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// StdioConfig describes a child-process MCP backend.
type StdioConfig struct {
	Name string
	Command string
	Args    []string
	Env     []string
	Dir     string
}

// StdioBackend owns a spawned child process speaking MCP over its stdio pipes.
type StdioBackend struct {
	stateHolder

	cfg StdioConfig

	mu      sync.RWMutex
	cmd     *exec.Cmd
	client  *mcp.Client
	session *mcp.ClientSession
	exited  chan struct{}
}

// NewStdioBackend constructs a StdioBackend in StateStarting.
func NewStdioBackend(cfg StdioConfig) *StdioBackend {
	b := &StdioBackend{cfg: cfg, exited: make(chan struct{})}
	b.SetState(StateStarting)
	return b
}

// Name returns the backend's configured name.
func (b *StdioBackend) Name() string { return b.cfg.Name }

// Start spawns the child process, in its own process group, and performs the
// MCP initialize handshake over its stdio pipes.
func (b *StdioBackend) Start(ctx context.Context) error {
	cmd := exec.Command(b.cfg.Command, b.cfg.Args...)
	cmd.Dir = b.cfg.Dir
	if len(b.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), b.cfg.Env...)
	}
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open null device for stdio backend %s: %w", b.cfg.Name, err)
	}
	defer devNull.Close()
	cmd.Stderr = devNull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	client := mcp.NewClient(&mcp.Implementation{Name: "metatools-gateway"}, nil)
	session, err := client.Connect(ctx, &mcp.CommandTransport{Command: cmd}, nil)
	if err != nil {
		return fmt.Errorf("start stdio backend %s: %w", b.cfg.Name, err)
	}

	b.mu.Lock()
	b.cmd = cmd
	b.client = client
	b.session = session
	b.mu.Unlock()

	go func() {
		_ = cmd.Wait()
		close(b.exited)
	}()

	b.SetState(StateHealthy)
	return nil
}

// Stop closes the MCP session and terminates the process group, escalating to
// a direct kill if the group does not exit promptly.
func (b *StdioBackend) Stop(ctx context.Context) error {
	b.mu.RLock()
	session, cmd := b.session, b.cmd
	b.mu.RUnlock()

	if session != nil {
		_ = session.Close()
	}
	if cmd == nil || cmd.Process == nil {
		b.SetState(StateStopped)
		return nil
	}

	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	select {
	case <-b.exited:
	case <-time.After(3 * time.Second):
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-b.exited
	case <-ctx.Done():
	}
	b.SetState(StateStopped)
	return nil
}

// CallTool dispatches originalName to the child over its live MCP session.
func (b *StdioBackend) CallTool(ctx context.Context, originalName string, args map[string]any) (any, error) {
	b.mu.RLock()
	session := b.session
	b.mu.RUnlock()
	if session == nil {
		return nil, fmt.Errorf("stdio backend %s: no active session", b.cfg.Name)
	}
	return session.CallTool(ctx, &mcp.CallToolParams{Name: originalName, Arguments: args})
}

// DiscoverTools lists the tools the child currently advertises.
func (b *StdioBackend) DiscoverTools(ctx context.Context) ([]ToolDescriptor, error) {
	b.mu.RLock()
	session := b.session
	b.mu.RUnlock()
	if session == nil {
		return nil, fmt.Errorf("stdio backend %s: no active session", b.cfg.Name)
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

// WaitForExit blocks until the child process exits.
func (b *StdioBackend) WaitForExit(ctx context.Context) (*os.ProcessState, bool) {
	b.mu.RLock()
	cmd := b.cmd
	b.mu.RUnlock()
	if cmd == nil {
		return nil, false
	}
	select {
	case <-b.exited:
		return cmd.ProcessState, true
	case <-ctx.Done():
		return nil, false
	}
}
