package gwbackend

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// ErrCompositeCallNotAllowed is returned when a caller tries to invoke a
// composite tool directly instead of through the sandbox.
var ErrCompositeCallNotAllowed = fmt.Errorf("composite tools must be invoked through call_tool_chain, not dispatched directly")

// CompositeTool is a backend-less tool whose body is source code evaluated in
// the sandbox rather than dispatched to any transport.
type CompositeTool struct {
	Name        string
	Description string
	Code        string
	InputSchema map[string]any
}

// CompositeBackend is a virtual backend: it owns no transport and its tools
// always execute inside the sandbox.
type CompositeBackend struct {
	stateHolder

	name string

	mu    sync.RWMutex
	tools map[string]CompositeTool
}

// NewCompositeBackend constructs a CompositeBackend that is immediately Healthy
// since it owns no external process or connection to wait on.
func NewCompositeBackend(name string, tools []CompositeTool) *CompositeBackend {
	b := &CompositeBackend{name: name, tools: make(map[string]CompositeTool, len(tools))}
	for _, t := range tools {
		b.tools[t.Name] = t
	}
	b.SetState(StateHealthy)
	return b
}

// Name returns the backend's configured name.
func (b *CompositeBackend) Name() string { return b.name }

// Start is a no-op; composite backends have nothing to connect to.
func (b *CompositeBackend) Start(ctx context.Context) error {
	b.SetState(StateHealthy)
	return nil
}

// Stop is a no-op.
func (b *CompositeBackend) Stop(ctx context.Context) error {
	b.SetState(StateStopped)
	return nil
}

// CallTool always refuses: composite tools only run through the sandbox.
func (b *CompositeBackend) CallTool(ctx context.Context, originalName string, args map[string]any) (any, error) {
	return nil, ErrCompositeCallNotAllowed
}

// DiscoverTools returns the composite tool catalog, tagged "composite".
func (b *CompositeBackend) DiscoverTools(ctx context.Context) ([]ToolDescriptor, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]ToolDescriptor, 0, len(b.tools))
	for _, t := range b.tools {
		schema := t.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{"params": map[string]any{}}}
		}
		out = append(out, ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
			Tags:        []string{"composite"},
		})
	}
	return out, nil
}

// Code returns the source for a composite tool's body, used by the sandbox.
func (b *CompositeBackend) Code(name string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tools[name]
	return t.Code, ok
}

// WaitForExit is a no-op; composite backends own no process.
func (b *CompositeBackend) WaitForExit(ctx context.Context) (*os.ProcessState, bool) {
	return nil, false
}
