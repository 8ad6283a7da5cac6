// Package gwbackend defines the uniform backend contract the gateway dispatches
// tool calls through, and its stdio/HTTP/composite implementations.
package gwbackend

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
)

// State is a backend's lifecycle state.
type State int32

const (
	// StateStarting is the initial state before the handshake completes.
	StateStarting State = iota
	// StateHealthy accepts new dispatches.
	StateHealthy
	// StateUnhealthy means the circuit is open; no new dispatches.
	StateUnhealthy
	// StateStopped means the backend has exited or been stopped.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateHealthy:
		return "healthy"
	case StateUnhealthy:
		return "unhealthy"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ErrToolNotFound marks a tool name a backend does not advertise. No backend in
// this package returns it; gwerrors recognizes it when classifying errors.
var ErrToolNotFound = errors.New("tool not found on backend")

// ToolDescriptor is a single tool as a backend advertises it, prior to
// namespacing by the registry.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema map[string]any
	Tags        []string
}

// Backend is the uniform contract the Backend Manager dispatches through,
// regardless of transport.
type Backend interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	CallTool(ctx context.Context, originalName string, args map[string]any) (any, error)
	DiscoverTools(ctx context.Context) ([]ToolDescriptor, error)
	State() State
	SetState(State)
	// WaitForExit blocks until the backend's underlying process exits, if it
	// owns one. Variants without a child process return immediately with ok=false.
	WaitForExit(ctx context.Context) (exitState *os.ProcessState, ok bool)
}

// stateHolder is embedded by every concrete backend for its atomic state.
type stateHolder struct {
	state atomic.Int32
}

func (h *stateHolder) State() State {
	return State(h.state.Load())
}

func (h *stateHolder) SetState(s State) {
	h.state.Store(int32(s))
}
