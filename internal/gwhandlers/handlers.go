// Package gwhandlers implements the gateway's meta-tool surface: the small
// set of tools an MCP client actually sees, each one fanning out across the
// registry and backend manager instead of exposing a backend's own tools
// directly.
package gwhandlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jonwraymond/metatools-mcp/internal/backendmgr"
	"github.com/jonwraymond/metatools-mcp/internal/registry"
	"github.com/jonwraymond/metatools-mcp/internal/sandbox"
	"github.com/jonwraymond/metatools-mcp/internal/tracker"
	"github.com/jonwraymond/metatools-mcp/pkg/metatools"
)

// ErrRegistrationDenied covers every reason RegisterManual/DeregisterManual
// refuses a request: runtime registration disabled, max_dynamic_backends
// reached, an unsupported transport, or an attempt to deregister a static
// (config-file) backend.
var ErrRegistrationDenied = errors.New("runtime backend registration denied")

// Config carries the runtime-registration and sandbox knobs that shape the
// meta-tool surface, mirroring config.GatewayConfig's relevant fields.
type Config struct {
	AllowRuntimeRegistration bool
	MaxDynamicBackends       int

	SandboxEnabled        bool
	SandboxTimeoutMs      int
	SandboxMaxOutputSize  int
	MaxConcurrentSandboxes int
}

func (c Config) withDefaults() Config {
	if c.SandboxTimeoutMs <= 0 {
		c.SandboxTimeoutMs = 10_000
	}
	if c.SandboxMaxOutputSize <= 0 {
		c.SandboxMaxOutputSize = 200_000
	}
	if c.MaxConcurrentSandboxes <= 0 {
		c.MaxConcurrentSandboxes = 4
	}
	return c
}

// Handlers wires the registry, backend manager, usage tracker, and optional
// sandbox together to implement every meta-tool.
type Handlers struct {
	registry *registry.Registry
	manager  *backendmgr.Manager
	tracker  *tracker.Tracker
	sandbox  *sandbox.Sandbox
	cfg      Config

	sandboxSem chan struct{}
}

// New constructs a Handlers. sb may be nil, in which call_tool_chain's
// sandbox fallback is refused rather than attempted.
func New(reg *registry.Registry, mgr *backendmgr.Manager, trk *tracker.Tracker, sb *sandbox.Sandbox, cfg Config) *Handlers {
	cfg = cfg.withDefaults()
	return &Handlers{
		registry:   reg,
		manager:    mgr,
		tracker:    trk,
		sandbox:    sb,
		cfg:        cfg,
		sandboxSem: make(chan struct{}, cfg.MaxConcurrentSandboxes),
	}
}

// SearchTools ranks the catalog against a natural-language task description.
func (h *Handlers) SearchTools(_ context.Context, in metatools.SearchToolsInput) (metatools.SearchToolsOutput, error) {
	if err := in.Validate(); err != nil {
		return metatools.SearchToolsOutput{}, err
	}

	entries := h.registry.Search(in.TaskDescription, in.GetLimit(), nil, h.tracker)
	tools := make([]metatools.ToolSummary, 0, len(entries))
	for _, e := range entries {
		if in.GetBrief() {
			tools = append(tools, metatools.ToolSummary{
				Name:          e.Name,
				Backend:       e.BackendName,
				FirstSentence: firstSentence(e.Description),
				CallExample:   callExample(e.Name, paramNames(e.InputSchema)),
			})
			continue
		}
		tools = append(tools, metatools.ToolSummary{
			Name:          e.Name,
			Backend:       e.BackendName,
			FirstSentence: firstSentence(e.Description),
			ParamNames:    paramNames(e.InputSchema),
			CallExample:   callExample(e.Name, paramNames(e.InputSchema)),
		})
	}
	return metatools.SearchToolsOutput{Tools: tools}, nil
}

// ListToolsMeta returns a sorted, cursor-paginated page of tool names.
func (h *Handlers) ListToolsMeta(_ context.Context, in metatools.ListToolsMetaInput) (metatools.ListToolsMetaOutput, error) {
	all := h.registry.GetAll()
	names := make([]string, len(all))
	for i, e := range all {
		names[i] = e.Name
	}
	sort.Strings(names)

	offset, err := metatools.DecodeCursor(in.Cursor)
	if err != nil {
		return metatools.ListToolsMetaOutput{}, err
	}
	pageSize := in.GetPageSize()
	if offset > len(names) {
		offset = len(names)
	}
	end := offset + pageSize
	full := end < len(names)
	if end > len(names) {
		end = len(names)
	}

	out := metatools.ListToolsMetaOutput{Names: append([]string(nil), names[offset:end]...)}
	if full {
		out.NextCursor = metatools.EncodeCursor(end)
	}
	return out, nil
}

// ToolInfo describes one tool by name, in brief or full detail.
func (h *Handlers) ToolInfo(_ context.Context, in metatools.ToolInfoInput) (metatools.ToolInfoOutput, error) {
	if err := in.Validate(); err != nil {
		return metatools.ToolInfoOutput{}, err
	}
	entry, ok := h.registry.Get(in.ToolName)
	if !ok {
		return metatools.ToolInfoOutput{}, fmt.Errorf("tool %q not found", in.ToolName)
	}

	out := metatools.ToolInfoOutput{Name: entry.Name, Backend: entry.BackendName}
	if in.GetDetail() == "full" {
		out.Description = entry.Description
		out.ParamNames = paramNames(entry.InputSchema)
		out.InputSchema = entry.InputSchema
		out.Tags = entry.Tags
		return out, nil
	}
	out.Description = firstSentence(entry.Description)
	out.ParamNames = paramNames(entry.InputSchema)
	return out, nil
}

// GetRequiredKeysForTool returns the union of the owning backend's env keys
// and its configured required_keys list.
func (h *Handlers) GetRequiredKeysForTool(_ context.Context, in metatools.GetRequiredKeysInput) (metatools.GetRequiredKeysOutput, error) {
	if err := in.Validate(); err != nil {
		return metatools.GetRequiredKeysOutput{}, err
	}
	entry, ok := h.registry.Get(in.ToolName)
	if !ok {
		return metatools.GetRequiredKeysOutput{}, fmt.Errorf("tool %q not found", in.ToolName)
	}

	seen := make(map[string]struct{})
	var keys []string
	add := func(k string) {
		if _, dup := seen[k]; dup || k == "" {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	if cfg, ok := h.manager.BackendConfig(entry.BackendName); ok {
		for _, kv := range cfg.Env {
			add(strings.SplitN(kv, "=", 2)[0])
		}
		for _, k := range cfg.RequiredKeys {
			add(k)
		}
	}
	sort.Strings(keys)
	return metatools.GetRequiredKeysOutput{Keys: keys}, nil
}

// RegisterManual adds a dynamic backend at runtime, gated by
// AllowRuntimeRegistration and bounded by MaxDynamicBackends.
func (h *Handlers) RegisterManual(ctx context.Context, in metatools.RegisterManualInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	if !h.cfg.AllowRuntimeRegistration {
		return fmt.Errorf("%w: runtime backend registration is disabled", ErrRegistrationDenied)
	}
	if h.manager.DynamicCount() >= h.cfg.MaxDynamicBackends {
		return fmt.Errorf("%w: max_dynamic_backends (%d) reached", ErrRegistrationDenied, h.cfg.MaxDynamicBackends)
	}

	cfg := backendmgr.Config{Name: in.Name}
	switch in.Transport {
	case "stdio":
		cfg.Transport = backendmgr.TransportStdio
		cfg.Command = in.Command
		cfg.Args = in.Args
		cfg.Env = envToSlice(in.Env)
	case "http", "streamable":
		cfg.Transport = backendmgr.TransportStreamableHTTP
		cfg.URL = in.URL
	default:
		return fmt.Errorf("%w: transport %q is not supported for runtime registration", ErrRegistrationDenied, in.Transport)
	}

	return h.manager.AddBackend(ctx, cfg)
}

// DeregisterManual removes a dynamically-registered backend, refusing to
// touch a backend that came from the static config file.
func (h *Handlers) DeregisterManual(ctx context.Context, in metatools.DeregisterManualInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	if !h.manager.IsDynamic(in.Name) {
		return fmt.Errorf("%w: backend %q was not registered at runtime", ErrRegistrationDenied, in.Name)
	}
	return h.manager.RemoveBackend(ctx, in.Name)
}

func envToSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

func firstSentence(desc string) string {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return ""
	}
	if idx := strings.IndexAny(desc, ".\n"); idx >= 0 {
		return strings.TrimSpace(desc[:idx+1])
	}
	return desc
}

func paramNames(schema map[string]any) []string {
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func callExample(name string, params []string) string {
	if len(params) == 0 {
		return name + "({})"
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = fmt.Sprintf("%q: ...", p)
	}
	return name + "({" + strings.Join(parts, ", ") + "})"
}
