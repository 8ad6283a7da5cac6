package gwhandlers

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jonwraymond/metatools-mcp/internal/sandbox"
	"github.com/jonwraymond/metatools-mcp/pkg/metatools"
)

// directCallPattern matches a single `backend.tool({...})` invocation so the
// common case of one call never has to pay for a sandbox evaluation.
var directCallPattern = regexp.MustCompile(`^\s*([A-Za-z_][\w.-]*)\(\s*(\{.*\})?\s*\)\s*;?\s*$`)

type jsonToolCall struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// CallToolChain dispatches code directly when it is a single recognizable
// call, and otherwise falls back to the WASM sandbox when one is configured.
func (h *Handlers) CallToolChain(ctx context.Context, in metatools.CallToolChainInput) metatools.CallToolChainOutput {
	if err := in.Validate(); err != nil {
		return metatools.CallToolChainOutput{Error: &metatools.ErrorObject{Code: "invalid_input", Message: err.Error()}}
	}

	if name, args, ok := parseDirectCall(in.Code); ok {
		result, err := h.dispatchByName(ctx, name, args)
		if err != nil {
			return metatools.CallToolChainOutput{Error: &metatools.ErrorObject{Code: "call_failed", Message: err.Error(), ToolName: name}}
		}
		return metatools.CallToolChainOutput{Result: result}
	}

	if !h.cfg.SandboxEnabled || h.sandbox == nil {
		return metatools.CallToolChainOutput{Error: &metatools.ErrorObject{
			Code:    "sandbox_disabled",
			Message: "code is not a direct tool call and the sandbox is disabled",
		}}
	}

	select {
	case h.sandboxSem <- struct{}{}:
		defer func() { <-h.sandboxSem }()
	case <-ctx.Done():
		return metatools.CallToolChainOutput{Error: &metatools.ErrorObject{Code: "canceled", Message: ctx.Err().Error()}}
	}

	preamble, err := sandbox.BuildPreamble(h.accessors())
	if err != nil {
		return metatools.CallToolChainOutput{Error: &metatools.ErrorObject{Code: "preamble_failed", Message: err.Error()}}
	}

	timeout := time.Duration(h.cfg.SandboxTimeoutMs) * time.Millisecond
	maxOutput := in.GetMaxOutputSize()
	if maxOutput > h.cfg.SandboxMaxOutputSize {
		maxOutput = h.cfg.SandboxMaxOutputSize
	}

	output, err := h.sandbox.Eval(ctx, timeout, preamble, in.Code, maxOutput, h.hostCall)
	if err != nil {
		return metatools.CallToolChainOutput{Error: &metatools.ErrorObject{Code: "sandbox_error", Message: err.Error()}}
	}
	return metatools.CallToolChainOutput{Output: output}
}

// parseDirectCall recognizes either a `backend.tool({...})` expression or a
// bare `{"tool": "...", "arguments": {...}}` JSON object.
func parseDirectCall(code string) (name string, args map[string]any, ok bool) {
	trimmed := strings.TrimSpace(code)

	if m := directCallPattern.FindStringSubmatch(trimmed); m != nil {
		name = m[1]
		args = map[string]any{}
		if m[2] != "" {
			if err := json.Unmarshal([]byte(m[2]), &args); err != nil {
				return "", nil, false
			}
		}
		return name, args, true
	}

	var call jsonToolCall
	if err := json.Unmarshal([]byte(trimmed), &call); err == nil && call.Tool != "" {
		return call.Tool, call.Arguments, true
	}

	return "", nil, false
}

// dispatchByName resolves name through the registry (namespaced, bare, or
// alias) and dispatches the call through the backend manager.
func (h *Handlers) dispatchByName(ctx context.Context, name string, args map[string]any) (any, error) {
	entry, ok := h.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("tool %q not found", name)
	}
	return h.manager.CallTool(ctx, entry.BackendName, entry.OriginalName, args)
}

// hostCall adapts dispatchByName into the sandbox's HostCaller ABI: the
// sandbox preamble always names tools by their fully-qualified
// "backend.tool" form, which FindEquivalentTool resolves back to the
// namespaced registry entry.
func (h *Handlers) hostCall(ctx context.Context, backend, tool string, argsJSON []byte) ([]byte, error) {
	var args map[string]any
	if len(argsJSON) > 0 {
		if err := json.Unmarshal(argsJSON, &args); err != nil {
			return nil, fmt.Errorf("decode args for %s.%s: %w", backend, tool, err)
		}
	}

	namespaced, ok := h.registry.FindEquivalentTool(backend, tool)
	if !ok {
		return nil, fmt.Errorf("tool %s.%s not found", backend, tool)
	}
	entry, ok := h.registry.Get(namespaced)
	if !ok {
		return nil, fmt.Errorf("tool %s.%s not found", backend, tool)
	}

	result, err := h.manager.CallTool(ctx, entry.BackendName, entry.OriginalName, args)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

// accessors builds the sandbox preamble's tool list from the live registry.
func (h *Handlers) accessors() []sandbox.ToolAccessor {
	entries := h.registry.GetAll()
	out := make([]sandbox.ToolAccessor, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		key := e.BackendName + "\x00" + e.OriginalName
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, sandbox.ToolAccessor{
			Backend:      e.BackendName,
			OriginalName: e.OriginalName,
			Description:  e.Description,
			InputSchema:  e.InputSchema,
		})
	}
	return out
}
