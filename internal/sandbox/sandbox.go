// Package sandbox runs call_tool_chain's fallback path: arbitrary
// tool-orchestration code evaluated inside a wazero-hosted WASM guest, with
// one host-imported function per accessor call so the guest never talks to
// backends directly.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// HostCaller dispatches one accessor call (backend, tool, JSON args) to the
// real tool-calling layer and returns the JSON-encoded result or an error.
type HostCaller func(ctx context.Context, backend, tool string, argsJSON []byte) ([]byte, error)

// Config tunes the wazero runtime backing every sandbox evaluation.
type Config struct {
	// ModulePath is the compiled WASM guest (a JS-on-WASM engine exposing the
	// host_call ABI) supplied by the operator; the gateway does not embed one.
	ModulePath             string
	MaxMemoryPages         uint32
	EnableCompilationCache bool
}

func (c Config) withDefaults() Config {
	if c.MaxMemoryPages == 0 {
		c.MaxMemoryPages = 256
	}
	return c
}

// Sandbox compiles the configured guest module once and evaluates scripts
// against it under a fresh memory instance per call.
type Sandbox struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	cfg      Config
}

// New loads and compiles the guest module at cfg.ModulePath.
func New(ctx context.Context, cfg Config) (*Sandbox, error) {
	cfg = cfg.withDefaults()

	rc := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(cfg.MaxMemoryPages).
		WithCloseOnContextDone(true)
	if cfg.EnableCompilationCache {
		rc = rc.WithCompilationCache(wazero.NewCompilationCache())
	}
	runtime := wazero.NewRuntimeWithConfig(ctx, rc)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	moduleBytes, err := readModule(cfg.ModulePath)
	if err != nil {
		runtime.Close(ctx)
		return nil, err
	}
	compiled, err := runtime.CompileModule(ctx, moduleBytes)
	if err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("compile sandbox module %s: %w", cfg.ModulePath, err)
	}

	return &Sandbox{runtime: runtime, compiled: compiled, cfg: cfg}, nil
}

// Close releases the wazero runtime and the compiled module.
func (s *Sandbox) Close(ctx context.Context) error {
	_ = s.compiled.Close(ctx)
	return s.runtime.Close(ctx)
}

// Eval runs preamble+code inside a fresh guest instance, routing every
// host_call the guest makes through call, and returns the guest's stdout
// truncated to maxOutputSize bytes at a UTF-8 character boundary.
func (s *Sandbox) Eval(ctx context.Context, timeout time.Duration, preamble, code string, maxOutputSize int, call HostCaller) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	hostModule := s.runtime.NewHostModuleBuilder("gateway")
	hostModule.NewFunctionBuilder().
		WithFunc(makeHostCall(ctx, call, &stderr)).
		Export("host_call")
	hostMod, err := hostModule.Instantiate(ctx)
	if err != nil {
		return "", fmt.Errorf("instantiate host module: %w", err)
	}
	defer hostMod.Close(ctx)

	script := preamble + "\n" + code
	modCfg := wazero.NewModuleConfig().
		WithStdin(bytes.NewReader([]byte(script))).
		WithStdout(&stdout).
		WithStderr(&stderr).
		WithName("")

	mod, err := s.runtime.InstantiateModule(ctx, s.compiled, modCfg)
	if mod != nil {
		defer mod.Close(ctx)
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("sandbox evaluation failed: %w (stderr: %s)", err, stderr.String())
	}

	return truncateUTF8(stdout.String(), maxOutputSize), nil
}

// makeHostCall adapts HostCaller into the guest's flat-buffer ABI: the guest
// writes (backend,tool,args) into its own linear memory and passes pointers
// and lengths; the result is written back the same way via the guest's
// exported alloc function.
func makeHostCall(ctx context.Context, call HostCaller, stderr *bytes.Buffer) func(api.Module, uint32, uint32, uint32, uint32, uint32, uint32) uint64 {
	return func(mod api.Module, backendPtr, backendLen, toolPtr, toolLen, argsPtr, argsLen uint32) uint64 {
		mem := mod.Memory()
		backend, ok := mem.Read(backendPtr, backendLen)
		if !ok {
			fmt.Fprintln(stderr, "host_call: invalid backend buffer")
			return 0
		}
		tool, ok := mem.Read(toolPtr, toolLen)
		if !ok {
			fmt.Fprintln(stderr, "host_call: invalid tool buffer")
			return 0
		}
		args, ok := mem.Read(argsPtr, argsLen)
		if !ok {
			fmt.Fprintln(stderr, "host_call: invalid args buffer")
			return 0
		}

		result, err := call(ctx, string(backend), string(tool), args)
		if err != nil {
			result = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
		}

		alloc := mod.ExportedFunction("alloc")
		if alloc == nil {
			fmt.Fprintln(stderr, "host_call: guest does not export alloc")
			return 0
		}
		res, err := alloc.Call(ctx, uint64(len(result)))
		if err != nil || len(res) == 0 {
			fmt.Fprintln(stderr, "host_call: alloc failed")
			return 0
		}
		resultPtr := uint32(res[0])
		if !mem.Write(resultPtr, result) {
			fmt.Fprintln(stderr, "host_call: failed writing result")
			return 0
		}
		return (uint64(resultPtr) << 32) | uint64(len(result))
	}
}

func truncateUTF8(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && isUTF8Continuation(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isUTF8Continuation(b byte) bool {
	return b&0xC0 == 0x80
}
