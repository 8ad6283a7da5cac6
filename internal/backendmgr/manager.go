// Package backendmgr owns backend lifecycles end to end: starting them,
// dispatching calls with retry/rate-limit/concurrency discipline, draining
// in-flight work on shutdown, and reaping crashed children.
package backendmgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/metatools-mcp/internal/gwbackend"
	"github.com/jonwraymond/metatools-mcp/internal/prereq"
	"github.com/jonwraymond/metatools-mcp/internal/registry"
	"golang.org/x/time/rate"
)

// Sentinel errors CallTool wraps its failures in, so callers (internal/gwerrors'
// mapper, in particular) can discriminate dispatch failure kinds with errors.Is
// instead of matching on message text.
var (
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrConcurrencyLimited = errors.New("max concurrent calls exceeded")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrBackendStarting    = errors.New("backend still starting")
	ErrBackendNotFound    = errors.New("backend not found")
)

// Status is a point-in-time snapshot of one backend, as returned by Statuses.
type Status struct {
	Name  string
	State gwbackend.State
}

// Manager owns every backend's lifecycle and is the sole entry point tool
// calls are dispatched through.
type Manager struct {
	log *slog.Logger

	mu       sync.RWMutex
	backends map[string]gwbackend.Backend
	configs  map[string]Config

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter

	semMu sync.Mutex
	sems  map[string]chan struct{}

	dynamicMu sync.Mutex
	dynamic   map[string]struct{}

	inFlight atomic.Int64

	prereqs      *prereq.Manager
	registry     *registry.Registry
	drainTimeout time.Duration
}

// New constructs a Manager. drainTimeout bounds stop_all's wait for in-flight
// calls (default 10s).
func New(reg *registry.Registry, prereqs *prereq.Manager, drainTimeout time.Duration, log *slog.Logger) *Manager {
	if drainTimeout <= 0 {
		drainTimeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		log:          log,
		backends:     make(map[string]gwbackend.Backend),
		configs:      make(map[string]Config),
		limiters:     make(map[string]*rate.Limiter),
		sems:         make(map[string]chan struct{}),
		dynamic:      make(map[string]struct{}),
		prereqs:      prereqs,
		registry:     reg,
		drainTimeout: drainTimeout,
	}
}

// callGuard increments the in-flight counter on construction and decrements
// it exactly once, on every exit path, via Close.
type callGuard struct {
	counter *atomic.Int64
}

func newCallGuard(counter *atomic.Int64) callGuard {
	counter.Add(1)
	return callGuard{counter: counter}
}

func (g callGuard) Close() { g.counter.Add(-1) }

// InFlightCalls returns the number of calls currently dispatching.
func (m *Manager) InFlightCalls() int64 { return m.inFlight.Load() }

// StartAll stores cfgs and starts every backend concurrently. Individual
// failures are logged; the backend remains pending for the health supervisor
// to retry, so one bad backend never aborts the rest.
func (m *Manager) StartAll(ctx context.Context, cfgs []Config) {
	m.mu.Lock()
	for _, cfg := range cfgs {
		m.configs[cfg.Name] = cfg
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, cfg := range cfgs {
		wg.Add(1)
		go func(cfg Config) {
			defer wg.Done()
			if err := m.startBackend(ctx, cfg); err != nil {
				m.log.Warn("backend failed to start, will retry via health supervisor", "backend", cfg.Name, "err", err)
			}
		}(cfg)
	}
	wg.Wait()
}

func (m *Manager) startBackend(ctx context.Context, cfg Config) error {
	if err := m.prereqs.Ensure(ctx, cfg.Name, cfg.Prerequisite); err != nil {
		return fmt.Errorf("prerequisite for %s: %w", cfg.Name, err)
	}

	b, err := buildBackend(cfg)
	if err != nil {
		return err
	}
	if err := b.Start(ctx); err != nil {
		return err
	}
	tools, err := b.DiscoverTools(ctx)
	if err != nil {
		_ = b.Stop(ctx)
		return fmt.Errorf("discover tools for %s: %w", cfg.Name, err)
	}

	specs := make([]registry.ToolSpec, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, registry.ToolSpec{
			OriginalName: t.Name,
			Description:  t.Description,
			InputSchema:  t.InputSchema,
			Tags:         t.Tags,
		})
	}
	m.registry.Register(cfg.Name, cfg.Namespace, specs)

	m.mu.Lock()
	m.backends[cfg.Name] = b
	m.mu.Unlock()

	if cfg.RateLimit != nil {
		m.installLimiter(cfg.Name, *cfg.RateLimit)
	}
	if cfg.MaxConcurrentCalls > 0 {
		m.installSemaphore(cfg.Name, cfg.MaxConcurrentCalls)
	}

	if cfg.Transport == TransportStdio {
		m.spawnReaper(cfg.Name, b)
	}
	return nil
}

// spawnReaper watches a stdio backend's child process and marks it Stopped
// the moment it exits, instead of waiting for the next health probe.
func (m *Manager) spawnReaper(name string, b gwbackend.Backend) {
	go func() {
		_, ok := b.WaitForExit(context.Background())
		if ok && b.State() != gwbackend.StateStopped {
			m.log.Warn("backend process exited unexpectedly", "backend", name)
			b.SetState(gwbackend.StateStopped)
		}
	}()
}

func buildBackend(cfg Config) (gwbackend.Backend, error) {
	switch cfg.Transport {
	case TransportStdio:
		return gwbackend.NewStdioBackend(gwbackend.StdioConfig{
			Name: cfg.Name, Command: cfg.Command, Args: cfg.Args, Env: cfg.Env, Dir: cfg.Dir,
		}), nil
	case TransportStreamableHTTP:
		return gwbackend.NewHTTPBackend(gwbackend.HTTPConfig{
			Name: cfg.Name, URL: cfg.URL, Headers: cfg.Headers, MaxRetries: cfg.MaxRetries,
		}), nil
	case TransportComposite:
		tools := make([]gwbackend.CompositeTool, 0, len(cfg.CompositeTools))
		for _, t := range cfg.CompositeTools {
			tools = append(tools, gwbackend.CompositeTool{
				Name: t.Name, Description: t.Description, Code: t.Code, InputSchema: t.InputSchema,
			})
		}
		return gwbackend.NewCompositeBackend(cfg.Name, tools), nil
	default:
		return nil, fmt.Errorf("backend %s: unknown transport %q", cfg.Name, cfg.Transport)
	}
}

func (m *Manager) installLimiter(name string, cfg RateLimitConfig) {
	if cfg.MaxCalls <= 0 || cfg.Window <= 0 {
		return
	}
	m.limiterMu.Lock()
	defer m.limiterMu.Unlock()
	m.limiters[name] = rate.NewLimiter(rate.Every(cfg.Window/time.Duration(cfg.MaxCalls)), cfg.MaxCalls)
}

func (m *Manager) installSemaphore(name string, max int) {
	m.semMu.Lock()
	defer m.semMu.Unlock()
	m.sems[name] = make(chan struct{}, max)
}

// CallTool dispatches originalName to backendName with retry/rate-limit/
// concurrency discipline, per the manager's documented retry loop.
func (m *Manager) CallTool(ctx context.Context, backendName, originalName string, args map[string]any) (any, error) {
	guard := newCallGuard(&m.inFlight)
	defer guard.Close()

	if limiter := m.limiterFor(backendName); limiter != nil && !limiter.Allow() {
		return nil, fmt.Errorf("backend %s: %w", backendName, ErrRateLimited)
	}

	if sem := m.semaphoreFor(backendName); sem != nil {
		timeout := m.semaphoreTimeout(backendName)
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
		case <-time.After(timeout):
			return nil, fmt.Errorf("backend %s: %w", backendName, ErrConcurrencyLimited)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	delays := m.retryDelays(backendName)
	var lastState gwbackend.State
	found := false
	for attempt := 0; attempt <= len(delays); attempt++ {
		m.mu.RLock()
		b, ok := m.backends[backendName]
		m.mu.RUnlock()

		if ok {
			found = true
			lastState = b.State()
			switch lastState {
			case gwbackend.StateHealthy:
				return b.CallTool(ctx, originalName, args)
			case gwbackend.StateStarting:
				if attempt < len(delays) {
					m.sleep(ctx, delays[attempt])
					continue
				}
			default:
				return nil, fmt.Errorf("backend %s: %w (state=%s)", backendName, ErrBackendUnavailable, lastState)
			}
		} else if attempt < len(delays) {
			m.sleep(ctx, delays[attempt])
			continue
		}
		break
	}

	if found {
		return nil, fmt.Errorf("backend %s: %w after %d retries", backendName, ErrBackendStarting, len(delays))
	}
	return nil, fmt.Errorf("backend %s: %w after %d retries", backendName, ErrBackendNotFound, len(delays))
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (m *Manager) limiterFor(name string) *rate.Limiter {
	m.limiterMu.Lock()
	defer m.limiterMu.Unlock()
	return m.limiters[name]
}

func (m *Manager) semaphoreFor(name string) chan struct{} {
	m.semMu.Lock()
	defer m.semMu.Unlock()
	return m.sems[name]
}

func (m *Manager) semaphoreTimeout(name string) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if cfg, ok := m.configs[name]; ok && cfg.SemaphoreTimeout > 0 {
		return cfg.SemaphoreTimeout
	}
	return 5 * time.Second
}

func (m *Manager) retryDelays(name string) []time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if cfg, ok := m.configs[name]; ok {
		return cfg.Retry.Delays()
	}
	return append([]time.Duration(nil), defaultRetryDelays...)
}

// RestartBackend stops and removes backendName, then starts it fresh from
// its stored config. In-flight calls holding the old handle still complete
// against the old transport.
func (m *Manager) RestartBackend(ctx context.Context, name string) error {
	m.mu.Lock()
	old, existed := m.backends[name]
	cfg, hasCfg := m.configs[name]
	delete(m.backends, name)
	m.mu.Unlock()

	if existed {
		_ = old.Stop(ctx)
		m.registry.Remove(name)
	}
	if !hasCfg {
		return fmt.Errorf("restart backend %s: no stored config", name)
	}
	return m.startBackend(ctx, cfg)
}

// AddBackend registers (or replaces) a dynamic backend, stopping any prior
// instance of the same name first so its child is never orphaned.
func (m *Manager) AddBackend(ctx context.Context, cfg Config) error {
	m.mu.Lock()
	if old, ok := m.backends[cfg.Name]; ok {
		delete(m.backends, cfg.Name)
		m.mu.Unlock()
		_ = old.Stop(ctx)
		m.registry.Remove(cfg.Name)
	} else {
		m.mu.Unlock()
	}

	m.mu.Lock()
	m.configs[cfg.Name] = cfg
	m.mu.Unlock()

	if err := m.startBackend(ctx, cfg); err != nil {
		return err
	}
	m.dynamicMu.Lock()
	m.dynamic[cfg.Name] = struct{}{}
	m.dynamicMu.Unlock()
	return nil
}

// RemoveBackend stops, deregisters, and forgets a dynamically-added backend.
func (m *Manager) RemoveBackend(ctx context.Context, name string) error {
	m.mu.Lock()
	b, ok := m.backends[name]
	cfg := m.configs[name]
	delete(m.backends, name)
	delete(m.configs, name)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("backend %s: not found", name)
	}

	_ = b.Stop(ctx)
	m.registry.Remove(name)
	m.prereqs.Stop(ctx, name, cfg.Prerequisite)

	m.dynamicMu.Lock()
	delete(m.dynamic, name)
	m.dynamicMu.Unlock()
	return nil
}

// IsDynamic reports whether name was registered at runtime rather than from
// the static config file.
func (m *Manager) IsDynamic(name string) bool {
	m.dynamicMu.Lock()
	defer m.dynamicMu.Unlock()
	_, ok := m.dynamic[name]
	return ok
}

// DynamicCount returns the number of currently-registered dynamic backends.
func (m *Manager) DynamicCount() int {
	m.dynamicMu.Lock()
	defer m.dynamicMu.Unlock()
	return len(m.dynamic)
}

// BackendConfig returns the stored config for name, if any, for callers that
// need to inspect its required keys or environment without starting it.
func (m *Manager) BackendConfig(name string) (Config, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[name]
	return cfg, ok
}

// GetConfiguredNames returns every backend name with a stored config, from the
// static config or a runtime registration, regardless of whether it is
// currently running.
func (m *Manager) GetConfiguredNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.configs))
	for name := range m.configs {
		out = append(out, name)
	}
	return out
}

// TryStartFromConfig attempts to start a pending (never-started) backend.
// Unlike RestartBackend, it never stops/removes anything first.
func (m *Manager) TryStartFromConfig(ctx context.Context, name string) error {
	m.mu.RLock()
	_, running := m.backends[name]
	cfg, hasCfg := m.configs[name]
	m.mu.RUnlock()
	if running {
		return nil
	}
	if !hasCfg {
		return fmt.Errorf("backend %s: no stored config", name)
	}
	return m.startBackend(ctx, cfg)
}

// PingBackend uses DiscoverTools as the lightweight health probe.
func (m *Manager) PingBackend(ctx context.Context, name string) error {
	m.mu.RLock()
	b, ok := m.backends[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("backend %s: not running", name)
	}
	_, err := b.DiscoverTools(ctx)
	return err
}

// SetBackendState is used by the health supervisor to move a backend between
// Healthy/Unhealthy without touching the manager's other bookkeeping.
func (m *Manager) SetBackendState(name string, state gwbackend.State) {
	m.mu.RLock()
	b, ok := m.backends[name]
	m.mu.RUnlock()
	if ok {
		b.SetState(state)
	}
}

// BackendState returns the current state of name, if it is running.
func (m *Manager) BackendState(name string) (gwbackend.State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.backends[name]
	if !ok {
		return 0, false
	}
	return b.State(), true
}

// Statuses returns a point-in-time snapshot of every running backend.
func (m *Manager) Statuses() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Status, 0, len(m.backends))
	for name, b := range m.backends {
		out = append(out, Status{Name: name, State: b.State()})
	}
	return out
}

// StopAll snapshots and clears the backends map so no new call can dispatch,
// drains in-flight calls up to the configured timeout, then stops every
// backend and its managed prerequisites in parallel.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	snapshot := m.backends
	m.backends = make(map[string]gwbackend.Backend)
	configs := m.configs
	m.mu.Unlock()

	deadline := time.Now().Add(m.drainTimeout)
	for m.inFlight.Load() > 0 && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}
	if m.inFlight.Load() > 0 {
		m.log.Warn("drain timeout exceeded, stopping backends with calls still in flight", "in_flight", m.inFlight.Load())
	}

	var wg sync.WaitGroup
	for name, b := range snapshot {
		wg.Add(1)
		go func(name string, b gwbackend.Backend) {
			defer wg.Done()
			if err := b.Stop(ctx); err != nil {
				m.log.Warn("error stopping backend", "backend", name, "err", err)
			}
			if cfg, ok := configs[name]; ok {
				m.prereqs.Stop(ctx, name, cfg.Prerequisite)
			}
		}(name, b)
	}
	wg.Wait()
}
