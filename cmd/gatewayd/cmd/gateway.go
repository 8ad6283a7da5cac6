package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jonwraymond/metatools-mcp/internal/admin"
	"github.com/jonwraymond/metatools-mcp/internal/backendmgr"
	"github.com/jonwraymond/metatools-mcp/internal/config"
	"github.com/jonwraymond/metatools-mcp/internal/gwcache"
	"github.com/jonwraymond/metatools-mcp/internal/gwhandlers"
	"github.com/jonwraymond/metatools-mcp/internal/gwserver"
	"github.com/jonwraymond/metatools-mcp/internal/health"
	"github.com/jonwraymond/metatools-mcp/internal/metaproviders"
	"github.com/jonwraymond/metatools-mcp/internal/middleware"
	"github.com/jonwraymond/metatools-mcp/internal/prereq"
	"github.com/jonwraymond/metatools-mcp/internal/provider"
	"github.com/jonwraymond/metatools-mcp/internal/registry"
	"github.com/jonwraymond/metatools-mcp/internal/sandbox"
	"github.com/jonwraymond/metatools-mcp/internal/tracker"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// gateway holds every long-lived component the daemon and --direct modes
// both need: the backend manager and its registry/tracker, the meta-tool
// MCP server built over them, and the supporting subsystems (health
// supervisor, cache, admin API, config watcher, usage syncer) that only
// the daemon actually runs.
type gateway struct {
	cfg config.AppConfig
	log *slog.Logger

	registry *registry.Registry
	tracker  *tracker.Tracker
	manager  *backendmgr.Manager
	sandbox  *sandbox.Sandbox
	handlers *gwhandlers.Handlers
	server   *gwserver.Server
	cache    *gwcache.Cache
}

// buildGateway assembles every component from cfg but does not start
// backends or background loops; call start to do that.
func buildGateway(ctx context.Context, cfg config.AppConfig, log *slog.Logger) (*gateway, error) {
	if log == nil {
		log = slog.Default()
	}

	reg := registry.New()
	trk := tracker.New(0)

	var containerRuntime prereq.ContainerRuntime
	for _, b := range cfg.Gateway.Backends {
		if b.Prerequisite.Kind == "container" {
			rt, err := prereq.NewDockerRuntime("")
			if err != nil {
				return nil, fmt.Errorf("docker runtime: %w", err)
			}
			containerRuntime = rt
			break
		}
	}
	prereqMgr := prereq.New(containerRuntime)

	mgr := backendmgr.New(reg, prereqMgr, 10*time.Second, log)

	var sb *sandbox.Sandbox
	if cfg.Gateway.Sandbox.Enabled {
		built, err := sandbox.New(ctx, sandbox.Config{
			ModulePath: cfg.Gateway.Sandbox.ModulePath,
		})
		if err != nil {
			return nil, fmt.Errorf("build sandbox: %w", err)
		}
		sb = built
	}

	h := gwhandlers.New(reg, mgr, trk, sb, gwhandlers.Config{
		AllowRuntimeRegistration: cfg.Gateway.AllowRuntimeRegistration,
		MaxDynamicBackends:       cfg.Gateway.MaxDynamicBackends,
		SandboxEnabled:           cfg.Gateway.Sandbox.Enabled,
		SandboxTimeoutMs:         int(cfg.Gateway.Sandbox.Timeout / time.Millisecond),
		SandboxMaxOutputSize:     cfg.Gateway.Sandbox.MaxOutputSize,
		MaxConcurrentSandboxes:   cfg.Gateway.Sandbox.MaxConcurrentSandboxes,
	})

	providerReg := provider.NewRegistry()
	if err := metaproviders.Register(providerReg, h); err != nil {
		return nil, fmt.Errorf("register meta-tools: %w", err)
	}

	chain := middleware.NewChain()
	built, err := middleware.BuildChainFromConfig(middleware.DefaultRegistry(), &cfg.Middleware)
	if err == nil && built != nil {
		chain = built
	}
	if err := chain.ApplyToRegistry(providerReg); err != nil {
		return nil, fmt.Errorf("apply middleware chain: %w", err)
	}

	srv, err := gwserver.New(providerReg, Version)
	if err != nil {
		return nil, fmt.Errorf("build mcp server: %w", err)
	}

	return &gateway{
		cfg:      cfg,
		log:      log,
		registry: reg,
		tracker:  trk,
		manager:  mgr,
		sandbox:  sb,
		handlers: h,
		server:   srv,
		cache:    gwcache.New(cfg.Gateway.CachePath),
	}, nil
}

// start loads the persisted cache, starts every configured backend, and
// spins up the supervisor/admin/syncer background loops. It returns
// a shutdown function the caller must invoke exactly once.
func (g *gateway) start(ctx context.Context) (shutdown func(context.Context) error, err error) {
	configured := make(map[string]string, len(g.cfg.Gateway.Backends))
	for _, b := range g.cfg.Gateway.Backends {
		configured[b.Name] = b.Namespace
	}
	if n, loadErr := g.cache.Load(g.registry, g.tracker, configured); loadErr != nil {
		g.log.Warn("cache load failed, starting cold", "err", loadErr)
	} else if n > 0 {
		g.log.Info("loaded cached tool catalog", "tools", n)
	}

	backendCfgs := make([]backendmgr.Config, 0, len(g.cfg.Gateway.Backends))
	for _, b := range g.cfg.Gateway.Backends {
		backendCfgs = append(backendCfgs, backendConfigFromGateway(b))
	}
	g.manager.StartAll(ctx, backendCfgs)

	persister := cachePersisterFunc(func(ctx context.Context) error {
		return g.cache.Save(g.registry, g.tracker)
	})

	supervisor := health.New(g.manager, persister, health.Config{
		Interval:              g.cfg.Gateway.HealthSupervisor.Interval,
		Timeout:               g.cfg.Gateway.HealthSupervisor.Timeout,
		FailureThreshold:      g.cfg.Gateway.HealthSupervisor.FailureThreshold,
		MaxRestarts:           g.cfg.Gateway.HealthSupervisor.MaxRestarts,
		RestartWindow:         g.cfg.Gateway.HealthSupervisor.RestartWindow,
		RestartInitialBackoff: g.cfg.Gateway.HealthSupervisor.RestartInitialBackoff,
		RestartMaxBackoff:     g.cfg.Gateway.HealthSupervisor.RestartMaxBackoff,
		RestartTimeout:        g.cfg.Gateway.HealthSupervisor.RestartTimeout,
		RecoveryMultiplier:    g.cfg.Gateway.HealthSupervisor.RecoveryMultiplier,
	}, g.log)
	go supervisor.Run(ctx)

	var closers []func() error

	if syncer, closeFn, ok, syncErr := g.cfg.NewUsageSyncer(g.tracker, time.Minute, g.log); syncErr != nil {
		g.log.Warn("usage syncer disabled", "err", syncErr)
	} else if ok {
		go syncer.Run(ctx)
		closers = append(closers, closeFn)
	}

	var adminSrv *admin.Server
	if g.cfg.Admin.Enabled {
		adminSrv, err = admin.New(admin.Config{
			Listen:       g.cfg.Admin.Listen,
			AllowedCIDRs: g.cfg.Admin.AllowedCIDRs,
		}, g.manager, g.log)
		if err != nil {
			return nil, fmt.Errorf("build admin server: %w", err)
		}
		go func() {
			if err := adminSrv.Serve(ctx); err != nil {
				g.log.Warn("admin server stopped", "err", err)
			}
		}()
	}

	shutdown = func(ctx context.Context) error {
		g.manager.StopAll(ctx)
		if g.sandbox != nil {
			_ = g.sandbox.Close(ctx)
		}
		if err := g.cache.Save(g.registry, g.tracker); err != nil {
			g.log.Warn("final cache save failed", "err", err)
		}
		for _, c := range closers {
			_ = c()
		}
		return nil
	}
	return shutdown, nil
}

// handleSession serves one accepted daemon connection as an MCP session
// sharing this gateway's backend manager and registry.
func (g *gateway) handleSession(ctx context.Context, conn net.Conn) {
	if err := g.server.Run(ctx, &mcp.StdioTransport{Reader: conn, Writer: conn}); err != nil && ctx.Err() == nil {
		g.log.Warn("session ended with error", "err", err)
	}
}

type cachePersisterFunc func(ctx context.Context) error

func (f cachePersisterFunc) Save(ctx context.Context) error { return f(ctx) }

func backendConfigFromGateway(b config.GatewayBackendConfig) backendmgr.Config {
	env := make([]string, 0, len(b.Env))
	for k, v := range b.Env {
		env = append(env, k+"="+v)
	}

	var rl *backendmgr.RateLimitConfig
	if b.RateLimit.RequestsPerSecond > 0 {
		rl = &backendmgr.RateLimitConfig{
			MaxCalls: b.RateLimit.Burst,
			Window:   time.Second,
		}
	}

	return backendmgr.Config{
		Name:               b.Name,
		Transport:          backendmgr.Transport(b.Transport),
		Namespace:          b.Namespace,
		Command:            b.Command,
		Args:               b.Args,
		Env:                env,
		URL:                b.URL,
		Headers:            b.Headers,
		RequiredKeys:       b.RequiredKeys,
		MaxConcurrentCalls: b.MaxConcurrentCalls,
		SemaphoreTimeout:   b.SemaphoreTimeout,
		Retry: backendmgr.RetryConfig{
			MaxRetries:        b.Retry.MaxRetries,
			InitialDelay:      b.Retry.InitialDelay,
			MaxDelay:          b.Retry.MaxDelay,
			BackoffMultiplier: b.Retry.BackoffMultiplier,
		},
		Prerequisite: prereq.Config{
			Kind:          prereq.Kind(b.Prerequisite.Kind),
			Command:       b.Prerequisite.StartCommand,
			Args:          b.Prerequisite.StartArgs,
			ProcessMatch:  b.Prerequisite.ProcessName,
			ContainerName: b.Prerequisite.ContainerName,
			StartupDelay:  b.Prerequisite.WaitTimeout,
		},
		RateLimit: rl,
	}
}
