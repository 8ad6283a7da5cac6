// Package config defines application configuration models.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jonwraymond/metatools-mcp/internal/middleware"
)

// AppConfig holds all metatools-mcp configuration loaded from files/env/flags.
type AppConfig struct {
	Server     ServerConfig                `koanf:"server"`
	Transport  TransportConfig             `koanf:"transport"`
	Search     AppSearchConfig             `koanf:"search"`
	Execution  ExecutionConfig             `koanf:"execution"`
	Secrets    SecretsConfig               `koanf:"secrets"`
	State      StateConfig                 `koanf:"state"`
	Middleware middleware.MiddlewareConfig `koanf:"middleware"`
	Admin      AdminConfig                 `koanf:"admin"`
	Gateway    GatewayConfig               `koanf:"gateway"`
}

// AdminConfig gates the optional HTTP admin API (backend/health status,
// read-only diagnostics) behind a listen address and a CIDR allowlist.
type AdminConfig struct {
	Enabled      bool     `koanf:"enabled"`
	Listen       string   `koanf:"listen"`
	AllowedCIDRs []string `koanf:"allowed_cidrs"`
}

// GatewayConfig holds the aggregation-daemon specific settings: the socket
// the background daemon listens on, its persistent cache location, the
// backends it aggregates, and the health supervisor's tuning knobs.
type GatewayConfig struct {
	SocketPath               string                 `koanf:"socket_path"`
	PIDFile                  string                 `koanf:"pid_file"`
	LockFile                 string                 `koanf:"lock_file"`
	CachePath                string                 `koanf:"cache_path"`
	IdleTimeout              time.Duration          `koanf:"idle_timeout"`
	Backends                 []GatewayBackendConfig `koanf:"backends"`
	HealthSupervisor         GatewayHealthConfig    `koanf:"health_supervisor"`
	CompositeTools           []CompositeToolConfig  `koanf:"composite_tools"`
	Sandbox                  GatewaySandboxConfig   `koanf:"sandbox"`
	AllowRuntimeRegistration bool                   `koanf:"allow_runtime_registration"`
	MaxDynamicBackends       int                    `koanf:"max_dynamic_backends"`
}

// GatewaySandboxConfig tunes call_tool_chain's WASM-sandbox fallback path.
type GatewaySandboxConfig struct {
	Enabled                bool          `koanf:"enabled"`
	ModulePath             string        `koanf:"module_path"`
	Timeout                time.Duration `koanf:"timeout"`
	MaxOutputSize          int           `koanf:"max_output_size"`
	MaxConcurrentSandboxes int           `koanf:"max_concurrent_sandboxes"`
}

// GatewayBackendConfig describes one aggregated MCP server: how to reach it,
// how to gate it on a prerequisite, and how to bound its concurrency/retries.
// It carries both koanf and yaml tags: koanf for the normal load pipeline,
// yaml so tooling (e.g. scripts/import-mcp-gateway-backends.go) can emit a
// config fragment by marshalling the struct directly instead of hand-rolling
// a parallel schema that can drift from this one.
type GatewayBackendConfig struct {
	Name               string            `koanf:"name" yaml:"name"`
	Namespace          string            `koanf:"namespace" yaml:"namespace,omitempty"`
	Transport          string            `koanf:"transport" yaml:"transport"`
	Command            string            `koanf:"command" yaml:"command,omitempty"`
	Args               []string          `koanf:"args" yaml:"args,omitempty"`
	Env                map[string]string `koanf:"env" yaml:"env,omitempty"`
	URL                string            `koanf:"url" yaml:"url,omitempty"`
	Headers            map[string]string `koanf:"headers" yaml:"headers,omitempty"`
	Prerequisite       PrerequisiteConfig `koanf:"prerequisite" yaml:"prerequisite,omitempty"`
	RequiredKeys       []string          `koanf:"required_keys" yaml:"required_keys,omitempty"`
	MaxConcurrentCalls int               `koanf:"max_concurrent_calls" yaml:"max_concurrent_calls,omitempty"`
	SemaphoreTimeout   time.Duration     `koanf:"semaphore_timeout" yaml:"semaphore_timeout,omitempty"`
	RateLimit          RateLimitConfig   `koanf:"rate_limit" yaml:"rate_limit,omitempty"`
	Retry              RetryConfig       `koanf:"retry" yaml:"retry,omitempty"`
}

// PrerequisiteConfig describes a process or container that must be running
// before a backend is started.
type PrerequisiteConfig struct {
	Kind          string        `koanf:"kind" yaml:"kind,omitempty"`
	ProcessName   string        `koanf:"process_name" yaml:"process_name,omitempty"`
	ContainerName string        `koanf:"container_name" yaml:"container_name,omitempty"`
	StartCommand  string        `koanf:"start_command" yaml:"start_command,omitempty"`
	StartArgs     []string      `koanf:"start_args" yaml:"start_args,omitempty"`
	WaitTimeout   time.Duration `koanf:"wait_timeout" yaml:"wait_timeout,omitempty"`
}

// RateLimitConfig bounds the call rate a single backend will accept.
type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second" yaml:"requests_per_second,omitempty"`
	Burst             int     `koanf:"burst" yaml:"burst,omitempty"`
}

// RetryConfig controls how CallTool retries a backend on transient errors.
type RetryConfig struct {
	MaxRetries        int           `koanf:"max_retries" yaml:"max_retries,omitempty"`
	InitialDelay      time.Duration `koanf:"initial_delay" yaml:"initial_delay,omitempty"`
	MaxDelay          time.Duration `koanf:"max_delay" yaml:"max_delay,omitempty"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier" yaml:"backoff_multiplier,omitempty"`
}

// CompositeToolConfig defines a single meta-tool that fans a call out to
// several backend tools and aggregates their results.
type CompositeToolConfig struct {
	Name        string              `koanf:"name"`
	Description string              `koanf:"description"`
	Steps       []CompositeStepConfig `koanf:"steps"`
}

// CompositeStepConfig names one backend tool invoked as part of a composite call.
type CompositeStepConfig struct {
	Backend string `koanf:"backend"`
	Tool    string `koanf:"tool"`
}

// GatewayHealthConfig tunes the health supervisor's probe cadence, circuit
// breaker thresholds, and restart backoff.
type GatewayHealthConfig struct {
	Interval              time.Duration `koanf:"interval"`
	Timeout               time.Duration `koanf:"timeout"`
	FailureThreshold      int           `koanf:"failure_threshold"`
	MaxRestarts           int           `koanf:"max_restarts"`
	RestartWindow         time.Duration `koanf:"restart_window"`
	RestartInitialBackoff time.Duration `koanf:"restart_initial_backoff"`
	RestartMaxBackoff     time.Duration `koanf:"restart_max_backoff"`
	RestartTimeout        time.Duration `koanf:"restart_timeout"`
	RecoveryMultiplier    float64       `koanf:"recovery_multiplier"`
}

// ServerConfig holds server identity settings.
type ServerConfig struct {
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
}

// TransportConfig holds transport layer settings.
type TransportConfig struct {
	Type       string           `koanf:"type"`
	HTTP       HTTPConfig       `koanf:"http"`
	Streamable StreamableConfig `koanf:"streamable"`
}

// StreamableConfig holds Streamable HTTP transport settings.
type StreamableConfig struct {
	Stateless      bool          `koanf:"stateless"`
	JSONResponse   bool          `koanf:"json_response"`
	SessionTimeout time.Duration `koanf:"session_timeout"`
}

// HTTPConfig holds HTTP transport settings.
type HTTPConfig struct {
	Host string    `koanf:"host"`
	Port int       `koanf:"port"`
	TLS  TLSConfig `koanf:"tls"`
}

// TLSConfig holds TLS settings.
type TLSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	CertFile string `koanf:"cert"`
	KeyFile  string `koanf:"key"`
}

// AppSearchConfig holds search strategy settings.
type AppSearchConfig struct {
	Strategy string               `koanf:"strategy"`
	BM25     BM25Config           `koanf:"bm25"`
	Semantic SemanticSearchConfig `koanf:"semantic"`
}

// BM25Config holds BM25 search settings.
type BM25Config struct {
	NameBoost      int `koanf:"name_boost"`
	NamespaceBoost int `koanf:"namespace_boost"`
	TagsBoost      int `koanf:"tags_boost"`
	MaxDocs        int `koanf:"max_docs"`
	MaxDocTextLen  int `koanf:"max_doctext_len"`
}

// SemanticSearchConfig configures semantic or hybrid search.
type SemanticSearchConfig struct {
	Embedder string         `koanf:"embedder"`
	Config   map[string]any `koanf:"config"`
	Weight   float64        `koanf:"weight"`
}

// ExecutionConfig holds tool execution settings.
type ExecutionConfig struct {
	Timeout       time.Duration `koanf:"timeout"`
	MaxToolCalls  int           `koanf:"max_tool_calls"`
	MaxChainSteps int           `koanf:"max_chain_steps"`
}

// StateConfig holds persistent runtime configuration.
type StateConfig struct {
	RuntimeLimitsDB string `koanf:"runtime_limits_db"`
}

// SecretsConfig configures secret providers and resolution behavior.
type SecretsConfig struct {
	Strict    bool                             `koanf:"strict"`
	Providers map[string]SecretProviderConfig `koanf:"providers"`
}

// SecretProviderConfig configures a single secret provider instance.
type SecretProviderConfig struct {
	Enabled bool           `koanf:"enabled"`
	Config  map[string]any `koanf:"config"`
}

var validAppTransports = map[string]bool{
	"stdio":      true,
	"sse":        true,
	"streamable": true,
}

var validAppSearchStrategies = map[string]bool{
	"bm25":     true,
	"lexical":  true,
	"semantic": true,
	"hybrid":   true,
}

// DefaultAppConfig returns the default configuration.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Name:    "metatools-mcp",
			Version: "dev",
		},
		Transport: TransportConfig{
			Type: "stdio",
			HTTP: HTTPConfig{
				Host: "0.0.0.0",
				Port: 8080,
			},
			Streamable: StreamableConfig{
				Stateless:      false,
				JSONResponse:   false,
				SessionTimeout: 30 * time.Minute,
			},
		},
		Search: AppSearchConfig{
			Strategy: "lexical",
			BM25: BM25Config{
				NameBoost:      3,
				NamespaceBoost: 2,
				TagsBoost:      2,
				MaxDocs:        0,
				MaxDocTextLen:  0,
			},
			Semantic: SemanticSearchConfig{
				Embedder: "",
				Config:   map[string]any{},
				Weight:   0.5,
			},
		},
		Execution: ExecutionConfig{
			Timeout:       30 * time.Second,
			MaxToolCalls:  64,
			MaxChainSteps: 8,
		},
		Secrets: SecretsConfig{
			Strict:    true,
			Providers: map[string]SecretProviderConfig{},
		},
		State: StateConfig{
			RuntimeLimitsDB: "",
		},
		Middleware: middleware.MiddlewareConfig{},
		Admin: AdminConfig{
			Enabled:      false,
			Listen:       "127.0.0.1:0",
			AllowedCIDRs: []string{"127.0.0.1/32", "::1/128"},
		},
		Gateway: GatewayConfig{
			SocketPath:  defaultGatewaySocketPath(),
			PIDFile:     defaultGatewayPIDPath(),
			LockFile:    defaultGatewayLockPath(),
			CachePath:   defaultGatewayCachePath(),
			IdleTimeout: 10 * time.Minute,
			HealthSupervisor: GatewayHealthConfig{
				Interval:              30 * time.Second,
				Timeout:               5 * time.Second,
				FailureThreshold:      3,
				MaxRestarts:           5,
				RestartWindow:         5 * time.Minute,
				RestartInitialBackoff: time.Second,
				RestartMaxBackoff:     30 * time.Second,
				RestartTimeout:        15 * time.Second,
				RecoveryMultiplier:    2,
			},
			Sandbox: GatewaySandboxConfig{
				Enabled:                false,
				Timeout:                10 * time.Second,
				MaxOutputSize:          200_000,
				MaxConcurrentSandboxes: 4,
			},
			AllowRuntimeRegistration: false,
			MaxDynamicBackends:       8,
		},
	}
}

// Validate checks the configuration for errors.
func (c *AppConfig) Validate() error {
	if !validAppTransports[c.Transport.Type] {
		return fmt.Errorf("invalid transport type %q, must be one of: stdio, sse, streamable", c.Transport.Type)
	}

	if c.Transport.Type != "stdio" {
		if c.Transport.HTTP.Port <= 0 || c.Transport.HTTP.Port > 65535 {
			return fmt.Errorf("invalid port %d, must be 1-65535", c.Transport.HTTP.Port)
		}
	}

	if !validAppSearchStrategies[c.Search.Strategy] {
		return fmt.Errorf("invalid search strategy %q, must be one of: bm25, lexical, semantic, hybrid", c.Search.Strategy)
	}

	if c.Execution.Timeout < 0 {
		return errors.New("execution timeout cannot be negative")
	}
	if c.Execution.MaxToolCalls < 0 {
		return errors.New("execution max tool calls cannot be negative")
	}
	if c.Execution.MaxChainSteps < 0 {
		return errors.New("execution max chain steps cannot be negative")
	}

	if c.Admin.Enabled {
		if strings.TrimSpace(c.Admin.Listen) == "" {
			return errors.New("admin listen address is required when admin is enabled")
		}
		for _, cidr := range c.Admin.AllowedCIDRs {
			if _, _, err := net.ParseCIDR(cidr); err != nil {
				return fmt.Errorf("admin allowed_cidrs: invalid cidr %q: %w", cidr, err)
			}
		}
	}

	seenGatewayNames := make(map[string]struct{}, len(c.Gateway.Backends))
	for _, b := range c.Gateway.Backends {
		name := strings.TrimSpace(b.Name)
		if name == "" {
			return errors.New("gateway backend name is required")
		}
		if _, exists := seenGatewayNames[name]; exists {
			return fmt.Errorf("duplicate gateway backend name %q", name)
		}
		seenGatewayNames[name] = struct{}{}
		switch b.Transport {
		case "stdio":
			if strings.TrimSpace(b.Command) == "" {
				return fmt.Errorf("gateway backend %q: stdio transport requires a command", name)
			}
		case "http", "sse", "streamable":
			if strings.TrimSpace(b.URL) == "" {
				return fmt.Errorf("gateway backend %q: %s transport requires a url", name, b.Transport)
			}
		default:
			return fmt.Errorf("gateway backend %q: invalid transport %q", name, b.Transport)
		}
		if b.MaxConcurrentCalls > maxGatewayConcurrentCalls {
			return fmt.Errorf("gateway backend %q: max_concurrent_calls %d exceeds limit %d", name, b.MaxConcurrentCalls, maxGatewayConcurrentCalls)
		}
	}

	if c.Gateway.Sandbox.MaxConcurrentSandboxes < 1 {
		return errors.New("gateway sandbox max_concurrent_sandboxes must be at least 1")
	}

	return nil
}

// maxGatewayConcurrentCalls bounds GatewayBackendConfig.MaxConcurrentCalls so
// a misconfigured backend cannot request an unbounded semaphore.
const maxGatewayConcurrentCalls = 10_000

// ToSearchConfig converts AppSearchConfig to the runtime SearchConfig consumed
// by the registry's search index builder.
func (c AppSearchConfig) ToSearchConfig() SearchConfig {
	return SearchConfig{
		Strategy:           c.Strategy,
		BM25NameBoost:      c.BM25.NameBoost,
		BM25NamespaceBoost: c.BM25.NamespaceBoost,
		BM25TagsBoost:      c.BM25.TagsBoost,
		BM25MaxDocs:        c.BM25.MaxDocs,
		BM25MaxDocTextLen:  c.BM25.MaxDocTextLen,
		SemanticEmbedder:   c.Semantic.Embedder,
		SemanticConfig:     c.Semantic.Config,
		SemanticWeight:     c.Semantic.Weight,
	}
}
