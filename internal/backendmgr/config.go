package backendmgr

import (
	"time"

	"github.com/jonwraymond/metatools-mcp/internal/prereq"
)

// Transport selects a backend's wire protocol.
type Transport string

const (
	TransportStdio          Transport = "stdio"
	TransportStreamableHTTP Transport = "streamable-http"
	TransportComposite      Transport = "composite"
)

// RetryConfig controls a backend's call-dispatch retry schedule.
type RetryConfig struct {
	MaxRetries       int
	InitialDelay     time.Duration
	MaxDelay         time.Duration
	BackoffMultiplier float64
}

// Delays materializes the concrete backoff sequence for this config,
// falling back to the package default [500ms, 1s, 2s] when unset.
func (r RetryConfig) Delays() []time.Duration {
	if r.MaxRetries <= 0 {
		return append([]time.Duration(nil), defaultRetryDelays...)
	}
	delays := make([]time.Duration, r.MaxRetries)
	delay := r.InitialDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	mult := r.BackoffMultiplier
	if mult <= 0 {
		mult = 2
	}
	for i := range delays {
		delays[i] = delay
		delay = time.Duration(float64(delay) * mult)
		if r.MaxDelay > 0 && delay > r.MaxDelay {
			delay = r.MaxDelay
		}
	}
	return delays
}

var defaultRetryDelays = []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}

// RateLimitConfig bounds the number of calls per window for one backend.
type RateLimitConfig struct {
	MaxCalls int
	Window   time.Duration
}

// CompositeToolConfig mirrors gwbackend.CompositeTool at the config layer.
type CompositeToolConfig struct {
	Name        string
	Description string
	Code        string
	InputSchema map[string]any
}

// Config is everything the manager needs to start and operate one backend.
type Config struct {
	Name      string
	Transport Transport
	Namespace string

	// stdio
	Command string
	Args    []string
	Env     []string
	Dir     string

	// streamable-http
	URL        string
	Headers    map[string]string
	MaxRetries int

	// composite
	CompositeTools []CompositeToolConfig

	Timeout             time.Duration
	RequiredKeys        []string
	MaxConcurrentCalls  int
	SemaphoreTimeout    time.Duration
	Retry               RetryConfig
	Prerequisite        prereq.Config
	RateLimit           *RateLimitConfig
}
