// Package health runs the gateway's periodic backend probing, circuit
// breaker, and bounded auto-restart loop.
package health

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jonwraymond/metatools-mcp/internal/backendmgr"
	"github.com/jonwraymond/metatools-mcp/internal/gwbackend"
)

// Manager is the subset of backendmgr.Manager the supervisor needs.
type Manager interface {
	PingBackend(ctx context.Context, name string) error
	BackendState(name string) (gwbackend.State, bool)
	SetBackendState(name string, state gwbackend.State)
	RestartBackend(ctx context.Context, name string) error
	TryStartFromConfig(ctx context.Context, name string) error
	GetConfiguredNames() []string
	Statuses() []backendmgr.Status
}

// CachePersister persists the current tool catalog after a successful restart.
type CachePersister interface {
	Save(ctx context.Context) error
}

// Config controls probe cadence, failure thresholds, and restart backoff.
type Config struct {
	Interval             time.Duration
	Timeout              time.Duration
	FailureThreshold     int
	MaxRestarts          int
	RestartWindow        time.Duration
	RestartInitialBackoff time.Duration
	RestartMaxBackoff     time.Duration
	RestartTimeout        time.Duration
	RecoveryMultiplier    float64
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.MaxRestarts <= 0 {
		c.MaxRestarts = 5
	}
	if c.RestartWindow <= 0 {
		c.RestartWindow = 5 * time.Minute
	}
	if c.RestartInitialBackoff <= 0 {
		c.RestartInitialBackoff = time.Second
	}
	if c.RestartMaxBackoff <= 0 {
		c.RestartMaxBackoff = 30 * time.Second
	}
	if c.RestartTimeout <= 0 {
		c.RestartTimeout = 15 * time.Second
	}
	if c.RecoveryMultiplier <= 0 {
		c.RecoveryMultiplier = 2
	}
	return c
}

type backendHealth struct {
	consecutiveFailures int
	lastCheck           time.Time
	lastRestart         time.Time
	restartCount        int
	restartWindowStart  time.Time
	circuitOpenSince    time.Time
}

// recordSuccess resets the failure counter and closes the circuit.
func (h *backendHealth) recordSuccess() {
	h.consecutiveFailures = 0
	h.circuitOpenSince = time.Time{}
}

// restartBackoff computes initialBackoff * 2^min(restartCount,5), capped.
func restartBackoff(initial, max time.Duration, restartCount int) time.Duration {
	shift := restartCount
	if shift > 5 {
		shift = 5
	}
	backoff := time.Duration(float64(initial) * math.Pow(2, float64(shift)))
	if backoff > max {
		return max
	}
	return backoff
}

// shouldRestart reports whether a restart is permitted given the rolling
// window: if the window has expired it always allows a (counter-resetting)
// restart, otherwise it enforces the max-restarts bound.
func (h *backendHealth) shouldRestart(window time.Duration, maxRestarts int) bool {
	if !h.restartWindowStart.IsZero() && time.Since(h.restartWindowStart) > window {
		return true
	}
	return h.restartCount < maxRestarts
}

func (h *backendHealth) noteRestart(window time.Duration) {
	if h.restartWindowStart.IsZero() || time.Since(h.restartWindowStart) > window {
		h.restartWindowStart = time.Now()
		h.restartCount = 0
	}
	h.restartCount++
	h.lastRestart = time.Now()
}

// Supervisor runs the periodic 4-phase health tick.
type Supervisor struct {
	mgr    Manager
	cache  CachePersister
	cfg    Config
	log    *slog.Logger

	mu      sync.Mutex
	tracked map[string]*backendHealth
}

// New constructs a Supervisor; cache may be nil if no persistence is wired.
func New(mgr Manager, cache CachePersister, cfg Config, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{
		mgr:     mgr,
		cache:   cache,
		cfg:     cfg.withDefaults(),
		log:     log,
		tracked: make(map[string]*backendHealth),
	}
}

// Run blocks, ticking every cfg.Interval until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Supervisor) healthFor(name string) *backendHealth {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.tracked[name]
	if !ok {
		h = &backendHealth{}
		s.tracked[name] = h
	}
	return h
}

func (s *Supervisor) tick(ctx context.Context) {
	statuses := s.mgr.Statuses()

	var healthyNames []string
	for _, st := range statuses {
		if st.State == gwbackend.StateHealthy {
			healthyNames = append(healthyNames, st.Name)
		}
	}
	s.probeHealthy(ctx, healthyNames)

	for _, st := range statuses {
		if st.State != gwbackend.StateHealthy {
			s.recoverOrRestart(ctx, st.Name)
		}
	}

	configured := s.mgr.GetConfiguredNames()
	running := make(map[string]struct{}, len(statuses))
	for _, st := range statuses {
		running[st.Name] = struct{}{}
	}
	for _, name := range configured {
		if _, ok := running[name]; !ok {
			s.retryPending(ctx, name)
		}
	}

	s.gc(configured, statuses)
}

// probeHealthy implements Phase 1: stagger probes across 80% of the interval.
func (s *Supervisor) probeHealthy(ctx context.Context, names []string) {
	if len(names) == 0 {
		return
	}
	stagger := time.Duration(float64(s.cfg.Interval) * 0.8 / float64(len(names)))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			if stagger > 0 {
				time.Sleep(time.Duration(i) * stagger)
			}
			probeCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
			defer cancel()
			h := s.healthFor(name)
			err := s.mgr.PingBackend(probeCtx, name)

			s.mu.Lock()
			defer s.mu.Unlock()
			h.lastCheck = time.Now()
			if err == nil {
				h.recordSuccess()
				return
			}
			h.consecutiveFailures++
			if h.consecutiveFailures >= s.cfg.FailureThreshold {
				h.circuitOpenSince = time.Now()
				s.mgr.SetBackendState(name, gwbackend.StateUnhealthy)
				s.log.Warn("backend circuit opened", "backend", name, "failures", h.consecutiveFailures)
			}
		}(i, name)
	}
	wg.Wait()
}

// recoverOrRestart implements Phase 2 for one non-healthy backend.
func (s *Supervisor) recoverOrRestart(ctx context.Context, name string) {
	h := s.healthFor(name)

	s.mu.Lock()
	circuitOpen := !h.circuitOpenSince.IsZero()
	elapsed := time.Since(h.circuitOpenSince)
	s.mu.Unlock()

	recoveryWindow := time.Duration(float64(s.cfg.Interval) * s.cfg.RecoveryMultiplier)

	if circuitOpen {
		if elapsed < recoveryWindow {
			return
		}
		probeCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		err := s.mgr.PingBackend(probeCtx, name)
		cancel()

		s.mu.Lock()
		if err == nil {
			h.recordSuccess()
			s.mu.Unlock()
			s.mgr.SetBackendState(name, gwbackend.StateHealthy)
			return
		}
		h.circuitOpenSince = time.Now()
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	allowed := h.shouldRestart(s.cfg.RestartWindow, s.cfg.MaxRestarts)
	backoffElapsed := h.lastRestart.IsZero() || time.Since(h.lastRestart) >= restartBackoff(s.cfg.RestartInitialBackoff, s.cfg.RestartMaxBackoff, h.restartCount)
	s.mu.Unlock()
	if !allowed || !backoffElapsed {
		return
	}

	restartCtx, cancel := context.WithTimeout(ctx, s.cfg.RestartTimeout)
	defer cancel()
	err := s.mgr.RestartBackend(restartCtx, name)

	s.mu.Lock()
	h.noteRestart(s.cfg.RestartWindow)
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("backend restart failed", "backend", name, "err", err)
		return
	}
	s.log.Info("backend restarted", "backend", name)
	if s.cache != nil {
		go func() {
			if err := s.cache.Save(context.Background()); err != nil {
				s.log.Warn("cache save after restart failed", "err", err)
			}
		}()
	}
}

// retryPending implements Phase 3 for a configured-but-never-started backend.
func (s *Supervisor) retryPending(ctx context.Context, name string) {
	h := s.healthFor(name)

	s.mu.Lock()
	allowed := h.shouldRestart(s.cfg.RestartWindow, s.cfg.MaxRestarts)
	backoffElapsed := h.lastRestart.IsZero() || time.Since(h.lastRestart) >= restartBackoff(s.cfg.RestartInitialBackoff, s.cfg.RestartMaxBackoff, h.restartCount)
	s.mu.Unlock()
	if !allowed || !backoffElapsed {
		return
	}

	startCtx, cancel := context.WithTimeout(ctx, s.cfg.RestartTimeout)
	defer cancel()
	err := s.mgr.TryStartFromConfig(startCtx, name)

	s.mu.Lock()
	h.noteRestart(s.cfg.RestartWindow)
	s.mu.Unlock()

	if err != nil {
		s.log.Debug("pending backend start attempt failed", "backend", name, "err", err)
	}
}

// gc implements Phase 4: drop tracked health entries for backends that are
// neither currently running nor configured.
func (s *Supervisor) gc(configured []string, statuses []backendmgr.Status) {
	live := make(map[string]struct{}, len(configured)+len(statuses))
	for _, name := range configured {
		live[name] = struct{}{}
	}
	for _, st := range statuses {
		live[st.Name] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.tracked {
		if _, ok := live[name]; !ok {
			delete(s.tracked, name)
		}
	}
}
