// Package prereq spawns and tracks the auxiliary processes (or containers)
// some backends depend on, deduplicating against ones already running.
package prereq

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Kind distinguishes a process-based prerequisite from a container-based one.
type Kind string

const (
	// KindProcess spawns and dedups against a plain OS process (the default).
	KindProcess Kind = "process"
	// KindContainer runs the prerequisite as a Docker container.
	KindContainer Kind = "container"
)

// Config describes one backend's prerequisite.
type Config struct {
	Kind          Kind
	Command       string
	Args          []string
	Env           []string
	Dir           string
	ProcessMatch  string
	Image         string
	ContainerName string
	Managed       bool
	StartupDelay  time.Duration
}

// ContainerRuntime is the subset of container-lifecycle operations the
// manager needs; implemented against a live Docker daemon via the
// github.com/docker/docker client.
type ContainerRuntime interface {
	IsRunning(ctx context.Context, containerName string) (bool, error)
	Start(ctx context.Context, image, containerName string) error
	Stop(ctx context.Context, containerName string) error
}

// Manager ensures prerequisite processes/containers exist before a dependent
// backend starts, and tears down the ones it manages on shutdown.
type Manager struct {
	mu        sync.Mutex
	pids      map[string]int
	processMatcher func(substr string) (bool, error)
	containers ContainerRuntime
}

// New constructs a Manager. containers may be nil if no backend uses
// container-kind prerequisites.
func New(containers ContainerRuntime) *Manager {
	return &Manager{
		pids:           make(map[string]int),
		processMatcher: scanProcessTable,
		containers:     containers,
	}
}

// Ensure guarantees backendName's prerequisite is running, starting it if
// necessary. It is a no-op if cfg is the zero value (no prerequisite configured).
func (m *Manager) Ensure(ctx context.Context, backendName string, cfg Config) error {
	if cfg.Command == "" && cfg.Image == "" {
		return nil
	}
	switch cfg.Kind {
	case KindContainer:
		return m.ensureContainer(ctx, backendName, cfg)
	default:
		return m.ensureProcess(ctx, backendName, cfg)
	}
}

func (m *Manager) ensureProcess(ctx context.Context, backendName string, cfg Config) error {
	if cfg.ProcessMatch != "" {
		found, err := m.processMatcher(cfg.ProcessMatch)
		if err != nil {
			return fmt.Errorf("scan process table for %q: %w", backendName, err)
		}
		if found {
			return nil
		}
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start prerequisite for %q: %w", backendName, err)
	}
	go func() { _ = cmd.Wait() }()

	if cfg.Managed {
		m.mu.Lock()
		m.pids[backendName] = cmd.Process.Pid
		m.mu.Unlock()
	}

	if cfg.StartupDelay > 0 {
		select {
		case <-time.After(cfg.StartupDelay):
		case <-ctx.Done():
		}
	}
	return nil
}

func (m *Manager) ensureContainer(ctx context.Context, backendName string, cfg Config) error {
	if m.containers == nil {
		return fmt.Errorf("container prerequisite for %q requires a docker runtime", backendName)
	}
	running, err := m.containers.IsRunning(ctx, cfg.ContainerName)
	if err != nil {
		return fmt.Errorf("check container for %q: %w", backendName, err)
	}
	if running {
		return nil
	}
	if err := m.containers.Start(ctx, cfg.Image, cfg.ContainerName); err != nil {
		return fmt.Errorf("start container prerequisite for %q: %w", backendName, err)
	}
	if cfg.StartupDelay > 0 {
		select {
		case <-time.After(cfg.StartupDelay):
		case <-ctx.Done():
		}
	}
	return nil
}

// Stop terminates backendName's managed prerequisite, if any.
func (m *Manager) Stop(ctx context.Context, backendName string, cfg Config) {
	if cfg.Kind == KindContainer {
		if m.containers != nil && cfg.Managed {
			_ = m.containers.Stop(ctx, cfg.ContainerName)
		}
		return
	}

	m.mu.Lock()
	pid, ok := m.pids[backendName]
	delete(m.pids, backendName)
	m.mu.Unlock()
	if !ok {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGTERM)
}

func scanProcessTable(substr string) (bool, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name[0] < '0' || name[0] > '9' {
			continue
		}
		cmdline, err := os.ReadFile("/proc/" + name + "/cmdline")
		if err != nil {
			continue
		}
		if strings.Contains(string(cmdline), substr) {
			return true, nil
		}
	}
	return false, nil
}
