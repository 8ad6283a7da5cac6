// Package proxy implements the client-facing half of the daemon pattern: a
// short-lived process that connects to (spawning if necessary) the
// background gateway daemon and bridges its own stdin/stdout to the
// daemon's Unix socket.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"
)

// Config locates the daemon's socket and lock file and the command used to
// spawn it when not already running.
type Config struct {
	SocketPath  string
	LockFile    string
	SpawnCmd    string
	SpawnArgs   []string
	WaitTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 30 * time.Second
	}
	return c
}

// Connect returns a connection to the daemon, spawning it first if no
// daemon currently answers on cfg.SocketPath. Concurrent proxies race on
// cfg.LockFile via a non-blocking flock: the winner spawns, everyone else
// just polls for the socket to appear.
func Connect(ctx context.Context, cfg Config) (net.Conn, error) {
	cfg = cfg.withDefaults()

	if conn, err := tryConnect(cfg.SocketPath); err == nil {
		return conn, nil
	}

	lockFD, acquired, err := tryLock(cfg.LockFile)
	if err != nil {
		return nil, err
	}
	if acquired {
		defer unix.Close(lockFD)
		// Re-check after winning the lock: another process may have
		// finished spawning between our first attempt and acquiring it.
		if conn, err := tryConnect(cfg.SocketPath); err == nil {
			return conn, nil
		}
		if err := spawnDaemon(cfg.SpawnCmd, cfg.SpawnArgs); err != nil {
			return nil, err
		}
	}

	return waitForSocket(ctx, cfg.SocketPath, cfg.WaitTimeout)
}

func tryConnect(socketPath string) (net.Conn, error) {
	return net.DialTimeout("unix", socketPath, 500*time.Millisecond)
}

// tryLock attempts a non-blocking exclusive flock on cfg.LockFile. It
// returns acquired=false (not an error) when another process already holds
// the lock, so the caller falls back to polling for the socket.
func tryLock(path string) (fd int, acquired bool, err error) {
	// #nosec G304 -- lock file path is operator configuration, not user input.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return 0, false, fmt.Errorf("open lock file %s: %w", path, err)
	}
	fd = int(f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("flock %s: %w", path, err)
	}
	return fd, true, nil
}

// spawnDaemon launches the daemon as a detached background process with its
// stdio disconnected from this proxy (stderr is inherited for diagnostics).
func spawnDaemon(command string, args []string) error {
	cmd := exec.Command(command, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = daemonSysProcAttr()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn daemon: %w", err)
	}
	return cmd.Process.Release()
}

// waitForSocket polls for the daemon's socket with exponential backoff
// starting at 50ms, doubling, capped at 1s, until timeout elapses.
func waitForSocket(ctx context.Context, socketPath string, timeout time.Duration) (net.Conn, error) {
	deadline := time.Now().Add(timeout)
	delay := 50 * time.Millisecond
	const maxDelay = time.Second

	for {
		if conn, err := tryConnect(socketPath); err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for daemon socket %s", socketPath)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// BridgeStdio copies bytes bidirectionally between the process's own
// stdin/stdout and conn until either side closes, tolerating broken-pipe
// style errors as a clean exit rather than surfacing them to the caller.
func BridgeStdio(conn net.Conn) error {
	errCh := make(chan error, 2)

	go func() {
		_, err := io.Copy(conn, os.Stdin)
		if c, ok := conn.(interface{ CloseWrite() error }); ok {
			_ = c.CloseWrite()
		}
		errCh <- err
	}()
	go func() {
		_, err := io.Copy(os.Stdout, conn)
		errCh <- err
	}()

	err := <-errCh
	if isBenignCloseError(err) {
		return nil
	}
	return err
}

func isBenignCloseError(err error) bool {
	if err == nil {
		return true
	}
	return errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)
}
