package daemon

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupStaleSocketRemovesDeadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.sock")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, cleanupStaleSocket(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCleanupStaleSocketMissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, cleanupStaleSocket(filepath.Join(dir, "missing.sock")))
}

func TestCleanupStaleSocketRefusesLiveDaemon(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.sock")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	err = cleanupStaleSocket(path)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestRunServesAConnectionAndShutsDownOnIdle(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		SocketPath:  filepath.Join(dir, "gateway.sock"),
		PIDFile:     filepath.Join(dir, "gateway.pid"),
		IdleTimeout: 50 * time.Millisecond,
	}

	served := make(chan struct{}, 1)
	shutdownCalled := make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), cfg, func(ctx context.Context, conn net.Conn) {
			served <- struct{}{}
		}, func(ctx context.Context) error {
			shutdownCalled <- struct{}{}
			return nil
		}, nil)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(cfg.SocketPath)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	conn, err := net.Dial("unix", cfg.SocketPath)
	require.NoError(t, err)
	conn.Close()

	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("handler was never invoked")
	}

	select {
	case <-shutdownCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown hook was never invoked")
	}

	require.NoError(t, <-done)

	_, err = os.Stat(cfg.SocketPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(cfg.PIDFile)
	assert.True(t, os.IsNotExist(err))
}
