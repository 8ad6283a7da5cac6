package proxy

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestTryConnectFailsWhenNoSocket(t *testing.T) {
	dir := t.TempDir()
	_, err := tryConnect(filepath.Join(dir, "missing.sock"))
	assert.Error(t, err)
}

func TestTryLockIsExclusive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.lock")

	fd1, acquired1, err := tryLock(path)
	require.NoError(t, err)
	require.True(t, acquired1)

	_, acquired2, err := tryLock(path)
	require.NoError(t, err)
	assert.False(t, acquired2)

	assert.NoError(t, unix.Close(fd1))
}

func TestWaitForSocketSucceedsOnceListenerAppears(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.sock")

	go func() {
		time.Sleep(75 * time.Millisecond)
		ln, err := net.Listen("unix", path)
		if err != nil {
			return
		}
		defer ln.Close()
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	conn, err := waitForSocket(context.Background(), path, 2*time.Second)
	require.NoError(t, err)
	conn.Close()
}

func TestWaitForSocketTimesOut(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "never.sock")

	_, err := waitForSocket(context.Background(), path, 100*time.Millisecond)
	assert.Error(t, err)
}

func TestIsBenignCloseError(t *testing.T) {
	assert.True(t, isBenignCloseError(nil))
	assert.True(t, isBenignCloseError(net.ErrClosed))
}
