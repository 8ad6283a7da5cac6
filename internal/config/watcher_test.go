package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	if err := os.WriteFile(path, []byte("server:\n  name: metatools-mcp\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	reloaded := make(chan AppConfig, 1)
	w := NewWatcher(path, 20*time.Millisecond, nil)
	w.OnReload = func(cfg AppConfig) {
		select {
		case reloaded <- cfg:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give fsnotify time to register the watch before mutating the file.
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(path, []byte("server:\n  name: metatools-mcp-reloaded\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Server.Name != "metatools-mcp-reloaded" {
			t.Errorf("Server.Name = %q, want %q", cfg.Server.Name, "metatools-mcp-reloaded")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestWatcher_EmptyPathIsNoop(t *testing.T) {
	w := NewWatcher("", 0, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}
