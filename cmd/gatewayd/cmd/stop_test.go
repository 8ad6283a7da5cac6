package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestStop_NoPIDFile(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "gateway.pid")
	configPath = writeTestConfig(t, pidFile)
	defer func() { configPath = "" }()

	cmd := newStopCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("RunE() error = %v", err)
	}
	if !contains(buf.String(), "not running") {
		t.Errorf("stop = %q, want it to report not running", buf.String())
	}
}

func TestStop_StalePID(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "gateway.pid")
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(1<<30)), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	configPath = writeTestConfig(t, pidFile)
	defer func() { configPath = "" }()

	cmd := newStopCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("RunE() error = %v", err)
	}
	if !contains(buf.String(), "not running") {
		t.Errorf("stop = %q, want it to report not running for a stale pid", buf.String())
	}
}
