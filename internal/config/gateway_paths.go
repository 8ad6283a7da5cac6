package config

import (
	"os"
	"path/filepath"
)

// gatewayRuntimeDir resolves the directory the daemon's socket, PID file,
// lock file, and cache default into: $XDG_RUNTIME_DIR/metatools-gateway when
// set, otherwise a subdirectory of os.TempDir.
func gatewayRuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "metatools-gateway")
	}
	return filepath.Join(os.TempDir(), "metatools-gateway")
}

func defaultGatewaySocketPath() string {
	return filepath.Join(gatewayRuntimeDir(), "gateway.sock")
}

func defaultGatewayPIDPath() string {
	return filepath.Join(gatewayRuntimeDir(), "gateway.pid")
}

func defaultGatewayLockPath() string {
	return filepath.Join(gatewayRuntimeDir(), "gateway.lock")
}

func defaultGatewayCachePath() string {
	return filepath.Join(gatewayRuntimeDir(), "cache.json")
}
