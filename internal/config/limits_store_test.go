package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jonwraymond/metatools-mcp/internal/tracker"
)

func TestOpenUsageStore_NoPathConfigured(t *testing.T) {
	cfg := DefaultAppConfig()
	store, closeFn, ok, err := cfg.OpenUsageStore()
	if err != nil {
		t.Fatalf("OpenUsageStore() error = %v", err)
	}
	if ok || store != nil || closeFn != nil {
		t.Fatalf("OpenUsageStore() = %v, %v, %v, want zero values with ok=false", store, closeFn, ok)
	}
}

func TestNewUsageSyncer_OpensConfiguredStore(t *testing.T) {
	cfg := DefaultAppConfig()
	cfg.State.RuntimeLimitsDB = filepath.Join(t.TempDir(), "usage.db")

	trk := tracker.New(10)
	syncer, closeFn, ok, err := cfg.NewUsageSyncer(trk, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewUsageSyncer() error = %v", err)
	}
	if !ok || syncer == nil {
		t.Fatalf("NewUsageSyncer() ok=%v syncer=%v, want ok=true and non-nil syncer", ok, syncer)
	}
	if closeFn != nil {
		defer func() { _ = closeFn() }()
	}
}
